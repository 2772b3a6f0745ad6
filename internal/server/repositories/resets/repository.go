package resets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultshare/internal/server/models"
)

type Repository interface {
	// Create inserts a new reset request. A token collision yields
	// common.ErrConflict so callers can retry with a fresh token.
	Create(ctx context.Context, reset *models.PasswordReset) (*models.PasswordReset, error)
	GetByToken(ctx context.Context, token string) (*models.PasswordReset, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes requests created before cutoff and reports how
	// many rows went away. Used both for lazy cleanup and periodic sweeps.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
