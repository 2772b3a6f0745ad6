package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id string) (*models.File, error)
	Delete(ctx context.Context, id string) error
	// SelectRecentByOwner returns the owner's newest files created at or
	// after since, newest first, capped at limit.
	SelectRecentByOwner(ctx context.Context, ownerID string, since time.Time, limit int) ([]*models.File, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
}
