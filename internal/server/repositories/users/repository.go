package users

import (
	"context"

	"github.com/dmitrijs2005/vaultshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByLogin(ctx context.Context, userName string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// ReserveQuota atomically adds delta bytes to the user's storage_used,
	// failing with common.ErrQuotaExceeded when the limit would be crossed.
	ReserveQuota(ctx context.Context, userID string, delta int64) error
	// ReleaseQuota atomically subtracts delta bytes from storage_used.
	ReleaseQuota(ctx context.Context, userID string, delta int64) error
	UpdatePassword(ctx context.Context, userID string, hash, salt []byte) error
	Delete(ctx context.Context, userID string) error
}
