package shares

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultshare/internal/server/models"
)

// ShareInfo is a share row joined with the file name and recipient login,
// used by the activity feed.
type ShareInfo struct {
	models.FileShare
	FileName          string
	RecipientUserName string
}

type Repository interface {
	// Create inserts a new grant. A token collision yields
	// common.ErrConflict so callers can retry with a fresh token.
	Create(ctx context.Context, share *models.FileShare) (*models.FileShare, error)
	GetByToken(ctx context.Context, token string) (*models.FileShare, error)
	// MarkDownloaded flips the grant to downloaded exactly once. Calling it
	// for an already-downloaded grant is a no-op that keeps the original
	// timestamp.
	MarkDownloaded(ctx context.Context, id string) error
	SelectRecentByFileOwner(ctx context.Context, ownerID string, since time.Time, limit int) ([]*ShareInfo, error)
	SelectRecentDownloadsByFileOwner(ctx context.Context, ownerID string, since time.Time, limit int) ([]*ShareInfo, error)
	CountByFileOwner(ctx context.Context, ownerID string) (int64, error)
	CountDownloadsByFileOwner(ctx context.Context, ownerID string) (int64, error)
}
