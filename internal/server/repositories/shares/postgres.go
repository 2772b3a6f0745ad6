// Package shares provides a PostgreSQL-backed repository for share grants
// and their one-time download state.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/vaultshare/internal/common"
	"github.com/dmitrijs2005/vaultshare/internal/dbx"
	"github.com/dmitrijs2005/vaultshare/internal/server/models"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, share *models.FileShare) (*models.FileShare, error) {
	query := `
		INSERT INTO file_shares (file_id, recipient_id, token)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		share.FileID, share.RecipientID, share.Token).Scan(&share.ID, &share.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return share, nil
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.FileShare, error) {
	query := `
		SELECT id, file_id, recipient_id, token, created_at, downloaded, downloaded_at
		FROM file_shares
		WHERE token = $1
	`
	s := &models.FileShare{}
	var downloadedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, token).Scan(&s.ID, &s.FileID, &s.RecipientID,
		&s.Token, &s.CreatedAt, &s.Downloaded, &downloadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if downloadedAt.Valid {
		t := downloadedAt.Time
		s.DownloadedAt = &t
	}
	return s, nil
}

// MarkDownloaded records the first download of a grant. The WHERE clause
// keeps it idempotent: a second call affects no rows and the original
// timestamp survives.
func (r *PostgresRepository) MarkDownloaded(ctx context.Context, id string) error {
	query := `
		UPDATE file_shares
		SET downloaded = true, downloaded_at = now()
		WHERE id = $1 AND NOT downloaded
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const shareInfoColumns = `s.id, s.file_id, s.recipient_id, s.token, s.created_at, s.downloaded, s.downloaded_at,
		f.name, u.username`

func (r *PostgresRepository) selectInfos(ctx context.Context, query string, args ...any) ([]*ShareInfo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select shares: %w", err)
	}
	defer rows.Close()

	var result []*ShareInfo
	for rows.Next() {
		info := &ShareInfo{}
		var downloadedAt sql.NullTime
		if err := rows.Scan(&info.ID, &info.FileID, &info.RecipientID, &info.Token,
			&info.CreatedAt, &info.Downloaded, &downloadedAt,
			&info.FileName, &info.RecipientUserName); err != nil {
			return nil, err
		}
		if downloadedAt.Valid {
			t := downloadedAt.Time
			info.DownloadedAt = &t
		}
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) SelectRecentByFileOwner(ctx context.Context, ownerID string, since time.Time, limit int) ([]*ShareInfo, error) {
	query := `
		SELECT ` + shareInfoColumns + `
		FROM file_shares s
		JOIN files f ON f.id = s.file_id
		JOIN users u ON u.id = s.recipient_id
		WHERE f.owner_id = $1 AND s.created_at >= $2
		ORDER BY s.created_at DESC
		LIMIT $3
	`
	return r.selectInfos(ctx, query, ownerID, since, limit)
}

func (r *PostgresRepository) SelectRecentDownloadsByFileOwner(ctx context.Context, ownerID string, since time.Time, limit int) ([]*ShareInfo, error) {
	query := `
		SELECT ` + shareInfoColumns + `
		FROM file_shares s
		JOIN files f ON f.id = s.file_id
		JOIN users u ON u.id = s.recipient_id
		WHERE f.owner_id = $1 AND s.downloaded AND s.downloaded_at >= $2
		ORDER BY s.downloaded_at DESC
		LIMIT $3
	`
	return r.selectInfos(ctx, query, ownerID, since, limit)
}

func (r *PostgresRepository) CountByFileOwner(ctx context.Context, ownerID string) (int64, error) {
	query := `
		SELECT count(*)
		FROM file_shares s
		JOIN files f ON f.id = s.file_id
		WHERE f.owner_id = $1
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountDownloadsByFileOwner(ctx context.Context, ownerID string) (int64, error) {
	query := `
		SELECT count(*)
		FROM file_shares s
		JOIN files f ON f.id = s.file_id
		WHERE f.owner_id = $1 AND s.downloaded
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
