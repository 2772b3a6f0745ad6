package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/vaultshare/internal/server/models"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/repomanager"
)

const (
	// activityWindow bounds how far back the feed looks.
	activityWindow = 7 * 24 * time.Hour
	// perKindLimit caps each of the three event streams before merging.
	perKindLimit = 5
	// feedLimit caps the merged feed.
	feedLimit = 10
)

// ActivityService derives the recent-activity feed and dashboard statistics
// from file, share and download rows. Nothing is persisted per feed entry.
type ActivityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager

	// now is swappable in tests
	now func() time.Time
}

// NewActivityService constructs an ActivityService.
func NewActivityService(db *sql.DB, m repomanager.RepositoryManager) *ActivityService {
	return &ActivityService{db: db, repomanager: m, now: time.Now}
}

// Recent returns the owner's merged activity feed: uploads, issued shares and
// completed downloads from the last seven days, five per kind at most,
// newest first, capped at ten entries overall.
func (s *ActivityService) Recent(ctx context.Context, ownerID string) ([]models.Activity, error) {
	since := s.now().Add(-activityWindow)

	uploads, err := s.repomanager.Files(s.db).SelectRecentByOwner(ctx, ownerID, since, perKindLimit)
	if err != nil {
		return nil, err
	}
	shares, err := s.repomanager.Shares(s.db).SelectRecentByFileOwner(ctx, ownerID, since, perKindLimit)
	if err != nil {
		return nil, err
	}
	downloads, err := s.repomanager.Shares(s.db).SelectRecentDownloadsByFileOwner(ctx, ownerID, since, perKindLimit)
	if err != nil {
		return nil, err
	}

	feed := make([]models.Activity, 0, len(uploads)+len(shares)+len(downloads))
	for _, f := range uploads {
		feed = append(feed, models.Activity{
			Kind:        models.ActivityUpload,
			Description: fmt.Sprintf("Uploaded %q", f.Name),
			Timestamp:   f.CreatedAt,
		})
	}
	for _, sh := range shares {
		feed = append(feed, models.Activity{
			Kind:        models.ActivityShare,
			Description: fmt.Sprintf("Shared %q with %s", sh.FileName, sh.RecipientUserName),
			Timestamp:   sh.CreatedAt,
		})
	}
	for _, dl := range downloads {
		if dl.DownloadedAt == nil {
			continue
		}
		feed = append(feed, models.Activity{
			Kind:        models.ActivityDownload,
			Description: fmt.Sprintf("%s downloaded %q", dl.RecipientUserName, dl.FileName),
			Timestamp:   *dl.DownloadedAt,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp.After(feed[j].Timestamp)
	})
	if len(feed) > feedLimit {
		feed = feed[:feedLimit]
	}
	return feed, nil
}

// Stats returns per-owner dashboard totals together with the recent feed.
func (s *ActivityService) Stats(ctx context.Context, ownerID string) (*models.DashboardStats, error) {
	totalFiles, err := s.repomanager.Files(s.db).CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	totalShared, err := s.repomanager.Shares(s.db).CountByFileOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	totalDownloads, err := s.repomanager.Shares(s.db).CountDownloadsByFileOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	recent, err := s.Recent(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		TotalFiles:     totalFiles,
		TotalShared:    totalShared,
		TotalDownloads: totalDownloads,
		Recent:         recent,
	}, nil
}
