package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/vaultshare/internal/common"
	"github.com/dmitrijs2005/vaultshare/internal/logging"
	"github.com/dmitrijs2005/vaultshare/internal/server/mail"
	"github.com/dmitrijs2005/vaultshare/internal/server/models"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/repomanager"
)

// shareTokenBytes is the entropy of a share token before hex encoding.
const shareTokenBytes = 32

// maxTokenAttempts bounds the retry loop on token collisions. With 256-bit
// tokens a single collision is already implausible.
const maxTokenAttempts = 5

// ShareService issues and redeems file share grants.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	files       *FileService
	mailQueue   *mail.Queue
	logger      logging.Logger
}

// NewShareService constructs a ShareService. mailQueue may be nil; share
// notifications are then skipped.
func NewShareService(db *sql.DB, m repomanager.RepositoryManager, files *FileService, mailQueue *mail.Queue, logger logging.Logger) *ShareService {
	return &ShareService{db: db, repomanager: m, files: files, mailQueue: mailQueue, logger: logger}
}

// Issue creates a share grant for the named recipient on the owner's file and
// notifies the recipient by email. Only the file owner may share it. An
// unknown recipient yields common.ErrRecipientNotFound.
func (s *ShareService) Issue(ctx context.Context, owner *models.User, fileID string, recipientUserName string) (*models.FileShare, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != owner.ID {
		return nil, common.ErrPermissionDenied
	}

	recipient, err := s.repomanager.Users(s.db).GetByLogin(ctx, recipientUserName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRecipientNotFound
		}
		return nil, err
	}

	var share *models.FileShare
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := common.MakeRandHexString(shareTokenBytes)
		if err != nil {
			return nil, err
		}
		share, err = s.repomanager.Shares(s.db).Create(ctx, &models.FileShare{
			FileID:      file.ID,
			RecipientID: recipient.ID,
			Token:       token,
		})
		if err == nil {
			break
		}
		if errors.Is(err, common.ErrConflict) {
			continue
		}
		return nil, err
	}
	if share == nil {
		return nil, fmt.Errorf("%w: could not allocate share token", common.ErrorInternal)
	}

	if s.mailQueue != nil && recipient.Email != "" {
		s.mailQueue.SendAsync(
			fmt.Sprintf("%s shared a file with you", owner.UserName),
			fmt.Sprintf("%s shared %q with you. Use token %s to download it.", owner.UserName, file.Name, share.Token),
			[]string{recipient.Email},
		)
	}

	s.logger.Info(ctx, "share issued", "file_id", file.ID, "recipient_id", recipient.ID)
	return share, nil
}

// Redeem resolves a share token to its grant. An unknown token yields
// common.ErrTokenNotFound.
func (s *ShareService) Redeem(ctx context.Context, token string) (*models.FileShare, error) {
	share, err := s.repomanager.Shares(s.db).GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, err
	}
	return share, nil
}

// Download redeems a token and streams the shared file to dst. The first
// successful download flips the grant's downloaded flag; later downloads
// leave the original timestamp untouched. The grant stays usable after the
// first download.
func (s *ShareService) Download(ctx context.Context, actor *models.User, token string, dst io.Writer) (int64, error) {
	share, err := s.Redeem(ctx, token)
	if err != nil {
		return 0, err
	}

	n, err := s.files.Load(ctx, actor, share.FileID, share, dst)
	if err != nil {
		return n, err
	}

	if err := s.repomanager.Shares(s.db).MarkDownloaded(ctx, share.ID); err != nil {
		// the content already reached the caller, so only log
		s.logger.Error(ctx, "marking share downloaded failed", "share_id", share.ID, "error", err.Error())
	}
	return n, nil
}
