package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultshare/internal/common"
	"github.com/dmitrijs2005/vaultshare/internal/dbx"
	"github.com/dmitrijs2005/vaultshare/internal/logging"
	"github.com/dmitrijs2005/vaultshare/internal/server/mail"
	"github.com/dmitrijs2005/vaultshare/internal/server/models"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/repomanager"
)

// resetTokenBytes is the entropy of a reset token before hex encoding.
const resetTokenBytes = 32

// ResetService issues and redeems password reset requests. Tokens expire
// one hour after issuance; expiry is evaluated lazily on redemption, with
// SweepExpired available for periodic cleanup.
type ResetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mailQueue   *mail.Queue
	logger      logging.Logger

	// now is swappable in tests
	now func() time.Time
}

// NewResetService constructs a ResetService. mailQueue may be nil; reset
// emails are then skipped.
func NewResetService(db *sql.DB, m repomanager.RepositoryManager, mailQueue *mail.Queue, logger logging.Logger) *ResetService {
	return &ResetService{db: db, repomanager: m, mailQueue: mailQueue, logger: logger, now: time.Now}
}

// Issue creates a reset request for the account registered under email and
// mails the token to it. An unknown email is not an error: the call returns
// silently so callers cannot probe which addresses exist.
func (s *ResetService) Issue(ctx context.Context, email string) error {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Info(ctx, "reset requested for unknown email")
			return nil
		}
		return err
	}

	var reset *models.PasswordReset
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := common.MakeRandHexString(resetTokenBytes)
		if err != nil {
			return err
		}
		reset, err = s.repomanager.Resets(s.db).Create(ctx, &models.PasswordReset{
			UserID: user.ID,
			Token:  token,
		})
		if err == nil {
			break
		}
		if errors.Is(err, common.ErrConflict) {
			continue
		}
		return err
	}
	if reset == nil {
		return fmt.Errorf("%w: could not allocate reset token", common.ErrorInternal)
	}

	if s.mailQueue != nil {
		s.mailQueue.SendAsync(
			"Password reset",
			fmt.Sprintf("Use token %s to reset your password. The token is valid for one hour.", reset.Token),
			[]string{user.Email},
		)
	}

	s.logger.Info(ctx, "reset issued", "user_id", user.ID)
	return nil
}

// Verify checks that token refers to a live, unexpired reset request. An
// expired request is removed on sight and reported as expired.
func (s *ResetService) Verify(ctx context.Context, token string) (*models.PasswordReset, error) {
	reset, err := s.repomanager.Resets(s.db).GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, err
	}
	if reset.Expired(s.now()) {
		if err := s.repomanager.Resets(s.db).Delete(ctx, reset.ID); err != nil {
			s.logger.Error(ctx, "deleting expired reset failed", "reset_id", reset.ID, "error", err.Error())
		}
		return nil, common.ErrTokenExpired
	}
	return reset, nil
}

// Redeem consumes a reset token and sets the account's password. The
// password update and the token deletion happen in one transaction, so a
// token can never be spent without the password actually changing.
func (s *ResetService) Redeem(ctx context.Context, token string, newPassword string) error {
	reset, err := s.Verify(ctx, token)
	if err != nil {
		return err
	}

	salt, err := newSalt()
	if err != nil {
		return err
	}
	hash := hashPassword(newPassword, salt)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, reset.UserID, hash, salt); err != nil {
			return err
		}
		return s.repomanager.Resets(tx).Delete(ctx, reset.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password reset redeemed", "user_id", reset.UserID)
	return nil
}

// SweepExpired removes all reset requests past their validity window and
// reports how many went away.
func (s *ResetService) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-models.ResetTokenValidity)
	return s.repomanager.Resets(s.db).DeleteExpired(ctx, cutoff)
}
