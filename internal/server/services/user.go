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
	"github.com/dmitrijs2005/vaultshare/internal/server/auth"
	"github.com/dmitrijs2005/vaultshare/internal/server/config"
	"github.com/dmitrijs2005/vaultshare/internal/server/models"
	"github.com/dmitrijs2005/vaultshare/internal/server/policy"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService provides account operations:
// - Register: create accounts with an argon2id credential
// - Login: verify credentials and mint tokens
// - RefreshToken: rotate refresh tokens and mint new access tokens
// - ChangePassword, DeleteAccount: account maintenance under policy checks
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	defaultStorageLimit          int64
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		logger:                       logger,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		defaultStorageLimit:          cfg.DefaultStorageLimit,
	}
}

// Register creates a new account with the default role and storage limit.
// A taken username or email yields common.ErrConflict.
func (s *UserService) Register(ctx context.Context, userName, email, password string) (*models.User, error) {
	if userName == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	salt, err := newSalt()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserName:     userName,
		Email:        email,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
		Role:         models.RoleUser,
		StorageLimit: s.defaultStorageLimit,
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// CreateSuperuser creates an account with full privileges. Used by the admin
// bootstrap command, not reachable through regular registration.
func (s *UserService) CreateSuperuser(ctx context.Context, userName, email, password string) (*models.User, error) {
	if userName == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	salt, err := newSalt()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserName:     userName,
		Email:        email,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
		Role:         models.RoleAdmin,
		IsStaff:      true,
		IsSuperuser:  true,
		StorageLimit: s.defaultStorageLimit,
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "superuser created", "user_id", u.ID)
	return u, nil
}

// Login verifies the credentials and, on success, returns a new TokenPair.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, userName, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !checkPassword(user.PasswordHash, user.Salt, password) {
		return nil, common.ErrorUnauthorized
	}
	return s.generateTokenPair(ctx, user.ID, s.db)
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("error searching refresh token: %v", err)
	}
	if token.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %v", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// ChangePassword sets a new password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(user.PasswordHash, user.Salt, oldPassword) {
		return common.ErrorUnauthorized
	}

	salt, err := newSalt()
	if err != nil {
		return err
	}
	return s.repomanager.Users(s.db).UpdatePassword(ctx, userID, hashPassword(newPassword, salt), salt)
}

// DeleteAccount removes the target account if the actor is allowed to.
// Accounts can never remove themselves through this path, and staff accounts
// only fall to superusers.
func (s *UserService) DeleteAccount(ctx context.Context, actor *models.User, targetID string) error {
	target, err := s.repomanager.Users(s.db).GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if d := policy.CanDeleteAccount(actor, target); !d.Allowed {
		s.logger.Warn(ctx, "account delete denied", "target_id", targetID, "actor_id", actor.ID, "reason", d.Reason)
		return common.ErrPermissionDenied
	}

	if err := s.repomanager.Users(s.db).Delete(ctx, targetID); err != nil {
		return err
	}
	s.logger.Info(ctx, "account deleted", "target_id", targetID, "actor_id", actor.ID)
	return nil
}

// GetByID loads a user by ID.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// UserIDFromToken verifies an access token and returns its subject.
func (s *UserService) UserIDFromToken(tokenString string) (string, error) {
	return auth.GetUserIDFromToken(tokenString, s.jwtSecret)
}

// --- helpers below ---

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
