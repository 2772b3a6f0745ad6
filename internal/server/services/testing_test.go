package services

// Shared test doubles: stateful in-memory repositories behind a fake
// RepositoryManager, plus sqlmock for transaction boundaries.

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vaultshare/internal/common"
	"github.com/dmitrijs2005/vaultshare/internal/dbx"
	"github.com/dmitrijs2005/vaultshare/internal/logging"
	"github.com/dmitrijs2005/vaultshare/internal/server/models"
	filesrepo "github.com/dmitrijs2005/vaultshare/internal/server/repositories/files"
	refreshtokensrepo "github.com/dmitrijs2005/vaultshare/internal/server/repositories/refreshtokens"
	resetsrepo "github.com/dmitrijs2005/vaultshare/internal/server/repositories/resets"
	sharesrepo "github.com/dmitrijs2005/vaultshare/internal/server/repositories/shares"
	usersrepo "github.com/dmitrijs2005/vaultshare/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- users ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*models.User

	createErr  error
	getErr     error
	reserveErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) add(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("u%d", f.nextID)
	}
	f.byID[u.ID] = u
	return u
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.UserName == u.UserName {
			return nil, common.ErrConflict
		}
	}
	return f.add(u), nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByLogin(ctx context.Context, userName string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.UserName == userName {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) ReserveQuota(ctx context.Context, userID string, delta int64) error {
	if f.reserveErr != nil {
		return f.reserveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	if u.StorageUsed+delta > u.StorageLimit {
		return common.ErrQuotaExceeded
	}
	u.StorageUsed += delta
	return nil
}

func (f *fakeUsersRepo) ReleaseQuota(ctx context.Context, userID string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[userID]; ok {
		u.StorageUsed -= delta
		if u.StorageUsed < 0 {
			u.StorageUsed = 0
		}
	}
	return nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, userID string, hash, salt []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	u.Salt = salt
	return nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, userID)
	return nil
}

// --- files ---

type fakeFilesRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*models.File

	createErr error
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{byID: map[string]*models.File{}}
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *file
	cp.ID = fmt.Sprintf("f%d", f.nextID)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return file, nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeFilesRepo) SelectRecentByOwner(ctx context.Context, ownerID string, since time.Time, limit int) ([]*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.File
	for _, file := range f.byID {
		if file.OwnerID == ownerID && !file.CreatedAt.Before(since) {
			out = append(out, file)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeFilesRepo) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, file := range f.byID {
		if file.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// --- shares ---

type fakeSharesRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*models.FileShare

	files *fakeFilesRepo
	users *fakeUsersRepo

	// conflictsLeft forces this many token conflicts before accepting
	conflictsLeft int
}

func newFakeSharesRepo(files *fakeFilesRepo, users *fakeUsersRepo) *fakeSharesRepo {
	return &fakeSharesRepo{byID: map[string]*models.FileShare{}, files: files, users: users}
}

func (f *fakeSharesRepo) Create(ctx context.Context, share *models.FileShare) (*models.FileShare, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return nil, common.ErrConflict
	}
	for _, existing := range f.byID {
		if existing.Token == share.Token {
			return nil, common.ErrConflict
		}
	}
	f.nextID++
	cp := *share
	cp.ID = fmt.Sprintf("s%d", f.nextID)
	cp.CreatedAt = time.Now()
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeSharesRepo) GetByToken(ctx context.Context, token string) (*models.FileShare, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, share := range f.byID {
		if share.Token == token {
			return share, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSharesRepo) MarkDownloaded(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if !share.Downloaded {
		share.Downloaded = true
		now := time.Now()
		share.DownloadedAt = &now
	}
	return nil
}

func (f *fakeSharesRepo) info(share *models.FileShare) *sharesrepo.ShareInfo {
	info := &sharesrepo.ShareInfo{FileShare: *share}
	if file, ok := f.files.byID[share.FileID]; ok {
		info.FileName = file.Name
	}
	if u, ok := f.users.byID[share.RecipientID]; ok {
		info.RecipientUserName = u.UserName
	}
	return info
}

func (f *fakeSharesRepo) ownerOf(share *models.FileShare) string {
	if file, ok := f.files.byID[share.FileID]; ok {
		return file.OwnerID
	}
	return ""
}

func (f *fakeSharesRepo) SelectRecentByFileOwner(ctx context.Context, ownerID string, since time.Time, limit int) ([]*sharesrepo.ShareInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*sharesrepo.ShareInfo
	for _, share := range f.byID {
		if f.ownerOf(share) == ownerID && !share.CreatedAt.Before(since) {
			out = append(out, f.info(share))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSharesRepo) SelectRecentDownloadsByFileOwner(ctx context.Context, ownerID string, since time.Time, limit int) ([]*sharesrepo.ShareInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*sharesrepo.ShareInfo
	for _, share := range f.byID {
		if f.ownerOf(share) == ownerID && share.Downloaded && share.DownloadedAt != nil && !share.DownloadedAt.Before(since) {
			out = append(out, f.info(share))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSharesRepo) CountByFileOwner(ctx context.Context, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, share := range f.byID {
		if f.ownerOf(share) == ownerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeSharesRepo) CountDownloadsByFileOwner(ctx context.Context, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, share := range f.byID {
		if f.ownerOf(share) == ownerID && share.Downloaded {
			n++
		}
	}
	return n, nil
}

// --- resets ---

type fakeResetsRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*models.PasswordReset
}

func newFakeResetsRepo() *fakeResetsRepo {
	return &fakeResetsRepo{byID: map[string]*models.PasswordReset{}}
}

func (f *fakeResetsRepo) Create(ctx context.Context, reset *models.PasswordReset) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Token == reset.Token {
			return nil, common.ErrConflict
		}
	}
	f.nextID++
	cp := *reset
	cp.ID = fmt.Sprintf("p%d", f.nextID)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeResetsRepo) GetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, reset := range f.byID {
		if reset.Token == token {
			return reset, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeResetsRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeResetsRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, reset := range f.byID {
		if reset.CreatedAt.Before(cutoff) {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

// --- refresh tokens ---

type fakeRefreshRepo struct {
	findOut   *models.RefreshToken
	findErr   error
	delErr    error
	createErr error
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	return f.createErr
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	return f.delErr
}

// --- manager ---

type fakeRepoManager struct {
	u  *fakeUsersRepo
	f  *fakeFilesRepo
	s  *fakeSharesRepo
	p  *fakeResetsRepo
	rt *fakeRefreshRepo
}

func newFakeRepoManager() *fakeRepoManager {
	u := newFakeUsersRepo()
	f := newFakeFilesRepo()
	return &fakeRepoManager{
		u:  u,
		f:  f,
		s:  newFakeSharesRepo(f, u),
		p:  newFakeResetsRepo(),
		rt: &fakeRefreshRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository                 { return m.f }
func (m *fakeRepoManager) Shares(db dbx.DBTX) sharesrepo.Repository               { return m.s }
func (m *fakeRepoManager) Resets(db dbx.DBTX) resetsrepo.Repository               { return m.p }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.rt }
