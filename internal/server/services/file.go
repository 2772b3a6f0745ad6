// Package services contains server-side business logic. This file implements
// FileService: encrypted upload, authorized download and deletion of files,
// with storage quota accounting.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/vaultshare/internal/common"
	"github.com/dmitrijs2005/vaultshare/internal/dbx"
	"github.com/dmitrijs2005/vaultshare/internal/logging"
	"github.com/dmitrijs2005/vaultshare/internal/server/blobcodec"
	"github.com/dmitrijs2005/vaultshare/internal/server/keystore"
	"github.com/dmitrijs2005/vaultshare/internal/server/models"
	"github.com/dmitrijs2005/vaultshare/internal/server/policy"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultshare/internal/server/storage"
)

// FileService stores, serves and deletes encrypted files. Ciphertext lives in
// a BlobStore; metadata and quota accounting live in PostgreSQL.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.BlobStore
	logger      logging.Logger

	// deleteLocks serializes concurrent deletes of the same file so the
	// row removal and quota release run exactly once.
	deleteLocks sync.Map
}

// NewFileService constructs a FileService.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, store storage.BlobStore, logger logging.Logger) *FileService {
	return &FileService{db: db, repomanager: m, store: store, logger: logger}
}

// storageKeyFor derives a fresh collision-resistant object key. The date
// prefix keeps listings of the underlying bucket manageable.
func storageKeyFor(now time.Time) string {
	return fmt.Sprintf("users/%04d/%02d/%02d/%s", now.Year(), now.Month(), now.Day(), uuid.NewString())
}

// Store encrypts the content of src under a fresh per-file key, streams the
// ciphertext into blob storage and records file metadata. The owner's quota
// is reserved for the ciphertext size in the same transaction that creates
// the metadata row; on quota overflow the blob is removed again and
// common.ErrQuotaExceeded is returned.
func (s *FileService) Store(ctx context.Context, owner *models.User, name string, src io.Reader) (*models.File, error) {
	key, err := keystore.Generate()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	storageKey := storageKeyFor(time.Now())

	type encResult struct {
		written int64
		err     error
	}
	resCh := make(chan encResult, 1)

	pr, pw := io.Pipe()
	go func() {
		written, encErr := blobcodec.Encrypt(key, pw, src)
		pw.CloseWithError(encErr)
		resCh <- encResult{written: written, err: encErr}
	}()

	location, putErr := s.store.Put(ctx, storageKey, pr)
	// unblock the encoder if the upload died mid-stream
	pr.CloseWithError(putErr)
	res := <-resCh

	if res.err != nil {
		if putErr == nil {
			s.cleanupBlob(ctx, location)
		}
		return nil, fmt.Errorf("encrypting upload: %w", res.err)
	}
	if putErr != nil {
		return nil, fmt.Errorf("storing blob: %w", putErr)
	}

	file := &models.File{
		Name:          name,
		OwnerID:       owner.ID,
		StorageKey:    location,
		EncryptionKey: keystore.Serialize(key),
		IsEncrypted:   true,
		SizeBytes:     res.written,
	}

	var created *models.File
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).ReserveQuota(ctx, owner.ID, res.written); err != nil {
			return err
		}
		var createErr error
		created, createErr = s.repomanager.Files(tx).Create(ctx, file)
		return createErr
	})
	if err != nil {
		s.cleanupBlob(ctx, location)
		return nil, err
	}

	s.logger.Info(ctx, "file stored", "file_id", created.ID, "owner_id", owner.ID, "size", res.written)
	return created, nil
}

// Load streams the decrypted content of the file to dst, provided the actor
// is authorized to read it. grant may be nil; non-owners need a grant naming
// them as recipient. The returned count is plaintext bytes written.
//
// A metadata row whose blob has gone missing is reported as an internal
// error, not as not-found: the file still exists as far as the owner knows.
func (s *FileService) Load(ctx context.Context, actor *models.User, fileID string, grant *models.FileShare, dst io.Writer) (int64, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return 0, err
	}

	if d := policy.CanDownloadFile(actor, file, grant); !d.Allowed {
		s.logger.Warn(ctx, "download denied", "file_id", fileID, "actor_id", actor.ID, "reason", d.Reason)
		return 0, common.ErrPermissionDenied
	}

	key, err := keystore.Deserialize(file.EncryptionKey)
	if err != nil {
		return 0, err
	}
	defer common.WipeByteArray(key)

	rc, err := s.store.Get(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "blob missing for existing file", "file_id", fileID, "storage_key", file.StorageKey)
			return 0, fmt.Errorf("%w: blob missing for file %s", common.ErrorInternal, fileID)
		}
		return 0, err
	}
	defer rc.Close()

	return blobcodec.Decrypt(key, dst, rc)
}

// Delete removes a file: the metadata row and the quota reservation go away
// transactionally, then the blob is deleted best-effort. Authorization
// follows the staff/manager/owner precedence rules.
func (s *FileService) Delete(ctx context.Context, actor *models.User, fileID string) error {
	muIface, _ := s.deleteLocks.LoadOrStore(fileID, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	defer func() {
		mu.Unlock()
		s.deleteLocks.Delete(fileID)
	}()

	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return err
	}

	owner, err := s.repomanager.Users(s.db).GetByID(ctx, file.OwnerID)
	if err != nil {
		return err
	}

	if d := policy.CanDeleteFile(actor, owner); !d.Allowed {
		s.logger.Warn(ctx, "delete denied", "file_id", fileID, "actor_id", actor.ID, "reason", d.Reason)
		return common.ErrPermissionDenied
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).Delete(ctx, fileID); err != nil {
			return err
		}
		return s.repomanager.Users(tx).ReleaseQuota(ctx, owner.ID, file.SizeBytes)
	})
	if err != nil {
		return err
	}

	s.cleanupBlob(ctx, file.StorageKey)
	s.logger.Info(ctx, "file deleted", "file_id", fileID, "actor_id", actor.ID)
	return nil
}

// cleanupBlob removes a blob best-effort; a leaked blob costs storage but
// never correctness, so failures are only logged.
func (s *FileService) cleanupBlob(ctx context.Context, location string) {
	if err := s.store.Delete(ctx, location); err != nil {
		s.logger.Error(ctx, "blob cleanup failed", "storage_key", location, "error", err.Error())
	}
}
