package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/vaultshare/internal/common"
	"github.com/dmitrijs2005/vaultshare/internal/server/models"
	"github.com/dmitrijs2005/vaultshare/internal/server/storage"
)

func newShareFixture(t *testing.T, mockTxPairs int) (*ShareService, *FileService, *fakeRepoManager, func()) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	for i := 0; i < mockTxPairs; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	rm := newFakeRepoManager()
	store := storage.NewMemoryStore()
	files := NewFileService(db, rm, store, testLogger())
	shares := NewShareService(db, rm, files, nil, testLogger())
	return shares, files, rm, func() { db.Close() }
}

func TestShareService_IssueAndDownload_RoundTrip(t *testing.T) {
	shares, files, rm, closeFn := newShareFixture(t, 1)
	defer closeFn()

	owner := rm.u.add(&models.User{UserName: "alice", Email: "alice@example.com", StorageLimit: 1 << 20})
	recipient := rm.u.add(&models.User{UserName: "bob", Email: "bob@example.com"})

	plaintext := "quarterly numbers"
	file, err := files.Store(context.Background(), owner, "report.xlsx", strings.NewReader(plaintext))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	share, err := shares.Issue(context.Background(), owner, file.ID, "bob")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if share.Token == "" || share.Downloaded {
		t.Fatalf("unexpected share: %+v", share)
	}

	var out bytes.Buffer
	n, err := shares.Download(context.Background(), recipient, share.Token, &out)
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if n != int64(len(plaintext)) || out.String() != plaintext {
		t.Fatalf("content mismatch: n=%d got %q", n, out.String())
	}

	stored := rm.s.byID[share.ID]
	if !stored.Downloaded || stored.DownloadedAt == nil {
		t.Fatalf("download not recorded: %+v", stored)
	}

	// a grant stays usable after the first download and keeps its timestamp
	firstDownload := *stored.DownloadedAt
	out.Reset()
	if _, err := shares.Download(context.Background(), recipient, share.Token, &out); err != nil {
		t.Fatalf("second Download error: %v", err)
	}
	if out.String() != plaintext {
		t.Fatalf("second download mismatch")
	}
	if !stored.DownloadedAt.Equal(firstDownload) {
		t.Fatalf("first-download timestamp overwritten")
	}
}

func TestShareService_Issue_NotOwner(t *testing.T) {
	shares, files, rm, closeFn := newShareFixture(t, 1)
	defer closeFn()

	owner := rm.u.add(&models.User{UserName: "alice", StorageLimit: 1 << 20})
	other := rm.u.add(&models.User{UserName: "mallory"})
	rm.u.add(&models.User{UserName: "bob"})

	file, err := files.Store(context.Background(), owner, "secret.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	if _, err := shares.Issue(context.Background(), other, file.ID, "bob"); !errors.Is(err, common.ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}
}

func TestShareService_Issue_RecipientNotFound(t *testing.T) {
	shares, files, rm, closeFn := newShareFixture(t, 1)
	defer closeFn()

	owner := rm.u.add(&models.User{UserName: "alice", StorageLimit: 1 << 20})

	file, err := files.Store(context.Background(), owner, "doc.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	if _, err := shares.Issue(context.Background(), owner, file.ID, "ghost"); !errors.Is(err, common.ErrRecipientNotFound) {
		t.Fatalf("want ErrRecipientNotFound, got %v", err)
	}
}

func TestShareService_Issue_RetriesOnTokenCollision(t *testing.T) {
	shares, files, rm, closeFn := newShareFixture(t, 1)
	defer closeFn()

	owner := rm.u.add(&models.User{UserName: "alice", StorageLimit: 1 << 20})
	rm.u.add(&models.User{UserName: "bob"})

	file, err := files.Store(context.Background(), owner, "doc.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	rm.s.conflictsLeft = 2
	share, err := shares.Issue(context.Background(), owner, file.ID, "bob")
	if err != nil {
		t.Fatalf("Issue should survive token collisions: %v", err)
	}
	if share.Token == "" {
		t.Fatalf("no token allocated")
	}
}

func TestShareService_Download_UnknownToken(t *testing.T) {
	shares, _, rm, closeFn := newShareFixture(t, 0)
	defer closeFn()

	actor := rm.u.add(&models.User{UserName: "bob"})

	var out bytes.Buffer
	if _, err := shares.Download(context.Background(), actor, "deadbeef", &out); !errors.Is(err, common.ErrTokenNotFound) {
		t.Fatalf("want ErrTokenNotFound, got %v", err)
	}
}

func TestShareService_Download_WrongRecipient(t *testing.T) {
	shares, files, rm, closeFn := newShareFixture(t, 1)
	defer closeFn()

	owner := rm.u.add(&models.User{UserName: "alice", StorageLimit: 1 << 20})
	rm.u.add(&models.User{UserName: "bob"})
	mallory := rm.u.add(&models.User{UserName: "mallory"})

	file, err := files.Store(context.Background(), owner, "doc.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	share, err := shares.Issue(context.Background(), owner, file.ID, "bob")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	var out bytes.Buffer
	if _, err := shares.Download(context.Background(), mallory, share.Token, &out); !errors.Is(err, common.ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied for wrong recipient, got %v", err)
	}
}
