package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/vaultshare/internal/common"
)

// MemoryStore is an in-memory BlobStore used in tests and as a reference
// implementation of the contract.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; ok {
		return "", fmt.Errorf("%w: blob %s", common.ErrConflict, key)
	}
	s.blobs[key] = data
	return key, nil
}

func (s *MemoryStore) Get(ctx context.Context, location string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[location]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", common.ErrorNotFound, location)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

func (s *MemoryStore) Delete(ctx context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, location)
	return nil
}

// Len reports the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
