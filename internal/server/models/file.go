package models

import "time"

// File describes server-side metadata for an encrypted payload. The
// ciphertext itself lives in blob storage under StorageKey.
//
// EncryptionKey is the serialized per-file symmetric key. It is set once at
// creation and never changes; the same holds for OwnerID. SizeBytes is the
// ciphertext length at the time of the write.
type File struct {
	ID            string
	Name          string
	OwnerID       string
	StorageKey    string
	EncryptionKey string
	IsEncrypted   bool
	SizeBytes     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
