package models

import "time"

// FileShare grants one recipient read access to one file via an unguessable
// token. Downloaded is monotonic: once set it is never cleared, and
// DownloadedAt keeps the timestamp of the first download.
type FileShare struct {
	ID           string
	FileID       string
	RecipientID  string
	Token        string
	CreatedAt    time.Time
	Downloaded   bool
	DownloadedAt *time.Time
}
