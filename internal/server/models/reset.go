package models

import "time"

// PasswordReset is a single-use, time-bounded password reset request.
// The row is deleted on redemption; expiry is evaluated lazily on each check.
type PasswordReset struct {
	ID        string
	UserID    string
	Token     string
	CreatedAt time.Time
}

// ResetTokenValidity is how long a password reset token stays valid.
const ResetTokenValidity = time.Hour

// Expired reports whether the request is past its validity window at now.
func (p *PasswordReset) Expired(now time.Time) bool {
	return now.After(p.CreatedAt.Add(ResetTokenValidity))
}
