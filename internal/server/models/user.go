// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is the coarse role assigned to an account. It participates in
// access-policy decisions together with the IsStaff/IsSuperuser flags.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User is an account. StorageUsed is an accounting value maintained by the
// files repository on store/delete; it is never recomputed from file rows
// outside migrations.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash []byte
	Salt         []byte
	Role         Role
	// IsStaff marks elevated staff privilege, distinct from Role.
	IsStaff bool
	// IsSuperuser marks the super-admin privilege that overrides staff checks.
	IsSuperuser  bool
	StorageUsed  int64
	StorageLimit int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
