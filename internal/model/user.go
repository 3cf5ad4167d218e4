// Package model defines the data structures used throughout the application.
package model

import "time"

// Role controls what a user may delete. Admins may delete any post or account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a registered account.
//
// Fingerprint is derived from the Google OAuth subject (see auth.Fingerprint).
// It is empty for accounts created through the username-only login, and the
// store keeps it NULL in that case so the UNIQUE constraint only applies to
// real fingerprints.
//
// AvatarURL holds a PNG encoded as a data URI, generated once and persisted.
type User struct {
	ID          string    `json:"id"          db:"id"`
	Username    string    `json:"username"    db:"username"`
	Fingerprint string    `json:"-"           db:"fingerprint"`
	AvatarURL   string    `json:"avatarUrl"   db:"avatar_url"`
	Role        Role      `json:"role"        db:"role"`
	MemberSince time.Time `json:"memberSince" db:"member_since"`
}

// IsAdmin reports whether the user currently holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
