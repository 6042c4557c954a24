package domain

import (
	"strings"
	"time"
)

// UnusablePasswordPrefix marks a password hash that can never match any input.
const UnusablePasswordPrefix = "!"

// User represents an account of the site. Email is the login identifier.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool
	IsActive     bool
	IsSuperuser  bool
	Created      time.Time
	LastLogin    *time.Time
}

// String returns the username.
func (u User) String() string {
	return u.Username
}

// HasUsablePassword reports whether the account can log in with a password.
func (u User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, UnusablePasswordPrefix)
}
