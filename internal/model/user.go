package model

import (
	"errors"
	"time"
)

// UserAccount is a login account as listed by the user management endpoints.
type UserAccount struct {
	Username string `json:"username"`
	Level    int    `json:"level"`
}

// ProtectedUsername is the account no client call may update or delete.
const ProtectedUsername = "admin"

// Protected reports whether the account is the reserved admin account.
func (u UserAccount) Protected() bool {
	return u.Username == ProtectedUsername
}

// MinPasswordLength is the shortest password accepted for new accounts.
const MinPasswordLength = 8

// ValidatePassword checks the password policy for new or reset passwords.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

// User is a stored account on the development backend.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Level        int       `json:"level"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account returns the public view of u.
func (u User) Account() UserAccount {
	return UserAccount{Username: u.Username, Level: u.Level}
}
