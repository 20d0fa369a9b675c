// Package models holds the persistent records of the identity store.
package models

import "time"

// User is an account. RefreshToken and RefreshTokenExpiresAt form one slot:
// both are set or both are nil.
type User struct {
	ID                    string
	UserName              string
	Email                 string
	PasswordHash          []byte
	CreatedAt             time.Time
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
}

// Role is a named group users can belong to.
type Role struct {
	ID   string
	Name string
}
