// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account. Email is stored normalized and never changes;
// PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
