package models

import "time"

// PasswordResetToken is the single pending reset grant of a user.
type PasswordResetToken struct {
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
