// Package notify delivers password reset tokens to the user through an
// out-of-band channel.
package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/logging"
)

// ResetNotice is what a user needs to finish a password reset.
type ResetNotice struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, n ResetNotice) error
}

// LogNotifier only records the dispatch. The token itself is logged at debug
// level so local setups without a message bus can still complete resets.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyPasswordReset(ctx context.Context, notice ResetNotice) error {
	n.log.Info(ctx, "password reset requested", "user_id", notice.UserID, "expires_at", notice.ExpiresAt)
	n.log.Debug(ctx, "password reset token", "user_id", notice.UserID, "token", notice.Token)
	return nil
}
