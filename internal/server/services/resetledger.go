package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/repomanager"
)

// DefaultResetTTL is the lifetime of password reset tokens.
const DefaultResetTTL = time.Hour

// ResetReason says why a reset token was rejected.
type ResetReason string

const (
	ReasonNone         ResetReason = ""
	ReasonUnknownToken ResetReason = "unknown_token"
	ReasonExpired      ResetReason = "expired"
)

// Message is the text shown to the caller for r.
func (r ResetReason) Message() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonExpired:
		return "Reset token has expired"
	default:
		return "Invalid or unknown reset token"
	}
}

// ResetCheck is the outcome of checking a reset token.
type ResetCheck struct {
	Valid  bool
	Reason ResetReason
}

func rejected(r ResetReason) ResetCheck { return ResetCheck{Reason: r} }

// ResetTokenError is returned by password reset confirmation for a token
// that cannot be used. It matches common.ErrInvalidResetToken.
type ResetTokenError struct {
	Reason ResetReason
}

func (e *ResetTokenError) Error() string { return e.Reason.Message() }

func (e *ResetTokenError) Unwrap() error { return common.ErrInvalidResetToken }

// ResetLedger keeps at most one outstanding password reset token per user.
type ResetLedger struct {
	repos repomanager.RepositoryManager
	ttl   time.Duration
	now   func() time.Time
	log   logging.Logger
}

func NewResetLedger(m repomanager.RepositoryManager, ttl time.Duration, log logging.Logger) *ResetLedger {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetLedger{repos: m, ttl: ttl, now: time.Now, log: log.With("module", "reset_ledger")}
}

// Issue creates a token for userID, replacing any token the user already has.
// Expired rows of all users are swept first; a failed sweep is only logged.
func (l *ResetLedger) Issue(ctx context.Context, userID int64) (string, time.Time, error) {
	repo := l.repos.ResetTokens(l.repos.Conn())
	now := l.now()

	if n, err := repo.DeleteExpired(ctx, now); err != nil {
		l.log.Warn(ctx, "sweeping expired reset tokens failed", "error", err)
	} else if n > 0 {
		l.log.Debug(ctx, "swept expired reset tokens", "count", n)
	}

	token, err := common.MakeOpaqueToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating reset token: %w", err)
	}

	t := &models.PasswordResetToken{UserID: userID, Token: token, ExpiresAt: now.Add(l.ttl)}
	if err := repo.Upsert(ctx, t); err != nil {
		return "", time.Time{}, fmt.Errorf("storing reset token: %w", err)
	}
	return token, t.ExpiresAt, nil
}

// Validate reports whether token could be used right now. It has no side
// effects on live tokens; an expired token is deleted.
func (l *ResetLedger) Validate(ctx context.Context, token string) (ResetCheck, error) {
	if token == "" {
		return rejected(ReasonUnknownToken), nil
	}

	repo := l.repos.ResetTokens(l.repos.Conn())

	t, err := repo.Find(ctx, token)
	if errors.Is(err, common.ErrorNotFound) {
		return rejected(ReasonUnknownToken), nil
	}
	if err != nil {
		return ResetCheck{}, err
	}

	if t.Expired(l.now()) {
		if err := repo.Delete(ctx, token); err != nil {
			l.log.Warn(ctx, "deleting expired reset token failed", "user_id", t.UserID, "error", err)
		}
		return rejected(ReasonExpired), nil
	}

	return ResetCheck{Valid: true}, nil
}

// Consume removes token through db and returns its owner when it was live.
// The removal is atomic, so of two concurrent consumers one sees
// ReasonUnknownToken. Expired tokens are removed as well.
func (l *ResetLedger) Consume(ctx context.Context, db dbx.DBTX, token string) (int64, ResetCheck, error) {
	if token == "" {
		return 0, rejected(ReasonUnknownToken), nil
	}

	t, err := l.repos.ResetTokens(db).Consume(ctx, token)
	if errors.Is(err, common.ErrorNotFound) {
		return 0, rejected(ReasonUnknownToken), nil
	}
	if err != nil {
		return 0, ResetCheck{}, err
	}

	if t.Expired(l.now()) {
		return 0, rejected(ReasonExpired), nil
	}

	return t.UserID, ResetCheck{Valid: true}, nil
}
