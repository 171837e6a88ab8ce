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

// DefaultRefreshTTL is the lifetime of refresh tokens.
const DefaultRefreshTTL = 7 * 24 * time.Hour

// Rotation failure details; callers only ever see common.ErrInvalidRefreshToken.
var (
	errRefreshUnknown = fmt.Errorf("%w: unknown token", common.ErrInvalidRefreshToken)
	errRefreshExpired = fmt.Errorf("%w: expired", common.ErrInvalidRefreshToken)
)

// RefreshLedger issues, rotates and revokes persisted refresh tokens.
type RefreshLedger struct {
	repos repomanager.RepositoryManager
	ttl   time.Duration
	now   func() time.Time
	log   logging.Logger
}

func NewRefreshLedger(m repomanager.RepositoryManager, ttl time.Duration, log logging.Logger) *RefreshLedger {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	return &RefreshLedger{repos: m, ttl: ttl, now: time.Now, log: log.With("module", "refresh_ledger")}
}

// Issue creates and persists a fresh token for userID through db, which may
// be the pool or an open transaction.
func (l *RefreshLedger) Issue(ctx context.Context, db dbx.DBTX, userID int64) (string, error) {
	token, err := common.MakeOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}

	rt := &models.RefreshToken{UserID: userID, Token: token, ExpiresAt: l.now().Add(l.ttl)}
	if err := l.repos.RefreshTokens(db).Create(ctx, rt); err != nil {
		return "", fmt.Errorf("storing refresh token: %w", err)
	}
	return token, nil
}

// Rotate consumes presented and issues a replacement for the same user in one
// transaction. Unknown and expired tokens both yield
// common.ErrInvalidRefreshToken; storage failures yield common.ErrorInternal.
func (l *RefreshLedger) Rotate(ctx context.Context, presented string) (int64, string, error) {
	if presented == "" {
		return 0, "", common.ErrInvalidRefreshToken
	}

	var (
		userID   int64
		newToken string
		reason   error
	)

	err := l.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		rt, err := l.repos.RefreshTokens(tx).Consume(ctx, presented)
		if errors.Is(err, common.ErrorNotFound) {
			reason = errRefreshUnknown
			return nil
		}
		if err != nil {
			return err
		}
		// the expired row stays deleted
		if rt.Expired(l.now()) {
			reason = errRefreshExpired
			return nil
		}

		userID = rt.UserID
		newToken, err = l.Issue(ctx, tx, userID)
		return err
	})
	if err != nil {
		l.log.Error(ctx, "refresh token rotation failed", "error", err)
		return 0, "", common.ErrorInternal
	}
	if reason != nil {
		l.log.Info(ctx, "refresh token rejected", "reason", reason)
		return 0, "", common.ErrInvalidRefreshToken
	}

	return userID, newToken, nil
}

// Revoke deletes token if it is owned by userID. Unknown or foreign tokens
// are not an error.
func (l *RefreshLedger) Revoke(ctx context.Context, userID int64, token string) error {
	if token == "" {
		return nil
	}
	if err := l.repos.RefreshTokens(l.repos.Conn()).Delete(ctx, userID, token); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return nil
}

// RevokeAll deletes every refresh token of userID.
func (l *RefreshLedger) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	n, err := l.repos.RefreshTokens(l.repos.Conn()).DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return n, nil
}
