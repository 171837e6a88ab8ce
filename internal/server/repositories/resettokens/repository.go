// Package resettokens stores pending password reset grants, at most one per user.
package resettokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

type Repository interface {
	// Upsert stores token for its user, replacing any previous token and expiry of that user.
	Upsert(ctx context.Context, token *models.PasswordResetToken) error
	// Find returns the row for token or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.PasswordResetToken, error)
	// Consume atomically deletes and returns the row for token; common.ErrorNotFound when absent.
	Consume(ctx context.Context, token string) (*models.PasswordResetToken, error)
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes every row whose expiry is not after now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
