// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

// Repository defines operations for persisting, consuming and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token row and fills in its ID.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find looks up a refresh token by its opaque token string.
	// Implementations return common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Consume atomically removes the token and returns the removed row, so that
	// of two concurrent consumers only one observes it. Expiry is not checked.
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes the refresh token of userID with the given token string.
	// A token that is absent or belongs to another user is left alone and is
	// not an error.
	Delete(ctx context.Context, userID int64, token string) error

	// DeleteByUser removes every refresh token of userID and reports how many were removed.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}
