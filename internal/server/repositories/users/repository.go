// Package users declares the credential store: the repository contract for
// user accounts and its PostgreSQL implementation.
package users

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

// Repository is the credential store. Lookups by email expect a normalized
// address (see NormalizeEmail).
type Repository interface {
	// Create inserts user and fills in its ID and timestamps. A duplicate
	// email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	// UpdatePasswordHash replaces the stored hash; an unknown id yields common.ErrorNotFound.
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// NormalizeEmail returns the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
