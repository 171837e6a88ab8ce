// Package products persists per-user product records.
package products

import (
	"context"

	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

// Repository scopes every read and write by owner; a product owned by someone
// else is reported as common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, p *models.Product) error
	Get(ctx context.Context, userID, id int64) (*models.Product, error)
	// List returns one page of products matching filter, newest first, plus the total match count.
	List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, int64, error)
	// Update overwrites the mutable fields of p and refreshes p.UpdatedAt.
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, userID, id int64) error
	SetImageKey(ctx context.Context, userID, id int64, key string) error
}
