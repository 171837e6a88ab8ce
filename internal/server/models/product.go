package models

import "time"

// Product is a catalog record owned by a single user.
type Product struct {
	ID          int64
	UserID      int64
	Name        string
	Description string
	// PriceCents is the price in minor currency units.
	PriceCents int64
	Quantity   int64
	// ImageKey is the object-storage key of the product image, empty when none was uploaded.
	ImageKey  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductFilter narrows a product listing. Offset and Limit are already
// validated by the caller.
type ProductFilter struct {
	UserID int64
	Search string
	Offset int
	Limit  int
}
