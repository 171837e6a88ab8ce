package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

// PostgresRepository implements product storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = `id, user_id, name, description, price_cents, quantity, image_key, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (user_id, name, description, price_cents, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, p.UserID, p.Name, p.Description, p.PriceCents, p.Quantity).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND user_id = $2`

	p := &models.Product{}
	if err := scanProduct(r.db.QueryRowContext(ctx, query, id, userID), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner, p *models.Product) error {
	return s.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.PriceCents, &p.Quantity,
		&p.ImageKey, &p.CreatedAt, &p.UpdatedAt)
}

// escapeLike makes s safe to embed in an ILIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (r *PostgresRepository) List(ctx context.Context, f models.ProductFilter) ([]*models.Product, int64, error) {
	where := `WHERE user_id = $1`
	args := []any{f.UserID}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		where += ` AND (name ILIKE $2 OR description ILIKE $2)`
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select products: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Product, 0, f.Limit)
	for rows.Next() {
		p := &models.Product{}
		if err := scanProduct(rows, p); err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $3, description = $4, price_cents = $5, quantity = $6, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.UserID, p.Name, p.Description, p.PriceCents, p.Quantity).
		Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.execOne(ctx, `DELETE FROM products WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *PostgresRepository) SetImageKey(ctx context.Context, userID, id int64, key string) error {
	return r.execOne(ctx,
		`UPDATE products SET image_key = $3, updated_at = now() WHERE id = $1 AND user_id = $2`,
		id, userID, key)
}

// execOne runs a statement expected to touch exactly one owned row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
