package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantshop/internal/domain/product"
)

const (
	productColumns = `id, name, price, rating, seller, category, image, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	lockProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, rating = EXCLUDED.rating,
			seller = EXCLUDED.seller, category = EXCLUDED.category, image = EXCLUDED.image,
			updated_at = EXCLUDED.updated_at`

	updateProductSQL = `UPDATE products
		SET name = $2, price = $3, rating = $4, seller = $5, category = $6, image = $7, updated_at = $8
		WHERE id = $1`

	insertPriceChangeSQL = `INSERT INTO product_price_history (product_id, old_price, new_price, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5)`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	listPriceHistorySQL = `SELECT product_id, old_price, new_price, changed_by, changed_at
		FROM product_price_history WHERE product_id = $1 ORDER BY changed_at DESC, id DESC`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return collectProduct(rows, id)
}

// Create stores p. An existing product with the same ID is overwritten,
// which keeps the seed tool re-runnable.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Price, p.Rating, p.Seller, string(p.Category), p.Image, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update applies patch under a row lock and appends a price-history entry
// in the same transaction when the price moves.
func (r *ProductRepository) Update(ctx context.Context, id string, patch product.Patch, changedBy string) (*product.Product, error) {
	var updated *product.Product
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockProductSQL, id)
		if err != nil {
			return fmt.Errorf("locking product %q: %w", id, err)
		}
		p, err := collectProduct(rows, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if patch.Price != nil && !patch.Price.Equal(p.Price) {
			if _, err := tx.Exec(ctx, insertPriceChangeSQL, id, p.Price, *patch.Price, changedBy, now); err != nil {
				return fmt.Errorf("recording price change of %q: %w", id, err)
			}
		}
		applyPatch(p, patch)
		p.UpdatedAt = now

		if _, err := tx.Exec(ctx, updateProductSQL,
			p.ID, p.Name, p.Price, p.Rating, p.Seller, string(p.Category), p.Image, p.UpdatedAt); err != nil {
			return fmt.Errorf("updating product %q: %w", id, err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a product; cart lines and history cascade.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// PriceHistory returns the recorded price changes of id, newest first.
func (r *ProductRepository) PriceHistory(ctx context.Context, id string) ([]product.PriceChange, error) {
	rows, err := r.pool.Query(ctx, listPriceHistorySQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing price history of %q: %w", id, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.PriceChange, error) {
		var c product.PriceChange
		err := row.Scan(&c.ProductID, &c.OldPrice, &c.NewPrice, &c.ChangedBy, &c.ChangedAt)
		return c, err
	})
}

func applyPatch(p *product.Product, patch product.Patch) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Rating != nil {
		p.Rating = *patch.Rating
	}
	if patch.Seller != nil {
		p.Seller = *patch.Seller
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
}

func collectProduct(rows pgx.Rows, id string) (*product.Product, error) {
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p        product.Product
		category string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Rating, &p.Seller, &category, &p.Image, &p.UpdatedAt)
	p.Category = product.Category(category)
	return p, err
}
