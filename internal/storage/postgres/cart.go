package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/product"
)

const (
	listCartLinesSQL = `SELECT c.id, c.user_id, c.product_id, c.quantity, c.added_at,
			p.name, p.price, p.seller, p.category, p.image
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.added_at DESC, c.id`

	upsertCartLineSQL = `INSERT INTO cart_items (id, user_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	setCartQuantitySQL = `UPDATE cart_items SET quantity = $3 WHERE id = $1 AND user_id = $2`

	deleteCartLineSQL = `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Lines returns the user's cart joined with current product data.
func (r *CartRepository) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	return cartLines(ctx, r.pool, userID)
}

// Add inserts l or increments the quantity of the existing line for the
// same product.
func (r *CartRepository) Add(ctx context.Context, l cart.Line) error {
	_, err := r.pool.Exec(ctx, upsertCartLineSQL, l.ID, l.UserID, l.ProductID, l.Quantity, l.AddedAt)
	if err != nil {
		if violates(err, codeForeignKeyViolation, "") {
			return product.ErrNotFound
		}
		if violates(err, codeCheckViolation, "cart_items_quantity_check") {
			return cart.ErrQuantityTooLarge
		}
		return fmt.Errorf("adding product %q to cart: %w", l.ProductID, err)
	}
	return nil
}

// SetQuantity updates one of the user's lines.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, lineID string, qty int) error {
	tag, err := r.pool.Exec(ctx, setCartQuantitySQL, lineID, userID, qty)
	if err != nil {
		return fmt.Errorf("updating cart line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// Remove deletes one of the user's lines.
func (r *CartRepository) Remove(ctx context.Context, userID, lineID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartLineSQL, lineID, userID)
	if err != nil {
		return fmt.Errorf("removing cart line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func cartLines(ctx context.Context, q querier, userID string) ([]cart.Line, error) {
	rows, err := q.Query(ctx, listCartLinesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var (
			l        cart.Line
			category string
		)
		err := row.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.AddedAt,
			&l.Name, &l.Price, &l.Seller, &category, &l.Image)
		l.Category = product.Category(category)
		return l, err
	})
}
