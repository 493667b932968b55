package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/user"
)

const (
	orderColumns = `id, user_id, user_email, COALESCE(user_name, ''), status, total,
		delivery_address, payment_method, tracking_number, created_at`

	lockCustomerSQL = `SELECT id, email, COALESCE(name, '') FROM users WHERE id = $1 FOR UPDATE`

	insertOrderSQL = `INSERT INTO orders (id, user_id, user_email, user_name, status, total,
			delivery_address, payment_method, tracking_number, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, position, product_id, name, price, quantity, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id`

	listUserOrdersSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`

	getOrderByTrackingSQL = `SELECT ` + orderColumns + ` FROM orders WHERE tracking_number = $1`

	lockOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	setOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	listOrderItemsSQL = `SELECT order_id, id, product_id, name, price, quantity, image
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`

	trackingConstraint = "orders_tracking_number_key"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// WithinTx runs fn in a database transaction that commits only when fn
// returns nil.
func (r *OrderRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// List returns orders newest first with their lines. An empty userID lists
// every order.
func (r *OrderRepository) List(ctx context.Context, userID string) ([]order.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if userID == "" {
		rows, err = r.pool.Query(ctx, listAllOrdersSQL)
	} else {
		rows, err = r.pool.Query(ctx, listUserOrdersSQL, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := attachItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetByTracking returns the order with the tracking number.
func (r *OrderRepository) GetByTracking(ctx context.Context, trackingNumber string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByTrackingSQL, trackingNumber)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", trackingNumber, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", trackingNumber, err)
	}
	orders := []order.Order{o}
	if err := attachItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// UpdateStatus locks the order row, lets decide pick the next status and
// stores it in the same transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, decide func(*order.Order) (order.Status, error)) (*order.Order, error) {
	var updated *order.Order
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockOrderSQL, id)
		if err != nil {
			return fmt.Errorf("locking order %q: %w", id, err)
		}
		o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}

		next, err := decide(&o)
		if err != nil {
			return err
		}
		if next != o.Status {
			if _, err := tx.Exec(ctx, setOrderStatusSQL, id, string(next)); err != nil {
				return fmt.Errorf("updating status of order %q: %w", id, err)
			}
			o.Status = next
		}

		orders := []order.Order{o}
		if err := attachItems(ctx, tx, orders); err != nil {
			return err
		}
		updated = &orders[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) LockCustomer(ctx context.Context, userID string) (order.Customer, error) {
	var c order.Customer
	err := t.tx.QueryRow(ctx, lockCustomerSQL, userID).Scan(&c.ID, &c.Email, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Customer{}, user.ErrNotFound
		}
		return order.Customer{}, fmt.Errorf("locking user %q: %w", userID, err)
	}
	return c, nil
}

func (t *orderTx) CartLines(ctx context.Context, userID string) ([]cart.Line, error) {
	return cartLines(ctx, t.tx, userID)
}

func (t *orderTx) Insert(ctx context.Context, o *order.Order) error {
	_, err := t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.UserEmail, o.UserName, string(o.Status), o.Total,
		o.DeliveryAddress, o.PaymentMethod, o.TrackingNumber, o.CreatedAt)
	if err != nil {
		if violates(err, codeUniqueViolation, trackingConstraint) {
			return order.ErrTrackingConflict
		}
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(insertOrderItemSQL, it.ID, o.ID, i, it.ProductID, it.Name, it.Price, it.Quantity, it.Image)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting items of order %q: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) ClearCart(ctx context.Context, userID string) (int, error) {
	tag, err := t.tx.Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return int(tag.RowsAffected()), nil
}

// attachItems loads the lines of every order in one query.
func attachItems(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	type item struct {
		orderID string
		line    order.Line
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (item, error) {
		var it item
		err := row.Scan(&it.orderID, &it.line.ID, &it.line.ProductID, &it.line.Name,
			&it.line.Price, &it.line.Quantity, &it.line.Image)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	for _, it := range items {
		i := index[it.orderID]
		orders[i].Items = append(orders[i].Items, it.line)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.UserEmail, &o.UserName, &status, &o.Total,
		&o.DeliveryAddress, &o.PaymentMethod, &o.TrackingNumber, &o.CreatedAt)
	o.Status = order.Status(status)
	return o, err
}
