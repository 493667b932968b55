package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/user"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository in memory. Units of work hold
// the store mutex for their whole duration and apply their writes only when
// the callback succeeds.
type OrderRepository struct{ s *Store }

// WithinTx runs fn with exclusive access to the store.
func (r *OrderRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx := &memTx{s: r.s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, o := range tx.inserted {
		r.s.orders[o.ID] = o
		r.s.orderSeq[o.ID] = r.s.next()
	}
	for _, userID := range tx.cleared {
		r.s.clearCart(userID)
	}
	return nil
}

// List returns orders newest first, optionally filtered by owner.
func (r *OrderRepository) List(_ context.Context, userID string) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]order.Order, 0)
	for _, o := range r.s.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	slices.SortFunc(out, func(a, b order.Order) int {
		return cmp.Compare(r.s.orderSeq[b.ID], r.s.orderSeq[a.ID])
	})
	return out, nil
}

// GetByTracking returns the order with the tracking number.
func (r *OrderRepository) GetByTracking(_ context.Context, trackingNumber string) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, o := range r.s.orders {
		if o.TrackingNumber == trackingNumber {
			c := cloneOrder(o)
			return &c, nil
		}
	}
	return nil, order.ErrNotFound
}

// UpdateStatus stores the status chosen by decide.
func (r *OrderRepository) UpdateStatus(_ context.Context, id string, decide func(*order.Order) (order.Status, error)) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	current := cloneOrder(o)
	next, err := decide(&current)
	if err != nil {
		return nil, err
	}
	o.Status = next
	r.s.orders[id] = o
	c := cloneOrder(o)
	return &c, nil
}

type memTx struct {
	s        *Store
	inserted []order.Order
	cleared  []string
}

func (t *memTx) LockCustomer(_ context.Context, userID string) (order.Customer, error) {
	u, ok := t.s.users[userID]
	if !ok {
		return order.Customer{}, user.ErrNotFound
	}
	return order.Customer{ID: u.ID, Email: u.Email, Name: u.Name}, nil
}

func (t *memTx) CartLines(_ context.Context, userID string) ([]cart.Line, error) {
	if slices.Contains(t.cleared, userID) {
		return nil, nil
	}
	return t.s.cartLines(userID), nil
}

func (t *memTx) Insert(_ context.Context, o *order.Order) error {
	for _, existing := range t.s.orders {
		if existing.TrackingNumber == o.TrackingNumber {
			return order.ErrTrackingConflict
		}
	}
	for _, staged := range t.inserted {
		if staged.TrackingNumber == o.TrackingNumber {
			return order.ErrTrackingConflict
		}
	}
	t.inserted = append(t.inserted, cloneOrder(*o))
	return nil
}

func (t *memTx) ClearCart(_ context.Context, userID string) (int, error) {
	t.cleared = append(t.cleared, userID)
	return len(t.s.cartLines(userID)), nil
}

func cloneOrder(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	return o
}
