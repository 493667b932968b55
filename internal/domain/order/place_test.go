package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/plantshop/internal/domain/apperr"
	"github.com/xenking/plantshop/internal/domain/cart"
)

type testActor string

func (a testActor) Subject() string { return string(a) }
func (a testActor) IsAdmin() bool   { return false }

// scriptedRepo commits inserts only when the unit of work succeeds and
// fails the first conflicts inserts with ErrTrackingConflict.
type scriptedRepo struct {
	lines     []cart.Line
	conflicts int
	insertErr error
	committed []Order
	attempts  int
	cleared   bool
}

type scriptedTx struct {
	repo    *scriptedRepo
	pending []Order
	clear   bool
}

func (r *scriptedRepo) WithinTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	tx := &scriptedTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.committed = append(r.committed, tx.pending...)
	if tx.clear {
		r.lines = nil
		r.cleared = true
	}
	return nil
}

func (r *scriptedRepo) List(context.Context, string) ([]Order, error) { return r.committed, nil }

func (r *scriptedRepo) GetByTracking(context.Context, string) (*Order, error) {
	return nil, ErrNotFound
}

func (r *scriptedRepo) UpdateStatus(context.Context, string, func(*Order) (Status, error)) (*Order, error) {
	return nil, ErrNotFound
}

func (t *scriptedTx) LockCustomer(_ context.Context, id string) (Customer, error) {
	return Customer{ID: id, Email: id + "@plants.test"}, nil
}

func (t *scriptedTx) CartLines(context.Context, string) ([]cart.Line, error) {
	return t.repo.lines, nil
}

func (t *scriptedTx) Insert(_ context.Context, o *Order) error {
	t.repo.attempts++
	if t.repo.insertErr != nil {
		return t.repo.insertErr
	}
	if t.repo.attempts <= t.repo.conflicts {
		return ErrTrackingConflict
	}
	t.pending = append(t.pending, *o)
	return nil
}

func (t *scriptedTx) ClearCart(context.Context, string) (int, error) {
	t.clear = true
	return len(t.repo.lines), nil
}

func oneLine() []cart.Line {
	return []cart.Line{{ProductID: "P", Name: "Fern", Price: decimal.NewFromInt(12), Quantity: 2}}
}

func TestPlace_RetriesTrackingConflict(t *testing.T) {
	repo := &scriptedRepo{lines: oneLine(), conflicts: 2}
	svc := NewService(repo)

	o, err := svc.Place(context.Background(), testActor("u1"), PlaceRequest{DeliveryAddress: "a", PaymentMethod: "b"})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.attempts)
	assert.True(t, decimal.NewFromInt(24).Equal(o.Total))
	assert.Len(t, repo.committed, 1)
	assert.True(t, repo.cleared)
}

func TestPlace_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := &scriptedRepo{lines: oneLine(), conflicts: 100}
	svc := NewService(repo)

	_, err := svc.Place(context.Background(), testActor("u1"), PlaceRequest{DeliveryAddress: "a", PaymentMethod: "b"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.Equal(t, "order-create-failed", apperr.ReasonOf(err, ""))
	assert.Equal(t, maxPlaceAttempts, repo.attempts)
	assert.Empty(t, repo.committed)
	assert.Len(t, repo.lines, 1)
}

func TestPlace_InsertFailureKeepsCart(t *testing.T) {
	repo := &scriptedRepo{lines: oneLine(), insertErr: errors.New("disk full")}
	svc := NewService(repo)

	_, err := svc.Place(context.Background(), testActor("u1"), PlaceRequest{DeliveryAddress: "a", PaymentMethod: "b"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, repo.committed)
	assert.False(t, repo.cleared)
	assert.Len(t, repo.lines, 1)
}
