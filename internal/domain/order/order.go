// Package order is the order engine: it turns a user's cart into an
// immutable order and moves orders through their status lifecycle.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/apperr"
	"github.com/xenking/plantshop/internal/domain/cart"
)

var (
	// ErrEmptyCart is returned when placing an order from an empty cart.
	ErrEmptyCart = apperr.New(apperr.KindValidation, "cart-empty")
	// ErrDetailsRequired is returned when the delivery address or payment
	// method is empty.
	ErrDetailsRequired = apperr.New(apperr.KindValidation, "deliveryAddress-and-paymentMethod-required")
	// ErrNotFound is returned when no order matches, or the caller may not see it.
	ErrNotFound = apperr.New(apperr.KindNotFound, "order-not-found")
	// ErrInvalidStatus is returned for a status outside the four known values.
	ErrInvalidStatus = apperr.New(apperr.KindValidation, "invalid-status")
	// ErrInvalidTransition is returned when the lifecycle forbids moving from
	// the current status to the requested one.
	ErrInvalidTransition = apperr.New(apperr.KindConflict, "invalid-status-transition")
	// ErrUnauthenticated is returned when no actor is supplied.
	ErrUnauthenticated = apperr.New(apperr.KindAuth, "unauthorized")
	// ErrForbidden is returned when a non-admin actor requests an admin operation.
	ErrForbidden = apperr.New(apperr.KindForbidden, "forbidden")
	// ErrTrackingConflict is returned by Tx.Insert when the tracking number
	// is already taken. The service retries with a fresh number.
	ErrTrackingConflict = apperr.New(apperr.KindConflict, "tracking-number-conflict")
)

// Actor is the authenticated caller of an order operation.
type Actor interface {
	Subject() string
	IsAdmin() bool
}

// Order is an immutable snapshot of a completed purchase. Only Status changes
// after creation.
type Order struct {
	ID              string
	UserID          string
	UserEmail       string
	UserName        string
	Items           []Line
	Total           decimal.Decimal
	Status          Status
	CreatedAt       time.Time
	DeliveryAddress string
	PaymentMethod   string
	TrackingNumber  string
}

// Line is a frozen purchase-time copy of one product.
type Line struct {
	ID        string
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Image     string
}

// Customer is the user snapshot denormalized into an order.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// Tx is the unit of work in which an order is placed. Nothing written
// through a Tx is visible unless the enclosing WithinTx returns nil.
type Tx interface {
	// LockCustomer returns the user snapshot and holds a lock that
	// serialises order placement for that user until the unit ends.
	LockCustomer(ctx context.Context, userID string) (Customer, error)
	// CartLines returns the user's cart joined with current product data.
	CartLines(ctx context.Context, userID string) ([]cart.Line, error)
	// Insert stores the order header and its lines.
	Insert(ctx context.Context, o *Order) error
	// ClearCart deletes every cart line of the user.
	ClearCart(ctx context.Context, userID string) (int, error)
}

// Repository defines persistence operations for orders.
type Repository interface {
	// WithinTx runs fn in a single atomic unit of work.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// List returns orders newest first; an empty userID returns every order.
	List(ctx context.Context, userID string) ([]Order, error)
	// GetByTracking returns ErrNotFound when no order has the number.
	GetByTracking(ctx context.Context, trackingNumber string) (*Order, error)
	// UpdateStatus locks the order, asks decide for the new status and
	// stores it. Nothing is written when decide fails. Returns ErrNotFound
	// for an unknown id.
	UpdateStatus(ctx context.Context, id string, decide func(current *Order) (Status, error)) (*Order, error)
}

// Publisher announces order lifecycle events to other systems.
type Publisher interface {
	OrderPlaced(ctx context.Context, o *Order) error
	StatusChanged(ctx context.Context, o *Order, from Status) error
}

// Cache keeps recently tracked orders. A miss is (nil, nil).
//
// Lookups fill the cache with Add, which never replaces an entry; status
// changes overwrite it with Set. A lookup that read the order before a
// concurrent status change therefore cannot clobber the newer entry.
type Cache interface {
	Get(ctx context.Context, trackingNumber string) (*Order, error)
	// Add stores o unless an entry for its tracking number exists.
	Add(ctx context.Context, o *Order) error
	Set(ctx context.Context, o *Order) error
	Delete(ctx context.Context, trackingNumber string) error
}
