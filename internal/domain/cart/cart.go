// Package cart holds each user's pending purchase intent.
package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/apperr"
	"github.com/xenking/plantshop/internal/domain/product"
)

var (
	// ErrLineNotFound is returned when a cart line does not exist or belongs
	// to another user.
	ErrLineNotFound = apperr.New(apperr.KindNotFound, "cart-item-not-found")
	// ErrProductRequired is returned when adding without a product id.
	ErrProductRequired = apperr.New(apperr.KindValidation, "productId-required")
	// ErrQuantityTooLarge is returned when a line would hold more than
	// MaxQuantity units.
	ErrQuantityTooLarge = apperr.New(apperr.KindValidation, "quantity-too-large")
)

// MaxQuantity bounds the units of one product in a cart line.
const MaxQuantity = 10_000

// Line is one product and quantity in a user's cart, joined with the
// catalog data current at read time.
type Line struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	AddedAt   time.Time

	Name     string
	Price    decimal.Decimal
	Seller   string
	Category product.Category
	Image    string
}

// Subtotal returns price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Repository persists cart lines. Every operation is scoped by userID; at
// most one line exists per (user, product).
type Repository interface {
	// Lines returns the user's lines joined with product data, newest first.
	Lines(ctx context.Context, userID string) ([]Line, error)
	// Add inserts l, or increments the quantity of the user's existing line
	// for the same product. Returns product.ErrNotFound for unknown products
	// and ErrQuantityTooLarge when the merged quantity exceeds MaxQuantity.
	Add(ctx context.Context, l Line) error
	// SetQuantity returns ErrLineNotFound unless the line belongs to userID.
	SetQuantity(ctx context.Context, userID, lineID string, qty int) error
	// Remove returns ErrLineNotFound unless the line belongs to userID.
	Remove(ctx context.Context, userID, lineID string) error
}
