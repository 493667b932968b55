// Package product is the catalog: products and their price-history audit log.
package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/apperr"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = apperr.New(apperr.KindNotFound, "product-not-found")
	// ErrMissingFields is returned when a create request lacks required fields.
	ErrMissingFields = apperr.New(apperr.KindValidation, "missing-required-fields")
	// ErrInvalidCategory is returned for a category outside Categories.
	ErrInvalidCategory = apperr.New(apperr.KindValidation, "invalid-category")
	// ErrInvalidPrice is returned for a negative price, one with more than
	// two decimal places, or one of ten billion or more.
	ErrInvalidPrice = apperr.New(apperr.KindValidation, "invalid-price")
	// ErrInvalidRating is returned for a rating outside [0, 5].
	ErrInvalidRating = apperr.New(apperr.KindValidation, "invalid-rating")
	// ErrNoUpdates is returned for a patch that changes nothing.
	ErrNoUpdates = apperr.New(apperr.KindValidation, "no-updates-provided")
)

// Category groups products in the storefront.
type Category string

const (
	CategoryTropical   Category = "Tropical"
	CategorySucculents Category = "Succulents"
	CategoryIndoor     Category = "Indoor"
	CategoryOutdoor    Category = "Outdoor"
	CategoryLowLight   Category = "Low Light"
)

// Categories lists every accepted category.
var Categories = []Category{
	CategoryTropical, CategorySucculents, CategoryIndoor, CategoryOutdoor, CategoryLowLight,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Rating    decimal.Decimal
	Seller    string
	Category  Category
	Image     string
	UpdatedAt time.Time
}

// Patch lists the fields of an update; nil fields are left unchanged.
type Patch struct {
	Name     *string
	Price    *decimal.Decimal
	Rating   *decimal.Decimal
	Seller   *string
	Category *Category
	Image    *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.Rating == nil &&
		p.Seller == nil && p.Category == nil && p.Image == nil
}

// PriceChange is one entry of a product's price-history audit log.
type PriceChange struct {
	ProductID string
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
	ChangedBy string
	ChangedAt time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	// Update applies patch atomically. When the price changes, a PriceChange
	// attributed to changedBy is recorded in the same unit of work.
	Update(ctx context.Context, id string, patch Patch, changedBy string) (*Product, error)
	Delete(ctx context.Context, id string) error
	PriceHistory(ctx context.Context, id string) ([]PriceChange, error)
}
