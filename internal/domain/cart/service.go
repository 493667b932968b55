package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/plantshop/internal/domain/apperr"
	"github.com/xenking/plantshop/internal/domain/product"
)

// Catalog resolves product ids.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Service implements the cart operations of an authenticated user.
type Service struct {
	lines   Repository
	catalog Catalog
	now     func() time.Time
}

// NewService creates a cart Service.
func NewService(lines Repository, catalog Catalog) *Service {
	return &Service{lines: lines, catalog: catalog, now: time.Now}
}

// List returns the user's cart.
func (s *Service) List(ctx context.Context, userID string) ([]Line, error) {
	lines, err := s.lines.Lines(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence(err, "cart-fetch-failed")
	}
	return lines, nil
}

// Add puts qty units of productID into the user's cart, merging with an
// existing line for the same product. Quantities below 1 are raised to 1.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) error {
	if productID == "" {
		return ErrProductRequired
	}
	if qty > MaxQuantity {
		return ErrQuantityTooLarge
	}
	if _, err := s.catalog.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return product.ErrNotFound
		}
		return apperr.Persistence(err, "cart-add-failed")
	}

	err := s.lines.Add(ctx, Line{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  clamp(qty),
		AddedAt:   s.now().UTC(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, product.ErrNotFound):
		// Deleted between the lookup and the insert.
		return product.ErrNotFound
	case errors.Is(err, ErrQuantityTooLarge):
		return ErrQuantityTooLarge
	default:
		return apperr.Persistence(err, "cart-add-failed")
	}
}

// UpdateQuantity sets the quantity of one of the user's lines, raised to 1.
func (s *Service) UpdateQuantity(ctx context.Context, userID, lineID string, qty int) error {
	if qty > MaxQuantity {
		return ErrQuantityTooLarge
	}
	if err := s.lines.SetQuantity(ctx, userID, lineID, clamp(qty)); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		return apperr.Persistence(err, "cart-update-failed")
	}
	return nil
}

// Remove deletes one of the user's lines.
func (s *Service) Remove(ctx context.Context, userID, lineID string) error {
	if err := s.lines.Remove(ctx, userID, lineID); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		return apperr.Persistence(err, "cart-delete-failed")
	}
	return nil
}

func clamp(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}
