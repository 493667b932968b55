package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/apperr"
)

var (
	defaultRating = decimal.RequireFromString("4.5")
	maxRating     = decimal.NewFromInt(5)
	// priceLimit is the first value NUMERIC(12,2) cannot hold.
	priceLimit = decimal.New(1, 10)
)

// Prices and ratings are stored with two decimal places.
const scale = 2

func exact(d decimal.Decimal) bool { return d.Equal(d.Round(scale)) }

// CreateRequest holds the input for adding a product.
type CreateRequest struct {
	Name     string
	Price    *decimal.Decimal
	Rating   *decimal.Decimal
	Seller   string
	Category Category
	Image    string
}

// Service validates catalog edits before handing them to the Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	ps, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "products-fetch-failed")
	}
	return ps, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err, "product-fetch-failed")
	}
	return p, nil
}

// Create validates req and stores a new product.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if strings.TrimSpace(req.Name) == "" || req.Price == nil || req.Seller == "" ||
		req.Category == "" || req.Image == "" {
		return nil, ErrMissingFields
	}
	rating := defaultRating
	if req.Rating != nil {
		rating = *req.Rating
	}
	if err := validate(req.Price, &rating, &req.Category); err != nil {
		return nil, err
	}

	p := &Product{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Price:     *req.Price,
		Rating:    rating,
		Seller:    req.Seller,
		Category:  req.Category,
		Image:     req.Image,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, apperr.Persistence(err, "product-create-failed")
	}
	return p, nil
}

// Update applies patch. A price change is recorded in the price history
// under changedBy.
func (s *Service) Update(ctx context.Context, id string, patch Patch, changedBy string) (*Product, error) {
	if patch.Empty() {
		return nil, ErrNoUpdates
	}
	if err := validate(patch.Price, patch.Rating, patch.Category); err != nil {
		return nil, err
	}
	if changedBy == "" {
		changedBy = "admin"
	}
	p, err := s.repo.Update(ctx, id, patch, changedBy)
	if err != nil {
		return nil, classify(err, "product-update-failed")
	}
	return p, nil
}

// Delete removes a product. Orders keep their frozen copies.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return classify(err, "product-delete-failed")
	}
	return nil
}

// PriceHistory returns the price changes of a product, newest first.
func (s *Service) PriceHistory(ctx context.Context, id string) ([]PriceChange, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, classify(err, "price-history-fetch-failed")
	}
	h, err := s.repo.PriceHistory(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(err, "price-history-fetch-failed")
	}
	return h, nil
}

func validate(price, rating *decimal.Decimal, category *Category) error {
	if price != nil && (price.IsNegative() || !price.LessThan(priceLimit) || !exact(*price)) {
		return ErrInvalidPrice
	}
	if rating != nil && (rating.IsNegative() || rating.GreaterThan(maxRating) || !exact(*rating)) {
		return ErrInvalidRating
	}
	if category != nil && !category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}

func classify(err error, reason string) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return apperr.Persistence(err, reason)
}
