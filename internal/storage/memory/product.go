package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/xenking/plantshop/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository in memory.
type ProductRepository struct{ s *Store }

// List returns all products ordered by ID.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]product.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b product.Product) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// Create stores p, replacing any product with the same ID.
func (r *ProductRepository) Create(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.products[p.ID] = *p
	return nil
}

// Update applies patch and records a price change when the price moves.
func (r *ProductRepository) Update(_ context.Context, id string, patch product.Patch, changedBy string) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	now := time.Now().UTC()
	if patch.Price != nil && !patch.Price.Equal(p.Price) {
		r.s.history[id] = append(r.s.history[id], product.PriceChange{
			ProductID: id,
			OldPrice:  p.Price,
			NewPrice:  *patch.Price,
			ChangedBy: changedBy,
			ChangedAt: now,
		})
		p.Price = *patch.Price
	}
	if patch.Name != nil {
		p.Name = *patch.Name
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
	p.UpdatedAt = now
	r.s.products[id] = p
	return &p, nil
}

// Delete removes a product and the cart lines referencing it.
func (r *ProductRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(r.s.products, id)
	delete(r.s.history, id)
	for lid, l := range r.s.lines {
		if l.ProductID == id {
			delete(r.s.lines, lid)
			delete(r.s.lineSeq, lid)
		}
	}
	return nil
}

// PriceHistory returns the recorded price changes, newest first.
func (r *ProductRepository) PriceHistory(_ context.Context, id string) ([]product.PriceChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h := slices.Clone(r.s.history[id])
	slices.Reverse(h)
	return h, nil
}
