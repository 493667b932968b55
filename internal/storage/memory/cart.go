package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/product"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository in memory.
type CartRepository struct{ s *Store }

// Lines returns the user's lines joined with product data, newest first.
func (r *CartRepository) Lines(_ context.Context, userID string) ([]cart.Line, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.cartLines(userID), nil
}

// Add inserts l or increments the existing line for the same product.
func (r *CartRepository) Add(_ context.Context, l cart.Line) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[l.ProductID]; !ok {
		return product.ErrNotFound
	}
	for id, existing := range r.s.lines {
		if existing.UserID == l.UserID && existing.ProductID == l.ProductID {
			if existing.Quantity+l.Quantity > cart.MaxQuantity {
				return cart.ErrQuantityTooLarge
			}
			existing.Quantity += l.Quantity
			r.s.lines[id] = existing
			return nil
		}
	}
	r.s.lines[l.ID] = cart.Line{
		ID:        l.ID,
		UserID:    l.UserID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		AddedAt:   l.AddedAt,
	}
	r.s.lineSeq[l.ID] = r.s.next()
	return nil
}

// SetQuantity updates one of the user's lines.
func (r *CartRepository) SetQuantity(_ context.Context, userID, lineID string, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.lines[lineID]
	if !ok || l.UserID != userID {
		return cart.ErrLineNotFound
	}
	l.Quantity = qty
	r.s.lines[lineID] = l
	return nil
}

// Remove deletes one of the user's lines.
func (r *CartRepository) Remove(_ context.Context, userID, lineID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.lines[lineID]
	if !ok || l.UserID != userID {
		return cart.ErrLineNotFound
	}
	delete(r.s.lines, lineID)
	delete(r.s.lineSeq, lineID)
	return nil
}

// cartLines must be called with s.mu held.
func (s *Store) cartLines(userID string) []cart.Line {
	var out []cart.Line
	for _, l := range s.lines {
		if l.UserID != userID {
			continue
		}
		p, ok := s.products[l.ProductID]
		if !ok {
			continue
		}
		l.Name = p.Name
		l.Price = p.Price
		l.Seller = p.Seller
		l.Category = p.Category
		l.Image = p.Image
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b cart.Line) int {
		return cmp.Compare(s.lineSeq[b.ID], s.lineSeq[a.ID])
	})
	return out
}

// clearCart must be called with s.mu held.
func (s *Store) clearCart(userID string) int {
	n := 0
	for id, l := range s.lines {
		if l.UserID == userID {
			delete(s.lines, id)
			delete(s.lineSeq, id)
			n++
		}
	}
	return n
}
