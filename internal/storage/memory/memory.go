// Package memory is an in-process implementation of every store, used by the
// service and HTTP handler tests.
package memory

import (
	"sync"

	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/user"
)

// Store holds all state behind a single mutex.
type Store struct {
	mu       sync.Mutex
	users    map[string]user.User
	products map[string]product.Product
	history  map[string][]product.PriceChange
	lines    map[string]cart.Line // product fields are joined on read
	orders   map[string]order.Order
	seq      int64 // insertion order for stable newest-first sorting
	orderSeq map[string]int64
	lineSeq  map[string]int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]user.User),
		products: make(map[string]product.Product),
		history:  make(map[string][]product.PriceChange),
		lines:    make(map[string]cart.Line),
		orders:   make(map[string]order.Order),
		orderSeq: make(map[string]int64),
		lineSeq:  make(map[string]int64),
	}
}

// Users returns the credential store view.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Products returns the catalog view.
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

// Carts returns the cart view.
func (s *Store) Carts() *CartRepository { return &CartRepository{s: s} }

// Orders returns the order view.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}
