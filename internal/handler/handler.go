// Package handler exposes the storefront over JSON/HTTP on a chi router.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/plantshop/internal/domain/auth"
	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/product"
)

// Deps are the domain services served by the Handler.
type Deps struct {
	Auth     *auth.Service
	Gate     *auth.Gate
	Products *product.Service
	Carts    *cart.Service
	Orders   *order.Service
}

// Handler maps HTTP requests onto the domain services.
type Handler struct {
	auth     *auth.Service
	gate     *auth.Gate
	products *product.Service
	carts    *cart.Service
	orders   *order.Service
}

// New constructs a Handler.
func New(d Deps) *Handler {
	return &Handler{
		auth:     d.Auth,
		gate:     d.Gate,
		products: d.Products,
		carts:    d.Carts,
		orders:   d.Orders,
	}
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeReason(w, http.StatusNotFound, "not-found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeReason(w, http.StatusMethodNotAllowed, "method-not-allowed")
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth, h.requireAdmin)
			r.Post("/", h.createProduct)
			r.Patch("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
			r.Get("/{id}/price-history", h.priceHistory)
		})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/", h.listCart)
		r.Post("/", h.addToCart)
		r.Patch("/{id}", h.updateCartLine)
		r.Delete("/{id}", h.removeCartLine)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/", h.placeOrder)
		r.Get("/my", h.myOrders)
		r.Get("/track/{trackingNumber}", h.trackOrder)
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/", h.allOrders)
			r.Patch("/{id}/status", h.updateOrderStatus)
		})
	})

	return r
}

// RouteFinder resolves the route pattern a request will be served by.
func RouteFinder(routes chi.Routes) func(*http.Request) string {
	return func(r *http.Request) string {
		rctx := chi.NewRouteContext()
		if routes.Match(rctx, r.Method, r.URL.Path) {
			return rctx.RoutePattern()
		}
		return ""
	}
}
