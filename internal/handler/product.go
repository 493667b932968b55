package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/product"
)

type productRequest struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Rating   *decimal.Decimal `json:"rating"`
	Seller   *string          `json:"seller"`
	Category *string          `json:"category"`
	Image    *string          `json:"image"`
}

func (p productRequest) patch() product.Patch {
	out := product.Patch{
		Name:   p.Name,
		Price:  p.Price,
		Rating: p.Rating,
		Seller: p.Seller,
		Image:  p.Image,
	}
	if p.Category != nil {
		c := product.Category(*p.Category)
		out.Category = &c
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]productView, len(ps))
	for i, p := range ps {
		out[i] = viewProduct(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(*p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Create(r.Context(), product.CreateRequest{
		Name:     deref(req.Name),
		Price:    req.Price,
		Rating:   req.Rating,
		Seller:   deref(req.Seller),
		Category: product.Category(deref(req.Category)),
		Image:    deref(req.Image),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewProduct(*p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), req.patch(), identity(r).Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(*p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) priceHistory(w http.ResponseWriter, r *http.Request) {
	changes, err := h.products.PriceHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]priceChangeView, len(changes))
	for i, c := range changes {
		out[i] = priceChangeView{
			ProductID: c.ProductID,
			OldPrice:  money(c.OldPrice),
			NewPrice:  money(c.NewPrice),
			ChangedBy: c.ChangedBy,
			ChangedAt: c.ChangedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
