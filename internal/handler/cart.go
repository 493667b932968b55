package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/plantshop/internal/domain/cart"
)

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.carts.List(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]cartLineView, len(lines))
	for i, l := range lines {
		out[i] = viewCartLine(l)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, r, cart.ErrProductRequired)
		return
	}
	if err := h.carts.Add(r.Context(), identity(r).UserID, req.ProductID, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := h.carts.UpdateQuantity(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Remove(r.Context(), identity(r).UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}
