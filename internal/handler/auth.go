package handler

import (
	"context"
	"net/http"

	"github.com/xenking/plantshop/internal/domain/auth"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  auth.Profile `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	h.startSession(w, r, h.auth.Register)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	h.startSession(w, r, h.auth.Login)
}

func (h *Handler) startSession(
	w http.ResponseWriter,
	r *http.Request,
	start func(context.Context, auth.Credentials) (*auth.Session, error),
) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := start(r.Context(), auth.Credentials{Email: req.Email, Password: req.Password, Name: req.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: s.Token, User: s.User})
}
