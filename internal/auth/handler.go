// internal/auth/handler.go
package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"libraflow/internal/api"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	member, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if errors.Is(err, ErrEmailTaken) {
		api.Error(w, http.StatusConflict, err.Error())
		return
	}
	if errors.Is(err, ErrInvalidCredentials) {
		api.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if err != nil {
		api.Fail(w, err)
		return
	}

	api.Success(w, http.StatusCreated, member, "member registered")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		api.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		api.Fail(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"token": token}, "login successful")
}
