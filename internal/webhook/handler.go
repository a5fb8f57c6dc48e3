// internal/webhook/handler.go
package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libraflow/internal/api"
	"libraflow/internal/auth"
	"libraflow/internal/eventlog"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL       string `json:"url"`
		EventType string `json:"event_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sub, err := h.registry.Register(r.Context(), req.URL, eventlog.Type(req.EventType), auth.Actor(r.Context()))
	if err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusCreated, sub, "webhook registered")
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.registry.List(r.Context(), auth.Actor(r.Context()))
	if err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"subscriptions": subs}, "")
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	if err := h.registry.Deactivate(r.Context(), id, auth.Actor(r.Context())); err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusOK, nil, "webhook deactivated")
}
