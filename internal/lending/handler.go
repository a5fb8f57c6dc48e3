// internal/lending/handler.go
package lending

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libraflow/internal/api"
	"libraflow/internal/auth"
	"libraflow/internal/catalog"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Title == "" || req.Author == "" {
		api.Error(w, http.StatusBadRequest, "missing title or author")
		return
	}

	book, err := h.service.CreateBook(r.Context(), auth.Actor(r.Context()), req.Title, req.Author)
	if err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusCreated, book, "book created")
}

func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	filter := catalog.ListFilter{
		Title:  r.URL.Query().Get("title"),
		Author: r.URL.Query().Get("author"),
	}
	if raw := r.URL.Query().Get("available"); raw != "" {
		available := raw == "true"
		filter.Available = &available
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	books, err := h.service.ListBooks(r.Context(), filter)
	if err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"books": books}, "books fetched")
}

func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusOK, book, "")
}

func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	var update BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		api.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	book, err := h.service.UpdateBook(r.Context(), auth.Actor(r.Context()), id, update)
	if err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusOK, book, "book updated")
}

func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBook(r.Context(), auth.Actor(r.Context()), id); err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusOK, nil, "book deleted")
}

func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	book, err := h.service.Borrow(r.Context(), id, auth.Actor(r.Context()))
	if err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusOK, book, "book borrowed")
}

func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	book, err := h.service.Return(r.Context(), id, auth.Actor(r.Context()))
	if err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusOK, book, "book returned")
}

func bookID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid book id")
		return uuid.Nil, false
	}
	return id, true
}
