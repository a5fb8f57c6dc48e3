// internal/eventlog/handler.go
package eventlog

import (
	"net/http"
	"strconv"

	"libraflow/internal/api"
)

// Handler serves the event history query endpoint.
type Handler struct {
	log *Log
}

func NewHandler(log *Log) *Handler {
	return &Handler{log: log}
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	filter := Filter{}

	if raw := r.URL.Query().Get("type"); raw != "" {
		t := Type(raw)
		if !ValidType(t) {
			api.Error(w, http.StatusBadRequest, "unknown event type")
			return
		}
		filter.Type = t
	}
	if raw := r.URL.Query().Get("after_id"); raw != "" {
		afterID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || afterID < 0 {
			api.Error(w, http.StatusBadRequest, "after_id must be a non-negative integer")
			return
		}
		filter.AfterID = afterID
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	events, err := h.log.Query(r.Context(), filter)
	if err != nil {
		api.Fail(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"events": events}, "")
}
