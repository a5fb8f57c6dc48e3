package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraflow/internal/domain"
)

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, map[string]string{"id": "b-1"}, "book created")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "book created", body["message"])
	assert.Equal(t, map[string]interface{}{"id": "b-1"}, body["data"])
}

func TestFailMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("book %w", domain.ErrNotFound), http.StatusNotFound},
		{"invalid transition", fmt.Errorf("borrow: %w", domain.ErrInvalidTransition), http.StatusBadRequest},
		{"invalid argument", fmt.Errorf("register: %w", domain.ErrInvalidArgument), http.StatusBadRequest},
		{"storage unavailable", fmt.Errorf("append: %w", domain.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Fail(rec, tc.err)

			assert.Equal(t, tc.want, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "error", body["status"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestFailHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, errors.New("pq: connection refused at 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(60) // burst of 60, refill 1/s

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	status := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Exhaust the burst for one client.
	for i := 0; i < 60; i++ {
		require.Equal(t, http.StatusOK, status("10.0.0.1:1234"))
	}
	assert.Equal(t, http.StatusTooManyRequests, status("10.0.0.1:1234"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, status("10.0.0.2:1234"))
}
