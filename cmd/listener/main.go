// cmd/listener/main.go
//
// A standalone webhook listener for trying the notification flow end to
// end: register its /webhook URL, then watch deliveries arrive.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type notification struct {
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var n notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			http.Error(w, "malformed notification", http.StatusBadRequest)
			return
		}

		logger.Info().
			Str("event_type", n.EventType).
			Time("event_timestamp", n.Timestamp).
			RawJSON("data", n.Data).
			Msg("notification received")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "webhook-listener"})
	})

	addr := os.Getenv("LISTENER_ADDR")
	if addr == "" {
		addr = ":5002"
	}

	logger.Info().Str("addr", addr).Msg("webhook listener ready")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("listener failed")
	}
}
