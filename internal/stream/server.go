// Package stream serves the live event feed over WebSocket. Each consumer
// carries its own cursor: the server polls the event log for entries past
// the cursor, writes each as one JSON frame in id order, and sleeps between
// polls. Disconnect or context cancellation stops the loop.
package stream

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"libraflow/internal/eventlog"
)

const writeWait = 10 * time.Second

// Source yields events with id greater than afterID. The event log
// implements it; a push-based notifier can replace it without changing the
// stream contract.
type Source interface {
	Since(ctx context.Context, afterID int64, limit int) ([]eventlog.Event, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server upgrades /ws/events connections and runs one poll loop per client.
type Server struct {
	source       Source
	pollInterval time.Duration
	batchSize    int
	log          zerolog.Logger
}

func NewServer(source Source, pollInterval time.Duration, batchSize int, log zerolog.Logger) *Server {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Server{
		source:       source,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		log:          log.With().Str("component", "stream").Logger(),
	}
}

// HandleEvents upgrades the connection and streams events until the client
// goes away. The optional after_id query parameter resumes from a cursor.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	cursor := int64(0)
	if raw := r.URL.Query().Get("after_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "after_id must be a non-negative integer", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: the client sends nothing useful, but reading is how we
	// notice the connection closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.run(ctx, conn, cursor)
}

func (s *Server) run(ctx context.Context, conn *websocket.Conn, cursor int64) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		events, err := s.source.Since(ctx, cursor, s.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error().Err(err).Int64("cursor", cursor).Msg("poll failed")
			timer.Reset(s.pollInterval)
			continue
		}

		for _, event := range events {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				s.log.Debug().Err(err).Msg("client write failed, closing stream")
				return
			}
			cursor = event.ID
		}

		if len(events) < s.batchSize {
			timer.Reset(s.pollInterval)
		} else {
			// More events are likely waiting; poll again immediately.
			timer.Reset(0)
		}
	}
}
