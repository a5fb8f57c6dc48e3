package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraflow/internal/eventlog"
)

type stubResolver struct {
	subs []Subscription
}

func (s *stubResolver) ResolveActive(ctx context.Context, eventType eventlog.Type) ([]Subscription, error) {
	var matched []Subscription
	for _, sub := range s.subs {
		if sub.EventType == eventType {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func subscriptionFor(url string, eventType eventlog.Type) Subscription {
	return Subscription{
		ID:        uuid.New(),
		URL:       url,
		EventType: eventType,
		Owner:     "alice",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func testEvent(t *testing.T) eventlog.Event {
	t.Helper()
	return eventlog.Event{
		ID:        42,
		Type:      eventlog.TypeBookBorrowed,
		Payload:   json.RawMessage(`{"book_id": "b-1", "borrowed_by": "alice"}`),
		Actor:     "alice",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestDispatcherDeliversNotification(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r
		bodies <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resolver := &stubResolver{subs: []Subscription{
		subscriptionFor(server.URL, eventlog.TypeBookBorrowed),
	}}
	dispatcher := NewDispatcher(resolver, 2, 2*time.Second, zerolog.Nop())
	defer dispatcher.Close()

	event := testEvent(t)
	dispatcher.Publish(event)

	select {
	case req := <-received:
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t, "libraflow/1.0", req.Header.Get("User-Agent"))
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never received the notification")
	}

	var notif Notification
	require.NoError(t, json.Unmarshal(<-bodies, &notif))
	assert.Equal(t, "book.borrowed", notif.EventType)
	assert.True(t, notif.Timestamp.Equal(event.CreatedAt))

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(notif.Data, &data))
	assert.Equal(t, "alice", data["borrowed_by"])
}

func TestDispatcherSkipsOtherEventTypes(t *testing.T) {
	hits := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
	}))
	defer server.Close()

	resolver := &stubResolver{subs: []Subscription{
		subscriptionFor(server.URL, eventlog.TypeBookReturned),
	}}
	dispatcher := NewDispatcher(resolver, 2, time.Second, zerolog.Nop())

	dispatcher.Publish(testEvent(t)) // book.borrowed, no matching subscriber
	dispatcher.Close()

	select {
	case <-hits:
		t.Fatal("subscriber received a notification for an event type it never subscribed to")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDispatcherIsolatesFailures(t *testing.T) {
	healthyHits := make(chan struct{}, 1)
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		healthyHits <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	resolver := &stubResolver{subs: []Subscription{
		subscriptionFor(failing.URL, eventlog.TypeBookBorrowed),
		subscriptionFor("http://127.0.0.1:1/unreachable", eventlog.TypeBookBorrowed),
		subscriptionFor(healthy.URL, eventlog.TypeBookBorrowed),
	}}
	dispatcher := NewDispatcher(resolver, 4, time.Second, zerolog.Nop())
	defer dispatcher.Close()

	dispatcher.Publish(testEvent(t))

	select {
	case <-healthyHits:
	case <-time.After(5 * time.Second):
		t.Fatal("healthy subscriber was starved by failing ones")
	}
}

func TestDispatcherDeliversAtMostOnce(t *testing.T) {
	hits := make(chan struct{}, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resolver := &stubResolver{subs: []Subscription{
		subscriptionFor(server.URL, eventlog.TypeBookBorrowed),
	}}
	dispatcher := NewDispatcher(resolver, 2, time.Second, zerolog.Nop())

	dispatcher.Publish(testEvent(t))

	// Exactly one attempt, even though the subscriber rejected it.
	select {
	case <-hits:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never received the attempt")
	}
	dispatcher.Close()

	select {
	case <-hits:
		t.Fatal("failed delivery was retried")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	dispatcher := NewDispatcher(&stubResolver{}, 1, time.Second, zerolog.Nop())
	dispatcher.Close()
	dispatcher.Close()

	// Publishing after close must not panic on the closed channel.
	dispatcher.Publish(testEvent(t))
	time.Sleep(50 * time.Millisecond)
}
