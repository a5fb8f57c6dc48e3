// internal/webhook/dispatcher.go
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"libraflow/internal/eventlog"
)

const userAgent = "libraflow/1.0"

// Resolver yields the active subscriptions for an event type. The registry
// implements it; tests substitute stubs.
type Resolver interface {
	ResolveActive(ctx context.Context, eventType eventlog.Type) ([]Subscription, error)
}

type delivery struct {
	sub  Subscription
	body []byte
}

// Dispatcher fans an event out to every matching subscriber. Deliveries run
// on a bounded worker pool off the request path: Publish returns before any
// outbound request is made, and a failed delivery is logged and counted but
// never retried or surfaced.
type Dispatcher struct {
	resolver Resolver
	client   *http.Client
	timeout  time.Duration
	log      zerolog.Logger

	jobs chan delivery
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts workers delivery goroutines.
func NewDispatcher(resolver Resolver, workers int, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	d := &Dispatcher{
		resolver: resolver,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		log:      log.With().Str("component", "webhook_dispatcher").Logger(),
		jobs:     make(chan delivery, workers*16),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Publish resolves subscribers for the event and enqueues one delivery per
// subscriber. It never blocks the caller on delivery.
func (d *Dispatcher) Publish(event eventlog.Event) {
	go d.fanOut(event)
}

func (d *Dispatcher) fanOut(event eventlog.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	subs, err := d.resolver.ResolveActive(ctx, event.Type)
	if err != nil {
		d.log.Error().Err(err).Str("event_type", string(event.Type)).
			Int64("event_id", event.ID).Msg("resolve subscribers failed")
		return
	}
	if len(subs) == 0 {
		return
	}

	body, err := json.Marshal(Notification{
		EventType: string(event.Type),
		Timestamp: event.CreatedAt,
		Data:      event.Payload,
	})
	if err != nil {
		d.log.Error().Err(err).Int64("event_id", event.ID).Msg("encode notification failed")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for _, sub := range subs {
		d.jobs <- delivery{sub: sub, body: body}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.deliver(job)
	}
}

// deliver makes exactly one attempt. Timeout, connection failure and non-2xx
// all count as failed; none of them affects other deliveries.
func (d *Dispatcher) deliver(job delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.post(ctx, job)
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
		d.log.Warn().Err(err).
			Str("subscription_id", job.sub.ID.String()).
			Str("url", job.sub.URL).
			Str("event_type", string(job.sub.EventType)).
			Msg("webhook delivery failed")
	}
	deliveriesTotal.WithLabelValues(string(job.sub.EventType), outcome).Inc()
}

func (d *Dispatcher) post(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.sub.URL, bytes.NewReader(job.body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("subscriber responded %d", resp.StatusCode)
	}
	return nil
}

// Close stops accepting new deliveries and waits for in-flight ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}
