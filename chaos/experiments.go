// chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"libraflow/internal/eventlog"
	"libraflow/internal/lending"
	"libraflow/internal/webhook"
)

// ConcurrentBorrowRace fires N simultaneous borrows at one freshly created
// book. Hypothesis: exactly one succeeds, the rest see an invalid
// transition, and the book row never violates the availability invariant.
func ConcurrentBorrowRace(svc lending.Service, db *sqlx.DB, attempts int) Experiment {
	return Experiment{
		Name:       "concurrent-borrow-race",
		Hypothesis: "N concurrent borrows of one book yield exactly one success",
		Run: func(ctx context.Context) error {
			book, err := svc.CreateBook(ctx, "chaos", "Race Conditions in Practice", "N. Body")
			if err != nil {
				return fmt.Errorf("create book: %w", err)
			}

			var wg sync.WaitGroup
			errs := make([]error, attempts)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.Borrow(ctx, book.ID, fmt.Sprintf("chaos-%d", i))
				}(i)
			}
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, lending.ErrInvalidTransition):
				default:
					return fmt.Errorf("unexpected borrow error: %w", err)
				}
			}
			if succeeded != 1 {
				return fmt.Errorf("expected exactly 1 successful borrow, got %d", succeeded)
			}

			var violations int
			err = db.GetContext(ctx, &violations, `
				SELECT COUNT(*) FROM books
				WHERE (available AND borrowed_by IS NOT NULL)
				   OR (NOT available AND borrowed_by IS NULL)
			`)
			if err != nil {
				return fmt.Errorf("check invariant: %w", err)
			}
			if violations > 0 {
				return fmt.Errorf("%d books violate the availability invariant", violations)
			}
			return nil
		},
	}
}

// WebhookOutage registers one unreachable subscriber next to a healthy one
// and borrows a book. Hypothesis: the outage is invisible to the healthy
// subscriber and to the borrow itself.
func WebhookOutage(svc lending.Service, registry *webhook.Registry) Experiment {
	return Experiment{
		Name:       "webhook-subscriber-outage",
		Hypothesis: "a dead subscriber endpoint does not affect other subscribers or the request",
		Run: func(ctx context.Context) error {
			received := make(chan struct{}, 1)
			healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				select {
				case received <- struct{}{}:
				default:
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer healthy.Close()

			// Reserved TEST-NET-1 address: connection attempts go nowhere.
			if _, err := registry.Register(ctx, "http://192.0.2.1:9/webhook", eventlog.TypeBookBorrowed, "chaos"); err != nil {
				return fmt.Errorf("register dead subscriber: %w", err)
			}
			if _, err := registry.Register(ctx, healthy.URL, eventlog.TypeBookBorrowed, "chaos"); err != nil {
				return fmt.Errorf("register healthy subscriber: %w", err)
			}

			book, err := svc.CreateBook(ctx, "chaos", "Partial Failure", "E. Ndpoint")
			if err != nil {
				return fmt.Errorf("create book: %w", err)
			}
			if _, err := svc.Borrow(ctx, book.ID, "chaos"); err != nil {
				return fmt.Errorf("borrow must not be affected by subscriber outage: %w", err)
			}

			select {
			case <-received:
				return nil
			case <-time.After(15 * time.Second):
				return fmt.Errorf("healthy subscriber never received the delivery")
			}
		},
	}
}
