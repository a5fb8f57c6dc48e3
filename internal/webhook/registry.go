// internal/webhook/registry.go
package webhook

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"libraflow/internal/eventlog"
)

// Registry stores webhook subscriptions in Postgres. The dispatcher reads a
// fresh snapshot per event, so registrations take effect immediately and
// survive restarts.
type Registry struct {
	db *sqlx.DB
}

// NewRegistry creates a registry on top of the shared connection pool.
func NewRegistry(db *sqlx.DB) *Registry {
	return &Registry{db: db}
}

// Register creates an active subscription for owner.
func (r *Registry) Register(ctx context.Context, rawURL string, eventType eventlog.Type, owner string) (*Subscription, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if !eventlog.ValidType(eventType) {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidArgument, eventType)
	}
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidArgument)
	}

	sub := &Subscription{
		ID:        uuid.New(),
		URL:       rawURL,
		EventType: eventType,
		Owner:     owner,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_subscriptions (id, url, event_type, owner, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sub.ID, sub.URL, sub.EventType, sub.Owner, sub.Active, sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}

	return sub, nil
}

// List returns every subscription owned by owner, oldest first.
func (r *Registry) List(ctx context.Context, owner string) ([]Subscription, error) {
	var subs []Subscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT id, url, event_type, owner, active, created_at
		FROM webhook_subscriptions
		WHERE owner = $1
		ORDER BY created_at ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// Deactivate disables delivery for a subscription. Scoping by owner is
// enforced here: a principal cannot touch another principal's subscription.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID, owner string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhook_subscriptions
		SET active = FALSE
		WHERE id = $1 AND owner = $2
	`, id, owner)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveActive returns the active subscriptions for one event type. Only
// the dispatcher calls this.
func (r *Registry) ResolveActive(ctx context.Context, eventType eventlog.Type) ([]Subscription, error) {
	var subs []Subscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT id, url, event_type, owner, active, created_at
		FROM webhook_subscriptions
		WHERE event_type = $1 AND active = TRUE
	`, eventType)
	if err != nil {
		return nil, fmt.Errorf("resolve subscriptions: %w", err)
	}
	return subs, nil
}

// validateURL accepts only absolute http(s) URLs with a host.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidArgument)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url must be absolute", ErrInvalidArgument)
	}
	return nil
}
