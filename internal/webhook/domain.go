// internal/webhook/domain.go
package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"libraflow/internal/domain"
	"libraflow/internal/eventlog"
)

var (
	ErrInvalidArgument = fmt.Errorf("%w: webhook subscription", domain.ErrInvalidArgument)
	ErrNotFound        = fmt.Errorf("webhook subscription %w", domain.ErrNotFound)
)

// Subscription binds a subscriber endpoint to one event type. Deactivated
// subscriptions are kept as rows but never receive deliveries.
type Subscription struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	URL       string        `db:"url" json:"url"`
	EventType eventlog.Type `db:"event_type" json:"event_type"`
	Owner     string        `db:"owner" json:"owner"`
	Active    bool          `db:"active" json:"active"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// Notification is the wire format POSTed to subscriber endpoints.
type Notification struct {
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
