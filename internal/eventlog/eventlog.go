// Package eventlog is the append-only record of domain events. Events are
// appended inside the transaction that performs the corresponding catalog
// mutation, so a committed mutation always has its event and vice versa.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libraflow/internal/domain"
)

// ErrStorageUnavailable wraps any storage-level failure of the log. The
// in-flight operation aborts; the enclosing transaction never commits a
// mutation without its event.
var ErrStorageUnavailable = domain.ErrStorageUnavailable

// Type enumerates the domain event types.
type Type string

const (
	TypeBookCreated  Type = "book.created"
	TypeBookUpdated  Type = "book.updated"
	TypeBookDeleted  Type = "book.deleted"
	TypeBookBorrowed Type = "book.borrowed"
	TypeBookReturned Type = "book.returned"
)

// Types lists every known event type.
func Types() []Type {
	return []Type{TypeBookCreated, TypeBookUpdated, TypeBookDeleted, TypeBookBorrowed, TypeBookReturned}
}

// ValidType reports whether t is a known event type.
func ValidType(t Type) bool {
	switch t {
	case TypeBookCreated, TypeBookUpdated, TypeBookDeleted, TypeBookBorrowed, TypeBookReturned:
		return true
	}
	return false
}

// Event is an immutable log entry. The id is a BIGSERIAL: unique, and
// monotonic for events appended on the same transaction path, which is what
// stream cursors need.
type Event struct {
	ID        int64           `db:"id" json:"id"`
	Type      Type            `db:"event_type" json:"event_type"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	Actor     string          `db:"actor" json:"actor"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Type    Type
	AfterID int64
	Limit   int
}

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// Log provides append and cursor-based query access to the events table.
type Log struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// New creates an event log on top of the shared connection pool.
func New(db *sqlx.DB) *Log {
	return &Log{
		db:     db,
		tracer: otel.Tracer("libraflow/eventlog"),
	}
}

// Append serializes payload and inserts one event within the caller's
// transaction. The generated id and timestamp are read back from the insert.
func (l *Log) Append(ctx context.Context, tx *sqlx.Tx, eventType Type, actor string, payload interface{}) (*Event, error) {
	ctx, span := l.tracer.Start(ctx, "eventlog.append",
		trace.WithAttributes(
			attribute.String("event.type", string(eventType)),
			attribute.String("event.actor", actor),
		),
	)
	defer span.End()

	if !ValidType(eventType) {
		return nil, fmt.Errorf("append event: unknown type %q", eventType)
	}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	event := &Event{
		Type:    eventType,
		Payload: data,
		Actor:   actor,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO events (event_type, payload, actor, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`, eventType, data, actor).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert event: %v", ErrStorageUnavailable, err)
	}

	span.SetAttributes(attribute.Int64("event.id", event.ID))
	return event, nil
}

// Query returns events matching the filter, ordered by id ascending. The
// AfterID bound is exclusive, which makes it a resumable cursor.
func (l *Log) Query(ctx context.Context, filter Filter) ([]Event, error) {
	ctx, span := l.tracer.Start(ctx, "eventlog.query",
		trace.WithAttributes(
			attribute.String("filter.type", string(filter.Type)),
			attribute.Int64("filter.after_id", filter.AfterID),
		),
	)
	defer span.End()

	limit := normalizeLimit(filter.Limit)

	stmt := goqu.Dialect("postgres").
		From("events").
		Select("id", "event_type", "payload", "actor", "created_at").
		Where(goqu.C("id").Gt(filter.AfterID)).
		Order(goqu.C("id").Asc()).
		Limit(uint(limit))

	if filter.Type != "" {
		stmt = stmt.Where(goqu.C("event_type").Eq(string(filter.Type)))
	}

	query, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build event query: %w", err)
	}

	var events []Event
	if err := l.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("%w: query events: %v", ErrStorageUnavailable, err)
	}

	span.SetAttributes(attribute.Int("events.returned", len(events)))
	return events, nil
}

// normalizeLimit applies the default for unset limits and clamps oversized
// ones to the maximum, so a larger request never returns fewer events.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// Since returns up to limit events with id greater than afterID, in id
// order. It is the poll source for stream consumers.
func (l *Log) Since(ctx context.Context, afterID int64, limit int) ([]Event, error) {
	return l.Query(ctx, Filter{AfterID: afterID, Limit: limit})
}
