// internal/lending/implementation.go
package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libraflow/internal/catalog"
	"libraflow/internal/eventlog"
)

// Publisher receives each committed event for asynchronous fan-out.
type Publisher interface {
	Publish(event eventlog.Event)
}

// service implements the Service interface.
type service struct {
	db        *sqlx.DB
	books     *catalog.Store
	log       *eventlog.Log
	publisher Publisher
	tracer    trace.Tracer
}

// NewService creates a new lending service instance.
func NewService(db *sqlx.DB, books *catalog.Store, log *eventlog.Log, publisher Publisher) Service {
	return &service{
		db:        db,
		books:     books,
		log:       log,
		publisher: publisher,
		tracer:    otel.Tracer("libraflow/lending"),
	}
}

// inTx runs fn inside one transaction. The event fn returns is published
// only after a successful commit, so a mutation observed by anyone always
// has its event and an event never describes a rolled-back mutation.
func (s *service) inTx(ctx context.Context, fn func(tx *sqlx.Tx) (*eventlog.Event, error)) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	event, err := fn(tx)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.publisher.Publish(*event)
	return nil
}

// CreateBook inserts a new available book and emits book.created.
func (s *service) CreateBook(ctx context.Context, actor, title, author string) (*catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "lending.create_book")
	defer span.End()

	now := time.Now().UTC()
	book := &catalog.Book{
		ID:        uuid.New(),
		Title:     title,
		Author:    author,
		Available: true,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) (*eventlog.Event, error) {
		if err := s.books.InsertTx(ctx, tx, book); err != nil {
			return nil, err
		}
		return s.log.Append(ctx, tx, eventlog.TypeBookCreated, actor, snapshotOf(book, actor, now))
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("book.id", book.ID.String()))
	return book, nil
}

// GetBook reads a book from the catalog.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	return s.books.Get(ctx, id)
}

// ListBooks reads books matching the filter.
func (s *service) ListBooks(ctx context.Context, filter catalog.ListFilter) ([]*catalog.Book, error) {
	return s.books.List(ctx, filter)
}

// UpdateBook rewrites title/author and emits book.updated with the
// post-mutation snapshot.
func (s *service) UpdateBook(ctx context.Context, actor string, id uuid.UUID, update BookUpdate) (*catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "lending.update_book",
		trace.WithAttributes(attribute.String("book.id", id.String())))
	defer span.End()

	var updated *catalog.Book
	err := s.inTx(ctx, func(tx *sqlx.Tx) (*eventlog.Event, error) {
		current, err := s.books.GetTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}

		title := current.Title
		if update.Title != nil {
			title = *update.Title
		}
		author := current.Author
		if update.Author != nil {
			author = *update.Author
		}

		updated, err = s.books.UpdateTx(ctx, tx, id, title, author)
		if err != nil {
			return nil, err
		}
		return s.log.Append(ctx, tx, eventlog.TypeBookUpdated, actor, snapshotOf(updated, actor, updated.UpdatedAt))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteBook removes a book and emits book.deleted carrying only the id and
// actor, since there is no post-mutation entity to snapshot.
func (s *service) DeleteBook(ctx context.Context, actor string, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "lending.delete_book",
		trace.WithAttributes(attribute.String("book.id", id.String())))
	defer span.End()

	return s.inTx(ctx, func(tx *sqlx.Tx) (*eventlog.Event, error) {
		if err := s.books.DeleteTx(ctx, tx, id); err != nil {
			return nil, err
		}
		payload := deletePayload{BookID: id.String(), Actor: actor, Timestamp: time.Now().UTC()}
		return s.log.Append(ctx, tx, eventlog.TypeBookDeleted, actor, payload)
	})
}

// Borrow transitions Available -> Borrowed. Under concurrent borrows of the
// same book the catalog's compare-and-swap lets exactly one commit; the rest
// observe ErrInvalidTransition.
func (s *service) Borrow(ctx context.Context, id uuid.UUID, actor string) (*catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "lending.borrow",
		trace.WithAttributes(
			attribute.String("book.id", id.String()),
			attribute.String("actor", actor),
		))
	defer span.End()

	var book *catalog.Book
	err := s.inTx(ctx, func(tx *sqlx.Tx) (*eventlog.Event, error) {
		now := time.Now().UTC()
		var err error
		book, err = s.books.BorrowTx(ctx, tx, id, actor, now)
		if err != nil {
			return nil, mapTransitionErr(err)
		}
		return s.log.Append(ctx, tx, eventlog.TypeBookBorrowed, actor, snapshotOf(book, actor, now))
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// Return transitions Borrowed -> Available and clears the borrow fields.
func (s *service) Return(ctx context.Context, id uuid.UUID, actor string) (*catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "lending.return",
		trace.WithAttributes(
			attribute.String("book.id", id.String()),
			attribute.String("actor", actor),
		))
	defer span.End()

	var book *catalog.Book
	err := s.inTx(ctx, func(tx *sqlx.Tx) (*eventlog.Event, error) {
		now := time.Now().UTC()
		var err error
		book, err = s.books.ReturnTx(ctx, tx, id, now)
		if err != nil {
			return nil, mapTransitionErr(err)
		}
		return s.log.Append(ctx, tx, eventlog.TypeBookReturned, actor, snapshotOf(book, actor, now))
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// mapTransitionErr folds the catalog's state conflicts into the lending
// error taxonomy.
func mapTransitionErr(err error) error {
	switch err {
	case catalog.ErrNotAvailable, catalog.ErrNotBorrowed:
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	default:
		return err
	}
}
