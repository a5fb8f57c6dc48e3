// internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const bookColumns = `id, title, author, available, borrowed_by, borrowed_at, created_by, created_at, updated_at`

// Store is the Postgres-backed catalog of books.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a catalog store on top of the shared connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// InsertTx adds a new book within the caller's transaction.
func (s *Store) InsertTx(ctx context.Context, tx *sqlx.Tx, book *Book) error {
	query := `
		INSERT INTO books (id, title, author, available, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err := tx.ExecContext(ctx, query, book.ID, book.Title, book.Author, book.Available, book.CreatedBy, book.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// Get retrieves a book by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Book, error) {
	book := &Book{}
	err := s.db.GetContext(ctx, book, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// List returns books matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE 1=1`
	args := []interface{}{}

	if filter.Title != "" {
		args = append(args, "%"+filter.Title+"%")
		query += fmt.Sprintf(" AND title ILIKE $%d", len(args))
	}
	if filter.Author != "" {
		args = append(args, "%"+filter.Author+"%")
		query += fmt.Sprintf(" AND author ILIKE $%d", len(args))
	}
	if filter.Available != nil {
		args = append(args, *filter.Available)
		query += fmt.Sprintf(" AND available = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	var books []*Book
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// UpdateTx rewrites title and author within the caller's transaction and
// returns the updated row.
func (s *Store) UpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, title, author string) (*Book, error) {
	book := &Book{}
	query := `
		UPDATE books
		SET title = $1, author = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + bookColumns
	err := tx.GetContext(ctx, book, query, title, author, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// GetTx loads a book inside a transaction, locking the row for update so
// concurrent transitions on the same book serialize.
func (s *Store) GetTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Book, error) {
	book := &Book{}
	err := tx.GetContext(ctx, book, `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// DeleteTx removes a book within the caller's transaction.
func (s *Store) DeleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BorrowTx atomically flips an available book to borrowed. The WHERE clause
// is the compare-and-swap: under concurrent borrows exactly one transaction
// updates the row, the rest fall through to the availability check.
func (s *Store) BorrowTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, actor string, now time.Time) (*Book, error) {
	book := &Book{}
	query := `
		UPDATE books
		SET available = FALSE, borrowed_by = $1, borrowed_at = $2, updated_at = $2
		WHERE id = $3 AND available = TRUE
		RETURNING ` + bookColumns
	err := tx.GetContext(ctx, book, query, actor, now, id)
	if err == nil {
		return book, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("borrow book: %w", err)
	}
	return nil, s.transitionConflict(ctx, tx, id, ErrNotAvailable)
}

// ReturnTx atomically flips a borrowed book back to available.
func (s *Store) ReturnTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, now time.Time) (*Book, error) {
	book := &Book{}
	query := `
		UPDATE books
		SET available = TRUE, borrowed_by = NULL, borrowed_at = NULL, updated_at = $1
		WHERE id = $2 AND available = FALSE
		RETURNING ` + bookColumns
	err := tx.GetContext(ctx, book, query, now, id)
	if err == nil {
		return book, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("return book: %w", err)
	}
	return nil, s.transitionConflict(ctx, tx, id, ErrNotBorrowed)
}

// transitionConflict tells a missing book apart from one in the wrong state.
func (s *Store) transitionConflict(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, conflict error) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check book existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return conflict
}
