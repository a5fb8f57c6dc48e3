package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t testing.TB) *sqlx.DB {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("PGHOST", "localhost"), envOr("PGPORT", "5432"),
		envOr("PGUSER", "user"), envOr("PGPASSWORD", "password"), envOr("PGDATABASE", "testdb"))

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS books (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			available BOOLEAN NOT NULL DEFAULT TRUE,
			borrowed_by TEXT,
			borrowed_at TIMESTAMPTZ,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE TABLE books`); err != nil {
		t.Fatalf("failed to truncate books: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func insertBook(t *testing.T, db *sqlx.DB, store *Store) *Book {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	book := &Book{
		ID:        uuid.New(),
		Title:     "Dune",
		Author:    "Herbert",
		Available: true,
		CreatedBy: "librarian",
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, store.InsertTx(context.Background(), tx, book))
	require.NoError(t, tx.Commit())

	return book
}

func TestInsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	book := insertBook(t, db, store)

	got, err := store.Get(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
	assert.Equal(t, "Dune", got.Title)
	assert.True(t, got.Available)
	assert.Nil(t, got.BorrowedBy)
	assert.Nil(t, got.BorrowedAt)
}

func TestGetMissingBook(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBorrowAndReturnRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	book := insertBook(t, db, store)

	tx, err := db.Beginx()
	require.NoError(t, err)
	borrowed, err := store.BorrowTx(ctx, tx, book.ID, "alice", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.False(t, borrowed.Available)
	require.NotNil(t, borrowed.BorrowedBy)
	assert.Equal(t, "alice", *borrowed.BorrowedBy)
	assert.NotNil(t, borrowed.BorrowedAt)

	tx, err = db.Beginx()
	require.NoError(t, err)
	returned, err := store.ReturnTx(ctx, tx, book.ID, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.True(t, returned.Available)
	assert.Nil(t, returned.BorrowedBy)
	assert.Nil(t, returned.BorrowedAt)
}

func TestBorrowConflicts(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	t.Run("missing book", func(t *testing.T) {
		tx, err := db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()

		_, err = store.BorrowTx(ctx, tx, uuid.New(), "alice", time.Now().UTC())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("already borrowed", func(t *testing.T) {
		book := insertBook(t, db, store)

		tx, err := db.Beginx()
		require.NoError(t, err)
		_, err = store.BorrowTx(ctx, tx, book.ID, "alice", time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		tx, err = db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()
		_, err = store.BorrowTx(ctx, tx, book.ID, "bob", time.Now().UTC())
		assert.ErrorIs(t, err, ErrNotAvailable)
	})

	t.Run("return available book", func(t *testing.T) {
		book := insertBook(t, db, store)

		tx, err := db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()
		_, err = store.ReturnTx(ctx, tx, book.ID, time.Now().UTC())
		assert.ErrorIs(t, err, ErrNotBorrowed)
	})
}

// TestConcurrentBorrowExactlyOnce drives N transactions at one book; the
// compare-and-swap update must let exactly one commit a borrow.
func TestConcurrentBorrowExactlyOnce(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	book := insertBook(t, db, store)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			tx, err := db.Beginx()
			if err != nil {
				errs[i] = err
				return
			}

			_, err = store.BorrowTx(ctx, tx, book.ID, fmt.Sprintf("reader-%d", i), time.Now().UTC())
			if err != nil {
				tx.Rollback()
				errs[i] = err
				return
			}
			errs[i] = tx.Commit()
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrNotAvailable)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := store.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.NotNil(t, got.BorrowedBy)
}

func TestListFilters(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	dune := insertBook(t, db, store)

	other := *dune
	other.ID = uuid.New()
	other.Title = "Foundation"
	other.Author = "Asimov"
	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, store.InsertTx(ctx, tx, &other))
	require.NoError(t, tx.Commit())

	tx, err = db.Beginx()
	require.NoError(t, err)
	_, err = store.BorrowTx(ctx, tx, other.ID, "alice", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	books, err := store.List(ctx, ListFilter{Title: "dune"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, dune.ID, books[0].ID)

	available := true
	books, err = store.List(ctx, ListFilter{Available: &available})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, dune.ID, books[0].ID)

	books, err = store.List(ctx, ListFilter{Author: "asimov"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, other.ID, books[0].ID)
}
