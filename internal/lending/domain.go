// internal/lending/domain.go
package lending

import (
	"time"

	"libraflow/internal/catalog"
	"libraflow/internal/domain"
)

// ErrInvalidTransition is returned when a borrow or return precondition does
// not hold: borrowing a borrowed book, or returning an available one.
var ErrInvalidTransition = domain.ErrInvalidTransition

// ErrNotFound is returned when the book id does not resolve.
var ErrNotFound = catalog.ErrNotFound

// BookUpdate carries the mutable book fields for UpdateBook. Nil means keep
// the current value.
type BookUpdate struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
}

// bookPayload is the event snapshot for create/update/borrow/return events.
type bookPayload struct {
	BookID     string     `json:"book_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	Available  bool       `json:"available"`
	BorrowedBy *string    `json:"borrowed_by,omitempty"`
	BorrowedAt *time.Time `json:"borrowed_at,omitempty"`
	Actor      string     `json:"actor"`
	Timestamp  time.Time  `json:"timestamp"`
}

// deletePayload is the event snapshot for book.deleted: the entity is gone,
// only its identifier and the actor remain.
type deletePayload struct {
	BookID    string    `json:"book_id"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

func snapshotOf(book *catalog.Book, actor string, at time.Time) bookPayload {
	return bookPayload{
		BookID:     book.ID.String(),
		Title:      book.Title,
		Author:     book.Author,
		Available:  book.Available,
		BorrowedBy: book.BorrowedBy,
		BorrowedAt: book.BorrowedAt,
		Actor:      actor,
		Timestamp:  at,
	}
}
