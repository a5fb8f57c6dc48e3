// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"libraflow/internal/domain"
)

var (
	ErrNotFound     = fmt.Errorf("book %w", domain.ErrNotFound)
	ErrNotAvailable = errors.New("book is already borrowed")
	ErrNotBorrowed  = errors.New("book is already available")
)

// Book represents a single catalog entry. BorrowedBy and BorrowedAt are set
// exactly when Available is false; the books table enforces this with a
// check constraint.
type Book struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Title      string     `db:"title" json:"title"`
	Author     string     `db:"author" json:"author"`
	Available  bool       `db:"available" json:"available"`
	BorrowedBy *string    `db:"borrowed_by" json:"borrowed_by,omitempty"`
	BorrowedAt *time.Time `db:"borrowed_at" json:"borrowed_at,omitempty"`
	CreatedBy  string     `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ListFilter narrows List results. Nil fields match everything.
type ListFilter struct {
	Title     string
	Author    string
	Available *bool
	Limit     int
}
