// internal/lending/service.go
package lending

import (
	"context"

	"github.com/google/uuid"

	"libraflow/internal/catalog"
)

// Service owns every book mutation. Each successful call commits exactly one
// catalog change together with one event, then hands the event to the
// publisher.
type Service interface {
	CreateBook(ctx context.Context, actor, title, author string) (*catalog.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*catalog.Book, error)
	ListBooks(ctx context.Context, filter catalog.ListFilter) ([]*catalog.Book, error)
	UpdateBook(ctx context.Context, actor string, id uuid.UUID, update BookUpdate) (*catalog.Book, error)
	DeleteBook(ctx context.Context, actor string, id uuid.UUID) error
	Borrow(ctx context.Context, id uuid.UUID, actor string) (*catalog.Book, error)
	Return(ctx context.Context, id uuid.UUID, actor string) (*catalog.Book, error)
}
