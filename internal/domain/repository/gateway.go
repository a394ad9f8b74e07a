package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/minha-cantina/internal/domain/entity"
)

// ErrNotFound is returned by finders when nothing matches.
var ErrNotFound = errors.New("not found")

// CategoryFinder looks categories up by id or name.
type CategoryFinder interface {
	FindByID(ctx context.Context, id int64) (*entity.Category, error)
	FindByName(ctx context.Context, name string) (*entity.Category, error)
	List(ctx context.Context) ([]*entity.Category, error)
}

// ProductFinder loads products together with their category.
type ProductFinder interface {
	FindByID(ctx context.Context, id int64) (*entity.Product, error)
	FindByName(ctx context.Context, name string) (*entity.Product, error)
	List(ctx context.Context) ([]*entity.Product, error)
	ListByCategory(ctx context.Context, categoryID int64) ([]*entity.Product, error)
}

// UserFinder looks users up by id or login handle.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	FindByHandle(ctx context.Context, handle string) (*entity.User, error)
}

// UnitOfWork stages changes and flushes them on Commit.
// Commit is the only place unique-constraint violations surface; ids of added
// aggregates are assigned only after a successful commit.
type UnitOfWork interface {
	Add(a entity.Aggregate)
	Update(a entity.Aggregate)
	Remove(a entity.Aggregate)
	Commit(ctx context.Context) error
}

// Gateway is the persistence boundary consumed by the application layer.
type Gateway interface {
	Categories() CategoryFinder
	Products() ProductFinder
	Users() UserFinder
	Begin() UnitOfWork
	// IsDuplicate recognises this store's unique-constraint signal in a Commit error.
	IsDuplicate(err error) bool
}
