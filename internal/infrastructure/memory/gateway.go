// Package memory provides a map-backed persistence gateway with the same
// commit-time uniqueness rules as the Postgres schema. It backs
// STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	"github.com/oksasatya/minha-cantina/internal/domain/repository"
)

// ConstraintError is this store's duplicate-key signal.
type ConstraintError struct {
	Constraint string
	Value      string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("unique constraint %q violated by %q", e.Constraint, e.Value)
}

// IsUniqueViolation reports whether err carries a *ConstraintError.
func IsUniqueViolation(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

type categoryRow struct {
	id   int64
	name string
}

type productRow struct {
	id          int64
	name        string
	price       decimal.Decimal
	description *string
	imageURL    string
	categoryID  int64
}

type userRow struct {
	id         int64
	name       string
	handle     string
	credential string
}

type state struct {
	nextID     int64
	categories map[int64]categoryRow
	products   map[int64]productRow
	users      map[int64]userRow
}

func (s *state) clone() *state {
	c := &state{
		nextID:     s.nextID,
		categories: make(map[int64]categoryRow, len(s.categories)),
		products:   make(map[int64]productRow, len(s.products)),
		users:      make(map[int64]userRow, len(s.users)),
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// Gateway is safe for concurrent use. Rows are copied in and out, so callers
// never share entity pointers with the store.
type Gateway struct {
	mu sync.RWMutex
	st *state
	// FailNext, when set, is returned by the next Commit instead of applying it.
	FailNext error
}

func NewGateway() *Gateway {
	return &Gateway{st: &state{
		categories: map[int64]categoryRow{},
		products:   map[int64]productRow{},
		users:      map[int64]userRow{},
	}}
}

func (g *Gateway) Categories() repository.CategoryFinder { return categoryFinder{g} }
func (g *Gateway) Products() repository.ProductFinder    { return productFinder{g} }
func (g *Gateway) Users() repository.UserFinder          { return userFinder{g} }
func (g *Gateway) Begin() repository.UnitOfWork          { return &unitOfWork{g: g} }
func (g *Gateway) IsDuplicate(err error) bool            { return IsUniqueViolation(err) }

type categoryFinder struct{ g *Gateway }

func (f categoryFinder) FindByID(_ context.Context, id int64) (*entity.Category, error) {
	f.g.mu.RLock()
	defer f.g.mu.RUnlock()
	row, ok := f.g.st.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return entity.RestoreCategory(row.id, row.name)
}

func (f categoryFinder) FindByName(_ context.Context, name string) (*entity.Category, error) {
	f.g.mu.RLock()
	defer f.g.mu.RUnlock()
	for _, row := range f.g.st.categories {
		if row.name == name {
			return entity.RestoreCategory(row.id, row.name)
		}
	}
	return nil, repository.ErrNotFound
}

func (f categoryFinder) List(_ context.Context) ([]*entity.Category, error) {
	f.g.mu.RLock()
	defer f.g.mu.RUnlock()
	out := make([]*entity.Category, 0, len(f.g.st.categories))
	for _, row := range f.g.st.categories {
		c, err := entity.RestoreCategory(row.id, row.name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

type productFinder struct{ g *Gateway }

func (f productFinder) FindByID(_ context.Context, id int64) (*entity.Product, error) {
	f.g.mu.RLock()
	defer f.g.mu.RUnlock()
	row, ok := f.g.st.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.restore(row, nil)
}

func (f productFinder) FindByName(_ context.Context, name string) (*entity.Product, error) {
	f.g.mu.RLock()
	defer f.g.mu.RUnlock()
	for _, row := range f.g.st.products {
		if row.name == name {
			return f.restore(row, nil)
		}
	}
	return nil, repository.ErrNotFound
}

func (f productFinder) List(_ context.Context) ([]*entity.Product, error) {
	return f.list(func(productRow) bool { return true })
}

func (f productFinder) ListByCategory(_ context.Context, categoryID int64) ([]*entity.Product, error) {
	return f.list(func(r productRow) bool { return r.categoryID == categoryID })
}

func (f productFinder) list(keep func(productRow) bool) ([]*entity.Product, error) {
	f.g.mu.RLock()
	defer f.g.mu.RUnlock()
	shared := map[int64]*entity.Category{}
	out := make([]*entity.Product, 0)
	for _, row := range f.g.st.products {
		if !keep(row) {
			continue
		}
		p, err := f.restore(row, shared)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// restore must be called with the read lock held.
func (f productFinder) restore(row productRow, shared map[int64]*entity.Category) (*entity.Product, error) {
	c, ok := shared[row.categoryID]
	if !ok {
		crow, exists := f.g.st.categories[row.categoryID]
		if !exists {
			return nil, fmt.Errorf("product %d references missing category %d", row.id, row.categoryID)
		}
		var err error
		c, err = entity.RestoreCategory(crow.id, crow.name)
		if err != nil {
			return nil, err
		}
		if shared != nil {
			shared[row.categoryID] = c
		}
	}
	opts := []entity.ProductOption{entity.WithImageURL(row.imageURL)}
	if row.description != nil {
		opts = append(opts, entity.WithDescription(*row.description))
	}
	return entity.RestoreProduct(row.id, row.name, row.price, c, opts...)
}

type userFinder struct{ g *Gateway }

func (f userFinder) FindByID(_ context.Context, id int64) (*entity.User, error) {
	f.g.mu.RLock()
	defer f.g.mu.RUnlock()
	row, ok := f.g.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return entity.RestoreUser(row.id, row.name, row.credential, row.handle)
}

func (f userFinder) FindByHandle(_ context.Context, handle string) (*entity.User, error) {
	f.g.mu.RLock()
	defer f.g.mu.RUnlock()
	for _, row := range f.g.st.users {
		if row.handle == handle {
			return entity.RestoreUser(row.id, row.name, row.credential, row.handle)
		}
	}
	return nil, repository.ErrNotFound
}

var (
	_ repository.Gateway        = (*Gateway)(nil)
	_ repository.CategoryFinder = categoryFinder{}
	_ repository.ProductFinder  = productFinder{}
	_ repository.UserFinder     = userFinder{}
)
