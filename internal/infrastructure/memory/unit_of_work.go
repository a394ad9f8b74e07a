package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	"github.com/oksasatya/minha-cantina/internal/domain/repository"
)

var errForeignKey = errors.New("foreign key violation")

type action int

const (
	actionAdd action = iota
	actionUpdate
	actionRemove
)

type stagedOp struct {
	action action
	agg    entity.Aggregate
}

type unitOfWork struct {
	g   *Gateway
	ops []stagedOp
}

func (u *unitOfWork) Add(a entity.Aggregate)    { u.ops = append(u.ops, stagedOp{actionAdd, a}) }
func (u *unitOfWork) Update(a entity.Aggregate) { u.ops = append(u.ops, stagedOp{actionUpdate, a}) }
func (u *unitOfWork) Remove(a entity.Aggregate) { u.ops = append(u.ops, stagedOp{actionRemove, a}) }

// Commit applies staged operations to a copy of the state and swaps it in
// only if every operation and constraint check succeeds.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(u.ops) == 0 {
		return nil
	}

	u.g.mu.Lock()
	defer u.g.mu.Unlock()

	if err := u.g.FailNext; err != nil {
		u.g.FailNext = nil
		return err
	}

	next := u.g.st.clone()
	type assignment struct {
		agg entity.Aggregate
		id  int64
	}
	var assigned []assignment

	for _, op := range u.ops {
		var err error
		switch op.action {
		case actionAdd:
			next.nextID++
			id := next.nextID
			if err = put(next, op.agg, id); err == nil {
				assigned = append(assigned, assignment{agg: op.agg, id: id})
			}
		case actionUpdate:
			err = replace(next, op.agg)
		case actionRemove:
			err = drop(next, op.agg)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op.agg.Kind(), err)
		}
	}
	if err := checkUnique(next); err != nil {
		return err
	}

	u.g.st = next
	for _, a := range assigned {
		a.agg.AssignID(a.id)
	}
	u.ops = nil
	return nil
}

func put(st *state, a entity.Aggregate, id int64) error {
	switch v := a.(type) {
	case *entity.Category:
		st.categories[id] = categoryRow{id: id, name: v.Name()}
	case *entity.Product:
		row, err := toProductRow(st, v, id)
		if err != nil {
			return err
		}
		st.products[id] = row
	case *entity.User:
		st.users[id] = userRow{id: id, name: v.Name(), handle: v.Handle(), credential: v.Credential()}
	default:
		return fmt.Errorf("unsupported aggregate %T", a)
	}
	return nil
}

func replace(st *state, a entity.Aggregate) error {
	id := a.ID()
	switch v := a.(type) {
	case *entity.Category:
		if _, ok := st.categories[id]; !ok {
			return repository.ErrNotFound
		}
		st.categories[id] = categoryRow{id: id, name: v.Name()}
	case *entity.Product:
		if _, ok := st.products[id]; !ok {
			return repository.ErrNotFound
		}
		row, err := toProductRow(st, v, id)
		if err != nil {
			return err
		}
		st.products[id] = row
	case *entity.User:
		if _, ok := st.users[id]; !ok {
			return repository.ErrNotFound
		}
		st.users[id] = userRow{id: id, name: v.Name(), handle: v.Handle(), credential: v.Credential()}
	default:
		return fmt.Errorf("unsupported aggregate %T", a)
	}
	return nil
}

func drop(st *state, a entity.Aggregate) error {
	id := a.ID()
	switch a.Kind() {
	case entity.KindCategory:
		if _, ok := st.categories[id]; !ok {
			return repository.ErrNotFound
		}
		for _, p := range st.products {
			if p.categoryID == id {
				return errForeignKey
			}
		}
		delete(st.categories, id)
	case entity.KindProduct:
		if _, ok := st.products[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.products, id)
	case entity.KindUser:
		if _, ok := st.users[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.users, id)
	default:
		return fmt.Errorf("unsupported aggregate %T", a)
	}
	return nil
}

func toProductRow(st *state, p *entity.Product, id int64) (productRow, error) {
	c := p.Category()
	if c == nil || c.IsPending() {
		return productRow{}, errors.New("product category has not been persisted")
	}
	if _, ok := st.categories[c.ID()]; !ok {
		return productRow{}, errForeignKey
	}
	row := productRow{
		id:         id,
		name:       p.Name(),
		price:      p.Price(),
		imageURL:   p.ImageURL(),
		categoryID: c.ID(),
	}
	if d, ok := p.Description(); ok {
		row.description = &d
	}
	return row, nil
}

func checkUnique(st *state) error {
	seen := map[string]struct{}{}
	for _, c := range st.categories {
		if _, dup := seen[c.name]; dup {
			return &ConstraintError{Constraint: "categories_name_key", Value: c.name}
		}
		seen[c.name] = struct{}{}
	}
	seen = map[string]struct{}{}
	for _, p := range st.products {
		if _, dup := seen[p.name]; dup {
			return &ConstraintError{Constraint: "products_name_key", Value: p.name}
		}
		seen[p.name] = struct{}{}
	}
	seen = map[string]struct{}{}
	for _, u := range st.users {
		if _, dup := seen[u.handle]; dup {
			return &ConstraintError{Constraint: "users_username_key", Value: u.handle}
		}
		seen[u.handle] = struct{}{}
	}
	return nil
}
