package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	"github.com/oksasatya/minha-cantina/internal/domain/repository"
)

// Gateway implements repository.Gateway on top of database/sql backed by pgx.
type Gateway struct {
	db *sql.DB
}

func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) Categories() repository.CategoryFinder { return NewCategoryRepository(g.db) }
func (g *Gateway) Products() repository.ProductFinder    { return NewProductRepository(g.db) }
func (g *Gateway) Users() repository.UserFinder          { return NewUserRepository(g.db) }

func (g *Gateway) Begin() repository.UnitOfWork {
	return &unitOfWork{db: g.db}
}

func (g *Gateway) IsDuplicate(err error) bool {
	return IsUniqueViolation(err)
}

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
	db  *sql.DB
	ops []stagedOp
}

func (u *unitOfWork) Add(a entity.Aggregate)    { u.ops = append(u.ops, stagedOp{actionAdd, a}) }
func (u *unitOfWork) Update(a entity.Aggregate) { u.ops = append(u.ops, stagedOp{actionUpdate, a}) }
func (u *unitOfWork) Remove(a entity.Aggregate) { u.ops = append(u.ops, stagedOp{actionRemove, a}) }

// Commit flushes staged operations in one transaction.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if len(u.ops) == 0 {
		return nil
	}

	type assignment struct {
		agg entity.Aggregate
		id  int64
	}
	var assigned []assignment

	err := WithTx(ctx, u.db, nil, func(ctx context.Context, tx DBTX) error {
		for _, op := range u.ops {
			switch op.action {
			case actionAdd:
				id, err := insert(ctx, tx, op.agg)
				if err != nil {
					return fmt.Errorf("insert %s: %w", op.agg.Kind(), err)
				}
				assigned = append(assigned, assignment{agg: op.agg, id: id})
			case actionUpdate:
				if err := update(ctx, tx, op.agg); err != nil {
					return fmt.Errorf("update %s %d: %w", op.agg.Kind(), op.agg.ID(), err)
				}
			case actionRemove:
				if err := remove(ctx, tx, op.agg); err != nil {
					return fmt.Errorf("delete %s %d: %w", op.agg.Kind(), op.agg.ID(), err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, a := range assigned {
		a.agg.AssignID(a.id)
	}
	u.ops = nil
	return nil
}

func insert(ctx context.Context, db DBTX, a entity.Aggregate) (int64, error) {
	switch v := a.(type) {
	case *entity.Category:
		return insertCategory(ctx, db, v)
	case *entity.Product:
		return insertProduct(ctx, db, v)
	case *entity.User:
		return insertUser(ctx, db, v)
	default:
		return 0, fmt.Errorf("unsupported aggregate %T", a)
	}
}

func update(ctx context.Context, db DBTX, a entity.Aggregate) error {
	switch v := a.(type) {
	case *entity.Category:
		return updateCategory(ctx, db, v)
	case *entity.Product:
		return updateProduct(ctx, db, v)
	case *entity.User:
		return updateUser(ctx, db, v)
	default:
		return fmt.Errorf("unsupported aggregate %T", a)
	}
}

var tables = map[entity.Kind]string{
	entity.KindCategory: "categories",
	entity.KindProduct:  "products",
	entity.KindUser:     "users",
}

func remove(ctx context.Context, db DBTX, a entity.Aggregate) error {
	table, ok := tables[a.Kind()]
	if !ok {
		return fmt.Errorf("unsupported aggregate %T", a)
	}
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, a.ID())
	return checkAffected(res, err)
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.Gateway = (*Gateway)(nil)
