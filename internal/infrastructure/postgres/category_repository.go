package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	"github.com/oksasatya/minha-cantina/internal/domain/repository"
)

type CategoryRepository struct {
	db DBTX
}

func NewCategoryRepository(db DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) FindByID(ctx context.Context, id int64) (*entity.Category, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM categories
		WHERE id = $1
	`, id)
	return scanCategory(row)
}

func (r *CategoryRepository) FindByName(ctx context.Context, name string) (*entity.Category, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM categories
		WHERE name = $1
	`, name)
	return scanCategory(row)
}

func (r *CategoryRepository) List(ctx context.Context) ([]*entity.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (*entity.Category, error) {
	var (
		id   int64
		name string
	)
	if err := s.Scan(&id, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entity.RestoreCategory(id, name)
}

func insertCategory(ctx context.Context, db DBTX, c *entity.Category) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO categories (name)
		VALUES ($1)
		RETURNING id
	`, c.Name()).Scan(&id)
	return id, err
}

func updateCategory(ctx context.Context, db DBTX, c *entity.Category) error {
	res, err := db.ExecContext(ctx, `
		UPDATE categories
		SET name = $1, updated_at = now()
		WHERE id = $2
	`, c.Name(), c.ID())
	return checkAffected(res, err)
}

var _ repository.CategoryFinder = (*CategoryRepository)(nil)
