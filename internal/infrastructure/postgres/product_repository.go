package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	"github.com/oksasatya/minha-cantina/internal/domain/repository"
)

const productColumns = `p.id, p.name, p.price, p.description, p.image_url, c.id, c.name`

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*entity.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id)
	return scanProduct(row)
}

func (r *ProductRepository) FindByName(ctx context.Context, name string) (*entity.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.name = $1
	`, name)
	return scanProduct(row)
}

func (r *ProductRepository) List(ctx context.Context) ([]*entity.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		JOIN categories c ON c.id = p.category_id
		ORDER BY p.name
	`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectProducts(rows)
}

func (r *ProductRepository) ListByCategory(ctx context.Context, categoryID int64) ([]*entity.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.category_id = $1
		ORDER BY p.name
	`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]*entity.Product, error) {
	defer func() { _ = rows.Close() }()

	// rows of the same category share one *entity.Category
	categories := map[int64]*entity.Category{}
	out := make([]*entity.Product, 0)
	for rows.Next() {
		p, err := scanProductWith(rows, categories)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func scanProduct(s scanner) (*entity.Product, error) {
	return scanProductWith(s, nil)
}

func scanProductWith(s scanner, categories map[int64]*entity.Category) (*entity.Product, error) {
	var (
		id           int64
		name         string
		price        decimal.Decimal
		description  sql.NullString
		imageURL     string
		categoryID   int64
		categoryName string
	)
	if err := s.Scan(&id, &name, &price, &description, &imageURL, &categoryID, &categoryName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	category, ok := categories[categoryID]
	if !ok {
		var err error
		category, err = entity.RestoreCategory(categoryID, categoryName)
		if err != nil {
			return nil, err
		}
		if categories != nil {
			categories[categoryID] = category
		}
	}

	opts := []entity.ProductOption{entity.WithImageURL(imageURL)}
	if description.Valid {
		opts = append(opts, entity.WithDescription(description.String))
	}
	return entity.RestoreProduct(id, name, price, category, opts...)
}

var errCategoryNotPersisted = errors.New("product category has not been persisted")

func productArgs(p *entity.Product) (sql.NullString, error) {
	if p.Category() == nil || p.Category().IsPending() {
		return sql.NullString{}, errCategoryNotPersisted
	}
	d, ok := p.Description()
	return sql.NullString{String: d, Valid: ok}, nil
}

func insertProduct(ctx context.Context, db DBTX, p *entity.Product) (int64, error) {
	description, err := productArgs(p)
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.QueryRowContext(ctx, `
		INSERT INTO products (name, price, description, image_url, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.Name(), p.Price(), description, p.ImageURL(), p.Category().ID()).Scan(&id)
	return id, err
}

func updateProduct(ctx context.Context, db DBTX, p *entity.Product) error {
	description, err := productArgs(p)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, price = $2, description = $3, image_url = $4, category_id = $5, updated_at = now()
		WHERE id = $6
	`, p.Name(), p.Price(), description, p.ImageURL(), p.Category().ID(), p.ID())
	return checkAffected(res, err)
}

var _ repository.ProductFinder = (*ProductRepository)(nil)
