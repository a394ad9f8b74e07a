package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	"github.com/oksasatya/minha-cantina/internal/domain/repository"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, username, password
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByHandle(ctx context.Context, handle string) (*entity.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, username, password
		FROM users
		WHERE username = $1
	`, handle)
	return scanUser(row)
}

func scanUser(s scanner) (*entity.User, error) {
	var (
		id                       int64
		name, handle, credential string
	)
	if err := s.Scan(&id, &name, &handle, &credential); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entity.RestoreUser(id, name, credential, handle)
}

func insertUser(ctx context.Context, db DBTX, u *entity.User) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO users (name, username, password)
		VALUES ($1, $2, $3)
		RETURNING id
	`, u.Name(), u.Handle(), u.Credential()).Scan(&id)
	return id, err
}

func updateUser(ctx context.Context, db DBTX, u *entity.User) error {
	res, err := db.ExecContext(ctx, `
		UPDATE users
		SET name = $1, username = $2, password = $3, updated_at = now()
		WHERE id = $4
	`, u.Name(), u.Handle(), u.Credential(), u.ID())
	return checkAffected(res, err)
}

var _ repository.UserFinder = (*UserRepository)(nil)
