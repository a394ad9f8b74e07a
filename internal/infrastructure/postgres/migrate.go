package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenMigrations opens the migration files under dir.
func OpenMigrations(dir string) (source.Driver, error) {
	src, err := (&file.File{}).Open(fmt.Sprintf("file://%s", dir))
	if err != nil {
		return nil, fmt.Errorf("open migrations %s: %w", dir, err)
	}
	return src, nil
}

// Migrate applies every pending up migration from dir. applied is false when
// the schema was already current. The files are opened before the database
// so a wrong dir fails without touching it.
func Migrate(dsn, dir string) (applied bool, err error) {
	src, err := OpenMigrations(dir)
	if err != nil {
		return false, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = src.Close()
		return false, err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		_ = src.Close()
		return false, err
	}
	m, err := migrate.NewWithInstance("file", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		return false, err
	}
	defer func() { _, _ = m.Close() }()
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	return err == nil, err
}
