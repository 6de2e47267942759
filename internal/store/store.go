// Package store persists the records served by enclookupd. Primary keys
// are plain integers here; tokens exist only at the HTTP boundary.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/paraglidehq/enclookup"
	"github.com/paraglidehq/enclookup/field"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = field.ErrObjectNotFound

type Record struct {
	ID     enclookup.ID     `db:"id" json:"id"`
	Name   string           `db:"name" json:"name"`
	Parent enclookup.NullID `db:"parent_id" json:"parent"`
}

var schemas = map[string]string{
	"sqlite": `
		CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			parent_id INTEGER REFERENCES records (id)
		)`,
	"postgres": `
		CREATE TABLE IF NOT EXISTS records (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			parent_id BIGINT REFERENCES records (id)
		)`,
}

type Store struct {
	db *sqlx.DB
}

// Open connects to the database and creates the schema if needed. driver
// is "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if driver == "sqlite" {
		// Serialize writers; in-memory databases vanish with their last connection.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle, e.g. for postgres.Migrate.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements field.Getter.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	var r Record
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT id, name, parent_id FROM records WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: get: %w", err)
	}
	return r, nil
}

func (s *Store) List(ctx context.Context) ([]Record, error) {
	records := []Record{}
	if err := s.db.SelectContext(ctx, &records, `SELECT id, name, parent_id FROM records ORDER BY id`); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return records, nil
}

func (s *Store) Create(ctx context.Context, name string, parent enclookup.NullID) (Record, error) {
	r := Record{Name: name, Parent: parent}
	err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`INSERT INTO records (name, parent_id) VALUES (?, ?) RETURNING id`),
		name, parent,
	).Scan(&r.ID)
	if err != nil {
		return Record{}, fmt.Errorf("store: create: %w", err)
	}
	return r, nil
}
