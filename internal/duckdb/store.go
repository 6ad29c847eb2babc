// Package duckdb keeps a SQL-queryable copy of the dataset generation currently shown.
package duckdb

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tinytelemetry/netpulse/internal/duckdb/migrate"
)

// DefaultQueryTimeout bounds every statement issued by the store.
const DefaultQueryTimeout = 30 * time.Second

// Store is an in-memory DuckDB database holding exactly one dataset generation.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	generation   uint64
	QueryTimeout time.Duration
}

// NewStore opens an in-memory database and applies the schema.
// An optional queryTimeout can be passed; it defaults to 30s.
func NewStore(queryTimeout ...time.Duration) (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, err
	}

	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, err
	}

	qt := DefaultQueryTimeout
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		QueryTimeout: qt,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Generation returns the generation of the dataset currently stored, 0 before the first replace.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
