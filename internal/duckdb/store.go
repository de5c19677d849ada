package duckdb

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tinytelemetry/logwatch/internal/duckdb/migrate"
)

// DefaultQueryTimeout bounds every store call.
const DefaultQueryTimeout = 30 * time.Second

// Store persists normalized log records in DuckDB.
// Writes take the lock exclusively, so every read sees one coherent record set.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database.
// If dbPath is empty, an in-memory database is used.
// An optional queryTimeout can be passed; it defaults to DefaultQueryTimeout.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, storageErr("create data dir", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}

	applied, err := migrate.NewRunner(db).Run()
	if err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}
	if applied > 0 {
		log.Printf("duckdb: applied %d schema migrations", applied)
	}

	qt := DefaultQueryTimeout
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		QueryTimeout: qt,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the database file path, or "" for in-memory stores.
func (s *Store) DBPath() string {
	return s.dbPath
}
