package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/uow/internal/runner"
	"github.com/roach88/uow/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - write_journal
const currentSchemaVersion = 1

// Store is a SQLite database that runs unit-of-work transactions and
// journals their writes.
type Store struct {
	db    *sql.DB
	clock *Clock

	mu   sync.RWMutex
	keys map[string]string // table -> primary key column
}

var _ runner.Driver = (*Store)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the journal schema automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var last int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM write_journal").Scan(&last); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read journal position: %w", err)
	}

	return &Store{db: db, clock: NewClockAt(last), keys: make(map[string]string)}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureTable creates the table of def if it does not exist and records
// its primary key. The key column is an INTEGER PRIMARY KEY so SQLite
// assigns it; other columns are untyped.
func (s *Store) EnsureTable(ctx context.Context, def *schema.Definition) error {
	cols := []string{quoteIdent(def.PrimaryKey) + " INTEGER PRIMARY KEY"}
	for _, c := range def.Columns {
		if c != def.PrimaryKey {
			cols = append(cols, quoteIdent(c))
		}
	}
	if len(def.Variants) > 0 && !def.HasColumn(schema.Discriminator) {
		cols = append(cols, quoteIdent(schema.Discriminator))
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(def.Table), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table %s: %w", def.Table, err)
	}
	s.RegisterKey(def.Table, def.PrimaryKey)
	return nil
}

// EnsureTables runs EnsureTable for every role of reg.
func (s *Store) EnsureTables(ctx context.Context, reg *schema.Registry) error {
	for _, role := range reg.Roles() {
		def, err := reg.Lookup(role)
		if err != nil {
			return err
		}
		if err := s.EnsureTable(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterKey records the primary key of a table created elsewhere.
func (s *Store) RegisterKey(table, column string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[table] = column
}

func (s *Store) keyOf(table string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, ok := s.keys[table]; ok {
		return k
	}
	return "id"
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the journal if it doesn't exist and stamps the
// schema version. This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
