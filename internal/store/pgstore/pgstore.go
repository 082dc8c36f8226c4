// Package pgstore runs unit-of-work transactions against PostgreSQL.
//
// Tables are created with a BIGSERIAL primary key and TEXT columns. Values
// travel as text literals through the simple query protocol so PostgreSQL
// coerces them to each column's type. The database name carried by
// commands is ignored: every table lives in the connection's search path.
package pgstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/runner"
	"github.com/roach88/uow/internal/schema"
)

// Store is a PostgreSQL runner.Driver.
type Store struct {
	db *pgxpool.Pool

	mu   sync.RWMutex
	keys map[string]string
}

var _ runner.Driver = (*Store)(nil)

// Open connects to dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return New(pool), nil
}

// New creates a Store backed by the given pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, keys: make(map[string]string)}
}

// Close closes the pool.
func (s *Store) Close() {
	s.db.Close()
}

// EnsureTable creates the table of def if it does not exist.
func (s *Store) EnsureTable(ctx context.Context, def *schema.Definition) error {
	cols := []string{quoteIdent(def.PrimaryKey) + " BIGSERIAL PRIMARY KEY"}
	for _, c := range def.Columns {
		if c != def.PrimaryKey {
			cols = append(cols, quoteIdent(c)+" TEXT")
		}
	}
	if len(def.Variants) > 0 && !def.HasColumn(schema.Discriminator) {
		cols = append(cols, quoteIdent(schema.Discriminator)+" TEXT")
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(def.Table), strings.Join(cols, ", "))
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgstore: ensure table %s: %w", def.Table, err)
	}
	s.mu.Lock()
	s.keys[def.Table] = def.PrimaryKey
	s.mu.Unlock()
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

// DropTables drops the tables of reg.
func (s *Store) DropTables(ctx context.Context, reg *schema.Registry) error {
	seen := make(map[string]bool)
	var tables []string
	for _, role := range reg.Roles() {
		def, err := reg.Lookup(role)
		if err != nil {
			return err
		}
		if !seen[def.Table] {
			seen[def.Table] = true
			tables = append(tables, quoteIdent(def.Table))
		}
	}
	if len(tables) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, "DROP TABLE IF EXISTS "+strings.Join(tables, ", ")+" CASCADE")
	return err
}

// Rows returns every record of table ordered by primary key.
func (s *Store) Rows(ctx context.Context, table string) ([]ir.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", quoteIdent(table), quoteIdent(s.keyOf(table)))
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgstore: query %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []ir.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("pgstore: scan %s: %w", table, err)
		}
		row := make(ir.Row, len(fields))
		for i, fd := range fields {
			v, err := ir.FromGo(values[i])
			if err != nil {
				return nil, fmt.Errorf("pgstore: scan %s.%s: %w", table, fd.Name, err)
			}
			row[fd.Name] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: iterate %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) keyOf(table string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, ok := s.keys[table]; ok {
		return k
	}
	return "id"
}

// Begin opens a transaction. ctx also bounds Commit and Rollback.
func (s *Store) Begin(ctx context.Context) (runner.Tx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgstore: begin tx: %w", err)
	}
	return &Tx{s: s, tx: tx, ctx: ctx}, nil
}

// Tx is a PostgreSQL write transaction.
type Tx struct {
	s   *Store
	tx  pgx.Tx
	ctx context.Context
}

// Insert writes row, returning the generated key unless row carries one.
func (t *Tx) Insert(ctx context.Context, _, table string, row ir.Row) (ir.Value, error) {
	key := t.s.keyOf(table)
	cols := row.SortedKeys()

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdent(table))
	} else {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = quoteIdent(c)
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(table), strings.Join(quoted, ", "), placeholders(1, len(cols)))
	}
	query += " RETURNING " + quoteIdent(key)

	var id int64
	if err := t.tx.QueryRow(ctx, query, args(row, cols)...).Scan(&id); err != nil {
		return nil, fmt.Errorf("pgstore: insert %s: %w", table, err)
	}
	if v := row.Get(key); !ir.IsNull(v) {
		return v, nil
	}
	return ir.Int(id), nil
}

// Update writes row to every record matching scope.
func (t *Tx) Update(ctx context.Context, _, table string, row, scope ir.Row) (int64, error) {
	cols := row.SortedKeys()
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdent(c), i+1)
	}
	where, whereArgs := predicate(scope, len(cols)+1)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", quoteIdent(table), strings.Join(sets, ", "), where)
	tag, err := t.tx.Exec(ctx, query, append(args(row, cols), whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("pgstore: update %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes every record matching scope.
func (t *Tx) Delete(ctx context.Context, _, table string, scope ir.Row) (int64, error) {
	where, whereArgs := predicate(scope, 1)
	tag, err := t.tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(table), where), whereArgs...)
	if err != nil {
		return 0, fmt.Errorf("pgstore: delete %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit(t.ctx) }

// Rollback aborts the transaction.
func (t *Tx) Rollback() error { return t.tx.Rollback(t.ctx) }

// predicate builds an AND of equality tests with placeholders numbered
// from first. An empty scope matches nothing.
func predicate(scope ir.Row, first int) (string, []any) {
	cols := scope.SortedKeys()
	if len(cols) == 0 {
		return "FALSE", nil
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = $%d", quoteIdent(c), first+i)
	}
	return strings.Join(parts, " AND "), args(scope, cols)
}

// args renders values as text; Null stays nil.
func args(row ir.Row, cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		v := row.Get(c)
		if ir.IsNull(v) {
			out[i] = nil
			continue
		}
		out[i] = v.String()
	}
	return out
}

func placeholders(first, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "$" + strconv.Itoa(first+i)
	}
	return strings.Join(ps, ", ")
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
