package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/runner"
)

// Tx is a write transaction. Each write is journaled inside it.
type Tx struct {
	s     *Store
	tx    *sql.Tx
	token string
}

var (
	_ runner.Tx      = (*Tx)(nil)
	_ runner.Tokened = (*Tx)(nil)
)

// Begin opens a transaction.
func (s *Store) Begin(ctx context.Context) (runner.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{s: s, tx: tx}, nil
}

// SetToken sets the run token recorded with journal entries.
func (t *Tx) SetToken(token string) { t.token = token }

// Insert writes row and returns its key: the explicit one when row carries
// it, else the one SQLite assigned.
func (t *Tx) Insert(ctx context.Context, database, table string, row ir.Row) (ir.Value, error) {
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
			quoteIdent(table), strings.Join(quoted, ", "), placeholders(len(cols)))
	}

	res, err := t.tx.ExecContext(ctx, query, args(row, cols)...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}

	id := row.Get(t.s.keyOf(table))
	if ir.IsNull(id) {
		last, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		id = ir.Int(last)
	}

	if err := t.journal(ctx, "insert", database, table, row, ir.Row{}, id); err != nil {
		return nil, err
	}
	return id, nil
}

// Update writes row to every record matching scope.
func (t *Tx) Update(ctx context.Context, database, table string, row, scope ir.Row) (int64, error) {
	cols := row.SortedKeys()
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quoteIdent(c) + " = ?"
	}
	where, whereArgs := predicate(scope)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", quoteIdent(table), strings.Join(sets, ", "), where)
	res, err := t.tx.ExecContext(ctx, query, append(args(row, cols), whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}

	if err := t.journal(ctx, "update", database, table, row, scope, ir.Int(n)); err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes every record matching scope.
func (t *Tx) Delete(ctx context.Context, database, table string, scope ir.Row) (int64, error) {
	where, whereArgs := predicate(scope)

	res, err := t.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(table), where), whereArgs...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}

	if err := t.journal(ctx, "delete", database, table, ir.Row{}, scope, ir.Int(n)); err != nil {
		return 0, err
	}
	return n, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func (t *Tx) journal(ctx context.Context, op, database, table string, payload, scope ir.Row, result ir.Value) error {
	payloadJSON, err := marshalRow(payload)
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", op, table, err)
	}
	scopeJSON, err := marshalRow(scope)
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", op, table, err)
	}
	resultJSON, err := ir.MarshalCanonical(result)
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", op, table, err)
	}
	fp, err := ir.Fingerprint(payload)
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", op, table, err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO write_journal
		(seq, token, op, db_name, table_name, payload, payload_fp, scope, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.s.clock.Next(),
		t.token,
		op,
		database,
		table,
		payloadJSON,
		fp,
		scopeJSON,
		string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", op, table, err)
	}
	return nil
}

// predicate builds an AND of equality tests over sorted scope columns.
// An empty scope matches nothing.
func predicate(scope ir.Row) (string, []any) {
	cols := scope.SortedKeys()
	if len(cols) == 0 {
		return "0", nil
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = quoteIdent(c) + " = ?"
	}
	return strings.Join(parts, " AND "), args(scope, cols)
}

func args(row ir.Row, cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = ir.ToGo(row[c])
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
