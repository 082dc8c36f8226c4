package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/runner"
)

// JournalEntry is one journaled write.
type JournalEntry struct {
	Seq      int64
	Token    string
	Op       string
	Database string
	Table    string
	Payload  ir.Row
	Scope    ir.Row

	// Fingerprint is ir.Fingerprint of Payload at write time.
	Fingerprint string

	// Result is the key for inserts and the affected row count otherwise.
	Result ir.Value
}

// ReadJournal returns the entries of run token ordered by seq. An empty
// token returns every entry.
//
// Returns an empty slice (not nil) if no entries exist.
func (s *Store) ReadJournal(ctx context.Context, token string) ([]JournalEntry, error) {
	query := `
		SELECT seq, token, op, db_name, table_name, payload, payload_fp, scope, result
		FROM write_journal
		WHERE (? = '' OR token = ?)
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, token, token)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// Tokens returns the run tokens in the journal, oldest first.
func (s *Store) Tokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM write_journal GROUP BY token ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}

// Replay applies the journaled writes of run token to dst in order.
// Inserts carry the key the original run produced. An entry whose payload
// no longer matches its fingerprint stops the replay. Returns the number
// of writes applied; dst is neither committed nor rolled back.
func (s *Store) Replay(ctx context.Context, token string, dst runner.Tx) (int, error) {
	if token == "" {
		return 0, fmt.Errorf("replay: token is required")
	}
	entries, err := s.ReadJournal(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}

	for i, e := range entries {
		if err := e.verify(); err != nil {
			return i, fmt.Errorf("replay seq %d: %w", e.Seq, err)
		}
		switch e.Op {
		case "insert":
			row := e.Payload.Clone()
			row[s.keyOf(e.Table)] = e.Result
			_, err = dst.Insert(ctx, e.Database, e.Table, row)
		case "update":
			_, err = dst.Update(ctx, e.Database, e.Table, e.Payload, e.Scope)
		case "delete":
			_, err = dst.Delete(ctx, e.Database, e.Table, e.Scope)
		default:
			err = fmt.Errorf("unknown op %q", e.Op)
		}
		if err != nil {
			return i, fmt.Errorf("replay seq %d: %w", e.Seq, err)
		}
	}
	return len(entries), nil
}

// Rows returns every record of table in rowid order.
func (s *Store) Rows(ctx context.Context, table string) ([]ir.Row, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid ASC", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}

	out := []ir.Row{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(ir.Row, len(cols))
		for i, c := range cols {
			v, err := ir.FromGo(raw[i])
			if err != nil {
				return nil, fmt.Errorf("scan %s.%s: %w", table, c, err)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func scanEntry(sc *sql.Rows) (JournalEntry, error) {
	var (
		e                     JournalEntry
		payload, scope, result string
	)
	if err := sc.Scan(&e.Seq, &e.Token, &e.Op, &e.Database, &e.Table, &payload, &e.Fingerprint, &scope, &result); err != nil {
		return e, fmt.Errorf("scan journal entry: %w", err)
	}
	var err error
	if e.Payload, err = unmarshalRow(payload); err != nil {
		return e, fmt.Errorf("journal seq %d payload: %w", e.Seq, err)
	}
	if e.Scope, err = unmarshalRow(scope); err != nil {
		return e, fmt.Errorf("journal seq %d scope: %w", e.Seq, err)
	}
	if e.Result, err = ir.UnmarshalValue([]byte(result)); err != nil {
		return e, fmt.Errorf("journal seq %d result: %w", e.Seq, err)
	}
	return e, nil
}

// verify checks the payload against its recorded fingerprint.
func (e JournalEntry) verify() error {
	fp, err := ir.Fingerprint(e.Payload)
	if err != nil {
		return err
	}
	if fp != e.Fingerprint {
		return fmt.Errorf("payload fingerprint mismatch for %s %s", e.Op, e.Table)
	}
	return nil
}
