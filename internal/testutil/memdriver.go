// Package testutil provides an in-memory runner.Driver for tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/runner"
)

// Op is one write a MemDriver transaction performed.
type Op struct {
	Token    string
	Kind     string
	Database string
	Table    string
	Row      ir.Row
	Scope    ir.Row
}

// MemDriver keeps tables in memory. Inserts without a key get the next
// integer of their table starting at 1. Writes become visible on commit.
//
// Thread-safety: safe for concurrent use; transactions serialize on commit.
type MemDriver struct {
	mu     sync.Mutex
	key    string
	tables map[string][]ir.Row
	next   map[string]int64

	// Committed lists writes of committed transactions in order.
	Committed []Op
	// Rollbacks counts rolled back transactions.
	Rollbacks int

	// FailOn, when set, is consulted before each write.
	FailOn func(op Op) error
	// FailBegin and FailCommit inject transaction errors.
	FailBegin  error
	FailCommit error
}

var _ runner.Driver = (*MemDriver)(nil)

// NewMemDriver creates a driver whose tables are keyed by column "id".
func NewMemDriver() *MemDriver {
	return NewMemDriverWithKey("id")
}

// NewMemDriverWithKey creates a driver whose tables are keyed by key.
func NewMemDriverWithKey(key string) *MemDriver {
	return &MemDriver{
		key:    key,
		tables: make(map[string][]ir.Row),
		next:   make(map[string]int64),
	}
}

// Rows returns a copy of the committed rows of database.table.
func (d *MemDriver) Rows(database, table string) []ir.Row {
	d.mu.Lock()
	defer d.mu.Unlock()
	rows := d.tables[database+"."+table]
	out := make([]ir.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Begin opens a transaction over a snapshot of the tables.
func (d *MemDriver) Begin(context.Context) (runner.Tx, error) {
	if d.FailBegin != nil {
		return nil, d.FailBegin
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	tx := &memTx{d: d, tables: make(map[string][]ir.Row, len(d.tables)), next: make(map[string]int64)}
	for k, rows := range d.tables {
		cp := make([]ir.Row, len(rows))
		for i, r := range rows {
			cp[i] = r.Clone()
		}
		tx.tables[k] = cp
	}
	for k, v := range d.next {
		tx.next[k] = v
	}
	return tx, nil
}

type memTx struct {
	d      *MemDriver
	token  string
	tables map[string][]ir.Row
	next   map[string]int64
	ops    []Op
	done   bool
}

var errTxDone = errors.New("testutil: transaction already finished")

func (tx *memTx) SetToken(token string) { tx.token = token }

func (tx *memTx) record(op Op) error {
	if tx.done {
		return errTxDone
	}
	op.Token = tx.token
	if tx.d.FailOn != nil {
		if err := tx.d.FailOn(op); err != nil {
			return err
		}
	}
	tx.ops = append(tx.ops, op)
	return nil
}

func (tx *memTx) Insert(_ context.Context, database, table string, row ir.Row) (ir.Value, error) {
	name := database + "." + table
	row = row.Clone()
	if err := tx.record(Op{Kind: "insert", Database: database, Table: table, Row: row.Clone()}); err != nil {
		return nil, err
	}

	id := row.Get(tx.d.key)
	if ir.IsNull(id) {
		tx.next[name]++
		id = ir.Int(tx.next[name])
		row[tx.d.key] = id
	} else if n, ok := id.(ir.Int); ok && int64(n) > tx.next[name] {
		tx.next[name] = int64(n)
	}
	tx.tables[name] = append(tx.tables[name], row)
	return id, nil
}

func (tx *memTx) Update(_ context.Context, database, table string, row, scope ir.Row) (int64, error) {
	if err := tx.record(Op{Kind: "update", Database: database, Table: table, Row: row.Clone(), Scope: scope.Clone()}); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range tx.tables[database+"."+table] {
		if matches(r, scope) {
			r.Merge(row)
			n++
		}
	}
	return n, nil
}

func (tx *memTx) Delete(_ context.Context, database, table string, scope ir.Row) (int64, error) {
	if err := tx.record(Op{Kind: "delete", Database: database, Table: table, Scope: scope.Clone()}); err != nil {
		return 0, err
	}
	name := database + "." + table
	kept := tx.tables[name][:0]
	var n int64
	for _, r := range tx.tables[name] {
		if matches(r, scope) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	tx.tables[name] = kept
	return n, nil
}

func (tx *memTx) Commit() error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	d := tx.d
	if d.FailCommit != nil {
		d.mu.Lock()
		d.Rollbacks++
		d.mu.Unlock()
		return d.FailCommit
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables = tx.tables
	d.next = tx.next
	d.Committed = append(d.Committed, tx.ops...)
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.d.mu.Lock()
	tx.d.Rollbacks++
	tx.d.mu.Unlock()
	return nil
}

func matches(row, scope ir.Row) bool {
	for k, v := range scope {
		if !ir.Equal(row.Get(k), v) {
			return false
		}
	}
	return true
}
