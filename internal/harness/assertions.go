package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/uow/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func (h *harness) evaluate(ctx context.Context, a Assertion, result *Result) error {
	switch a.Type {
	case AssertWriteOrder:
		return assertWriteOrder(result.Writes(), a)
	case AssertWriteCount:
		return assertWriteCount(result.Writes(), a)
	case AssertFinalState, AssertRowCount:
		rows, err := h.rows(ctx, a.Table, result)
		if err != nil {
			return err
		}
		if a.Type == AssertRowCount {
			return assertRowCount(rows, a)
		}
		return assertFinalState(rows, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// rows reads table once per run and caches it in result.State.
func (h *harness) rows(ctx context.Context, table string, result *Result) ([]ir.Row, error) {
	if rows, ok := result.State[table]; ok {
		return rows, nil
	}
	t, ok := h.target.(Tables)
	if !ok {
		return nil, fmt.Errorf("target cannot list table %s", table)
	}
	rows, err := t.Rows(ctx, table)
	if err != nil {
		return nil, err
	}
	result.State[table] = rows
	return rows, nil
}

// assertWriteOrder checks the exact sequence of journaled writes.
func assertWriteOrder(writes []WriteTrace, a Assertion) error {
	got := make([]string, len(writes))
	for i, w := range writes {
		got[i] = w.Label()
	}
	if strings.Join(got, ", ") != strings.Join(a.Writes, ", ") {
		return &AssertionError{
			Type:     AssertWriteOrder,
			Expected: "[" + strings.Join(a.Writes, ", ") + "]",
			Actual:   "[" + strings.Join(got, ", ") + "]",
		}
	}
	return nil
}

// assertWriteCount checks how many writes of op hit table.
func assertWriteCount(writes []WriteTrace, a Assertion) error {
	count := 0
	for _, w := range writes {
		if w.Op == a.Op && w.Table == a.Table {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertWriteCount,
			Expected: fmt.Sprintf("%d %s on %s", a.Count, a.Op, a.Table),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

func assertRowCount(rows []ir.Row, a Assertion) error {
	if len(rows) != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s", a.Count, a.Table),
			Actual:   fmt.Sprintf("%d", len(rows)),
		}
	}
	return nil
}

// assertFinalState finds the first row matching where and checks the
// expected values (subset match).
func assertFinalState(rows []ir.Row, a Assertion) error {
	for _, row := range rows {
		ok, err := matchFields(row, a.Where)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		ok, err = matchFields(row, a.Expect)
		if err != nil {
			return err
		}
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s row %v to have %v", a.Table, a.Where, a.Expect),
				Actual:   formatRow(row),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s row matching %v", a.Table, a.Where),
		Actual:   fmt.Sprintf("no match in %d rows", len(rows)),
	}
}

// matchFields reports whether row carries every expected value. Values
// compare by type, or by text form when the column is stored as text.
func matchFields(row ir.Row, expected map[string]any) (bool, error) {
	for col, raw := range expected {
		want, err := ir.FromGo(raw)
		if err != nil {
			return false, fmt.Errorf("column %s: %w", col, err)
		}
		if !matchValue(row.Get(col), want) {
			return false, nil
		}
	}
	return true, nil
}

func matchValue(got, want ir.Value) bool {
	if ir.Equal(got, want) {
		return true
	}
	if ir.IsNull(got) || ir.IsNull(want) {
		return false
	}
	return got.String() == want.String()
}

func formatRow(row ir.Row) string {
	data, err := row.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", map[string]ir.Value(row))
	}
	return string(data)
}
