package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Row maps column names to values.
// Use SortedKeys() for deterministic iteration.
type Row map[string]Value

// RowFromMap converts a map of plain Go scalars into a Row.
func RowFromMap(m map[string]any) (Row, error) {
	row := make(Row, len(m))
	for k, v := range m {
		val, err := FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", k, err)
		}
		row[k] = val
	}
	return row, nil
}

// SortedKeys returns keys in canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order for
// supplementary characters.
func (r Row) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Clone returns an independent copy. A nil row clones to an empty row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the value for a column, or Null when absent.
func (r Row) Get(column string) Value {
	if v, ok := r[column]; ok && v != nil {
		return v
	}
	return Null{}
}

// Has reports whether the column is present with a non-null value.
func (r Row) Has(column string) bool {
	return !IsNull(r[column])
}

// Merge writes every column of src into r and reports whether any stored
// value actually changed.
func (r Row) Merge(src Row) bool {
	changed := false
	for k, v := range src {
		old, ok := r[k]
		if !ok || !Equal(old, v) {
			changed = true
		}
		r[k] = v
	}
	return changed
}

// Only returns the subset of r restricted to columns.
// Columns missing from r are skipped.
func (r Row) Only(columns []string) Row {
	out := make(Row, len(columns))
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

// Without returns a copy of r with the given column removed.
func (r Row) Without(column string) Row {
	out := r.Clone()
	delete(out, column)
	return out
}

// Equal reports whether both rows hold the same columns and values.
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		ov, ok := other[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// Diff returns the columns of fresh that are absent from known or hold a
// different value there. Columns present only in known are ignored.
func Diff(fresh, known Row) Row {
	out := make(Row)
	for k, v := range fresh {
		kv, ok := known[k]
		if !ok || !Equal(v, kv) {
			out[k] = v
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler with sorted keys.
// NOTE: This is NOT canonical marshaling - may have HTML escaping.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range r.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(r[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Row.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = make(Row, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("row column %q: %w", k, err)
		}
		(*r)[k] = val
	}
	return nil
}

// compareKeys compares strings using UTF-16 code unit ordering.
func compareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
