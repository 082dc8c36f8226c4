package store

import (
	"fmt"

	"github.com/roach88/uow/internal/ir"
)

// marshalRow converts a row to canonical JSON TEXT for storage.
func marshalRow(row ir.Row) (string, error) {
	if row == nil {
		row = ir.Row{}
	}
	data, err := ir.MarshalCanonical(row)
	if err != nil {
		return "", fmt.Errorf("marshal row: %w", err)
	}
	return string(data), nil
}

// unmarshalRow parses a stored row.
func unmarshalRow(s string) (ir.Row, error) {
	var row ir.Row
	if err := row.UnmarshalJSON([]byte(s)); err != nil {
		return nil, fmt.Errorf("unmarshal row: %w", err)
	}
	if row == nil {
		row = ir.Row{}
	}
	return row, nil
}
