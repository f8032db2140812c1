package ports

import (
	"context"
	"errors"
)

// ErrRowChanged is returned by guarded writes when the row at the given
// position no longer holds the expected cells.
var ErrRowChanged = errors.New("row no longer matches the expected contents")

// Table is one sheet of the shared tabular store. Position 0 is the header
// row, data rows start at 1. Every method is a single remote round trip and
// none of them hold a lock across calls.
type Table interface {
	Name() string

	// Header returns the first row, or nil when the table is empty.
	Header(ctx context.Context) ([]string, error)

	// ReadAll returns every row including the header.
	ReadAll(ctx context.Context) ([][]string, error)

	// Append adds row after the last row and returns its position.
	Append(ctx context.Context, row []string) (int, error)

	// Update replaces the row at pos if it still equals expect.
	Update(ctx context.Context, pos int, expect, row []string) error

	// Delete removes the row at pos if it still equals expect. Later rows
	// shift up by one.
	Delete(ctx context.Context, pos int, expect []string) error
}

// SameRow compares two rows ignoring trailing empty cells, which some
// backends drop on read.
func SameRow(a, b []string) bool {
	a, b = trim(a), trim(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func trim(row []string) []string {
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}
