// Package memstore is an in-process ports.Table. Every method is atomic, so
// guarded writes are exact compare-and-swap operations.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cp25sy5-modjot/ledger-service/internal/ports"
)

type Table struct {
	name string

	mu   sync.Mutex
	rows [][]string
}

// New returns a table holding the given rows, header first.
func New(name string, rows ...[]string) *Table {
	t := &Table{name: name}
	for _, r := range rows {
		t.rows = append(t.rows, clone(r))
	}
	return t
}

func (t *Table) Name() string { return t.name }

func (t *Table) Header(_ context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.rows) == 0 {
		return nil, nil
	}
	return clone(t.rows[0]), nil
}

func (t *Table) ReadAll(_ context.Context) ([][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = clone(r)
	}
	return out, nil
}

func (t *Table) Append(_ context.Context, row []string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, clone(row))
	return len(t.rows) - 1, nil
}

func (t *Table) Update(_ context.Context, pos int, expect, row []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(pos, expect); err != nil {
		return err
	}
	t.rows[pos] = clone(row)
	return nil
}

func (t *Table) Delete(_ context.Context, pos int, expect []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(pos, expect); err != nil {
		return err
	}
	t.rows = append(t.rows[:pos], t.rows[pos+1:]...)
	return nil
}

// Len returns the number of rows including the header.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

func (t *Table) check(pos int, expect []string) error {
	if pos <= 0 {
		return fmt.Errorf("%s: position %d is not a data row", t.name, pos)
	}
	if pos >= len(t.rows) || !ports.SameRow(t.rows[pos], expect) {
		return ports.ErrRowChanged
	}
	return nil
}

func clone(row []string) []string {
	return append([]string(nil), row...)
}
