package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/memstore"
	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/cp25sy5-modjot/ledger-service/internal/ports"
	"github.com/shopspring/decimal"
)

var berlin, _ = time.LoadLocation("Europe/Berlin")

// noWait retries immediately.
func noWait() Backoff {
	return Backoff{
		Attempts: 5,
		Base:     time.Millisecond,
		Max:      time.Millisecond,
		Jitter:   func(time.Duration) time.Duration { return 0 },
		Sleep:    func(context.Context, time.Duration) error { return nil },
	}
}

// racyTable runs beforeWrite ahead of every guarded write, standing in for
// another writer that got there first.
type racyTable struct {
	ports.Table
	beforeWrite func()
	writes      int
}

func (r *racyTable) Update(ctx context.Context, pos int, expect, row []string) error {
	r.writes++
	if r.beforeWrite != nil {
		r.beforeWrite()
	}
	return r.Table.Update(ctx, pos, expect, row)
}

func (r *racyTable) Delete(ctx context.Context, pos int, expect []string) error {
	r.writes++
	if r.beforeWrite != nil {
		r.beforeWrite()
	}
	return r.Table.Delete(ctx, pos, expect)
}

// barrierTable holds the first n ReadAll calls until all of them arrived.
type barrierTable struct {
	ports.Table

	mu      sync.Mutex
	waiting int
	n       int
	release chan struct{}
}

func newBarrierTable(t ports.Table, n int) *barrierTable {
	return &barrierTable{Table: t, n: n, release: make(chan struct{})}
}

func (b *barrierTable) ReadAll(ctx context.Context) ([][]string, error) {
	rows, err := b.Table.ReadAll(ctx)

	b.mu.Lock()
	gated := b.waiting < b.n
	if gated {
		b.waiting++
		if b.waiting == b.n {
			close(b.release)
		}
	}
	b.mu.Unlock()

	if gated {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return rows, err
}

type fakeHealth struct {
	mu     sync.Mutex
	status map[string]bool
}

func (f *fakeHealth) SetServing(service string, serving bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		f.status = map[string]bool{}
	}
	f.status[service] = serving
}

func (f *fakeHealth) serving(service string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.status[service]
	return s, ok
}

func newTables() (*memstore.Table, *memstore.Table) {
	return memstore.New("Expenses"), memstore.New("Goals")
}

func newReconciler(t *testing.T, expenses, goals ports.Table) *Reconciler {
	t.Helper()
	return New(expenses, goals, Options{Backoff: noWait(), Location: berlin})
}

func expenseAt(actor string, amount int64, minute int) domain.Expense {
	return domain.Expense{
		Date:     time.Date(2025, 6, 15, 10, minute, 0, 0, berlin),
		Amount:   decimal.NewFromInt(amount),
		Category: domain.CategoryGroceries,
		Merchant: "Rewe",
		Actor:    actor,
	}
}

func goalWithID(id, actor string) domain.Goal {
	return domain.Goal{
		ID:          id,
		CreatedDate: time.Date(2025, 6, 15, 0, 0, 0, 0, berlin),
		Type:        domain.GoalTask,
		Name:        "Paint the fence",
		Status:      domain.StatusPending,
		CreatedBy:   actor,
	}
}

// emptyOnceTable reports an empty header on the first call, as seen by a
// writer that read it just before another writer initialised the table.
type emptyOnceTable struct {
	ports.Table
	calls int
}

func (e *emptyOnceTable) Header(ctx context.Context) ([]string, error) {
	e.calls++
	if e.calls == 1 {
		return nil, nil
	}
	return e.Table.Header(ctx)
}
