// Package ledger commits expense and goal records to the shared tabular
// store. The store has no row locks: appends go straight to the end of a
// table, targeted mutations locate their row, snapshot it, and write with a
// guard that fails when the row changed in between. Conflicts are retried a
// bounded number of times and then surfaced, never overwritten.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/cp25sy5-modjot/ledger-service/internal/metrics"
	"github.com/cp25sy5-modjot/ledger-service/internal/ports"
	"github.com/cp25sy5-modjot/ledger-service/internal/validator"
	"github.com/rs/zerolog/log"
)

// HealthService is the name the reconciler reports its status under.
const HealthService = "ledger"

type Options struct {
	Backoff  Backoff
	Location *time.Location
	Health   ports.HealthPort
	Metrics  *metrics.Metrics
}

type Reconciler struct {
	expenses *sheet[domain.Expense]
	goals    *sheet[domain.Goal]

	backoff Backoff
	health  ports.HealthPort
	metrics *metrics.Metrics

	mu     sync.RWMutex
	halted error
}

func New(expenses, goals ports.Table, opts Options) *Reconciler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	c := codec{loc: loc}

	return &Reconciler{
		expenses: &sheet[domain.Expense]{
			table:    expenses,
			header:   ExpenseHeader,
			encode:   c.encodeExpense,
			decode:   c.decodeExpense,
			validate: validator.Expense,
			key:      func(row []string) string { return strings.Join(pad(row, len(ExpenseHeader)), "\x1f") },
		},
		goals: &sheet[domain.Goal]{
			table:  goals,
			header: GoalHeader,
			encode: c.encodeGoal,
			decode: c.decodeGoal,
			validate: func(g domain.Goal) error {
				return validator.Goal(g, nil)
			},
			key: func(row []string) string { return strings.TrimSpace(pad(row, len(GoalHeader))[goalIDColumn]) },
		},
		backoff: opts.Backoff.withDefaults(),
		health:  opts.Health,
		metrics: opts.Metrics,
	}
}

// Halted returns the schema error that stopped all writes, or nil.
func (r *Reconciler) Halted() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.halted
}

func (r *Reconciler) halt(table string, err error) error {
	r.mu.Lock()
	if r.halted == nil {
		r.halted = err
		log.Error().Err(err).Str("table", table).Msg("store schema mismatch, halting writes")
		if r.health != nil {
			r.health.SetServing(HealthService, false)
		}
	}
	r.mu.Unlock()
	r.metrics.Failure(table, "schema_mismatch")
	return err
}

// AppendExpense validates and appends an expense.
func (r *Reconciler) AppendExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	pos, err := appendRecord(ctx, r, r.expenses, e)
	if err != nil {
		return domain.Expense{}, err
	}
	e.Position = pos
	return e, nil
}

// AppendGoal validates and appends a goal. The caller assigns the id and is
// responsible for it being unused.
func (r *Reconciler) AppendGoal(ctx context.Context, g domain.Goal) (domain.Goal, error) {
	if _, err := appendRecord(ctx, r, r.goals, g); err != nil {
		return domain.Goal{}, err
	}
	return g, nil
}

// Expenses reads every expense in store order.
func (r *Reconciler) Expenses(ctx context.Context) ([]domain.Expense, error) {
	return records(ctx, r, r.expenses)
}

// Goals reads every goal in store order.
func (r *Reconciler) Goals(ctx context.Context) ([]domain.Goal, error) {
	return records(ctx, r, r.goals)
}

// UndoLastExpense deletes the most recent expense committed by actor.
func (r *Reconciler) UndoLastExpense(ctx context.Context, actor string) (domain.Expense, error) {
	deleted, err := mutate(ctx, r, r.expenses, "undo", lastBy(func(e domain.Expense) bool { return e.Actor == actor }), domain.ErrNothingToUndo,
		func(e domain.Expense) (domain.Expense, bool, error) { return e, true, nil })
	if err != nil {
		return domain.Expense{}, err
	}
	return deleted, nil
}

// UpdateExpense applies change to the expense at pos. change runs again on
// the fresh row after every conflict.
func (r *Reconciler) UpdateExpense(ctx context.Context, pos int, change func(domain.Expense) (domain.Expense, error)) (domain.Expense, error) {
	return mutate(ctx, r, r.expenses, "edit", atPosition[domain.Expense](pos), domain.ErrExpenseNotFound,
		func(e domain.Expense) (domain.Expense, bool, error) {
			next, err := change(e)
			return next, false, err
		})
}

// LastExpense returns the most recent expense committed by actor.
func (r *Reconciler) LastExpense(ctx context.Context, actor string) (domain.Expense, error) {
	entries, err := load(ctx, r, r.expenses)
	if err != nil {
		return domain.Expense{}, err
	}
	e, ok := lastBy(func(e domain.Expense) bool { return e.Actor == actor })(entries)
	if !ok {
		return domain.Expense{}, domain.ErrNothingToUndo
	}
	return e.rec, nil
}

// UpdateGoal applies change to the goal with the given id. change runs again
// on the fresh row after every conflict, so concurrent edits of different
// fields both land.
func (r *Reconciler) UpdateGoal(ctx context.Context, id string, change func(domain.Goal) (domain.Goal, error)) (domain.Goal, error) {
	return mutate(ctx, r, r.goals, "edit", goalByID(id), domain.ErrGoalNotFound,
		func(g domain.Goal) (domain.Goal, bool, error) {
			next, err := change(g)
			if err != nil {
				return g, false, err
			}
			if next.ID != g.ID {
				return g, false, domain.Reject(domain.RejectInvalidValue, "goal id is immutable")
			}
			return next, false, nil
		})
}

// DeleteGoal deletes the goal with the given id once check accepts it.
func (r *Reconciler) DeleteGoal(ctx context.Context, id string, check func(domain.Goal) error) (domain.Goal, error) {
	return mutate(ctx, r, r.goals, "delete", goalByID(id), domain.ErrGoalNotFound, deleteIf(check))
}

// DeleteLastGoal deletes the most recent goal created by actor once check
// accepts it.
func (r *Reconciler) DeleteLastGoal(ctx context.Context, actor string, check func(domain.Goal) error) (domain.Goal, error) {
	return mutate(ctx, r, r.goals, "undo", lastBy(func(g domain.Goal) bool { return g.CreatedBy == actor }), domain.ErrNothingToUndo, deleteIf(check))
}

func deleteIf(check func(domain.Goal) error) func(domain.Goal) (domain.Goal, bool, error) {
	return func(g domain.Goal) (domain.Goal, bool, error) {
		if check != nil {
			if err := check(g); err != nil {
				return g, false, err
			}
		}
		return g, true, nil
	}
}

// sheet describes one table: its column contract, how records map to rows,
// and the key that identifies a logical record across position shifts.
type sheet[T any] struct {
	table    ports.Table
	header   []string
	encode   func(T) []string
	decode   func(pos int, row []string) (T, error)
	validate func(T) error
	key      func(row []string) string
}

type entry[T any] struct {
	pos int
	row []string
	rec T
}

// locator picks the target of a targeted mutation. It can be replaced by an
// index lookup without touching the mutation protocol.
type locator[T any] func(entries []entry[T]) (entry[T], bool)

func lastBy[T any](match func(T) bool) locator[T] {
	return func(entries []entry[T]) (entry[T], bool) {
		for i := len(entries) - 1; i >= 0; i-- {
			if match(entries[i].rec) {
				return entries[i], true
			}
		}
		return entry[T]{}, false
	}
}

func atPosition[T any](pos int) locator[T] {
	return func(entries []entry[T]) (entry[T], bool) {
		for _, e := range entries {
			if e.pos == pos {
				return e, true
			}
		}
		return entry[T]{}, false
	}
}

func goalByID(id string) locator[domain.Goal] {
	id = strings.TrimSpace(id)
	return func(entries []entry[domain.Goal]) (entry[domain.Goal], bool) {
		for _, e := range entries {
			if strings.EqualFold(e.rec.ID, id) {
				return e, true
			}
		}
		return entry[domain.Goal]{}, false
	}
}

// relocate finds the row holding the same logical record as key, preferring
// the occurrence closest to where it was last seen.
func relocate[T any](s *sheet[T], entries []entry[T], key string, near int) (entry[T], bool) {
	var (
		found entry[T]
		ok    bool
		best  int
	)
	for _, e := range entries {
		if s.key(e.row) != key {
			continue
		}
		dist := e.pos - near
		if dist < 0 {
			dist = -dist
		}
		if !ok || dist <= best {
			found, ok, best = e, true, dist
		}
	}
	return found, ok
}

func (r *Reconciler) writable() error {
	if err := r.Halted(); err != nil {
		return fmt.Errorf("%w: writes halted", domain.ErrSchemaMismatch)
	}
	return nil
}

func checkHeader[T any](r *Reconciler, s *sheet[T], header []string) error {
	if !sameHeader(header, s.header) {
		err := fmt.Errorf("%w: table %s has [%s], want [%s]", domain.ErrSchemaMismatch,
			s.table.Name(), strings.Join(header, ", "), strings.Join(s.header, ", "))
		return r.halt(s.table.Name(), err)
	}
	return nil
}

func appendRecord[T any](ctx context.Context, r *Reconciler, s *sheet[T], rec T) (int, error) {
	name := s.table.Name()
	if err := r.writable(); err != nil {
		return 0, err
	}
	if err := s.validate(rec); err != nil {
		r.metrics.Failure(name, "rejected")
		return 0, err
	}

	header, err := s.table.Header(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading header of %s: %w", name, err)
	}
	if len(trimTrailing(header)) == 0 {
		log.Info().Str("table", name).Msg("initialising empty table with header")
		at, err := s.table.Append(ctx, s.header)
		if err != nil {
			return 0, fmt.Errorf("writing header of %s: %w", name, err)
		}
		if at > 0 {
			// Another writer initialised the table first.
			if err := dropHeaderCopy(ctx, s, at); err != nil {
				return 0, err
			}
		}
	} else if err := checkHeader(r, s, header); err != nil {
		return 0, err
	}

	pos, err := s.table.Append(ctx, s.encode(rec))
	if err != nil {
		return 0, fmt.Errorf("appending to %s: %w", name, err)
	}
	r.metrics.Commit(name, "append")
	log.Info().Str("table", name).Int("position", pos).Msg("row appended")

	return pos, nil
}

// maxHeaderScans bounds the search for a shifted header copy.
const maxHeaderScans = 16

// dropHeaderCopy removes a header row written below the real one. The copy
// may have shifted by the time it is deleted, so on a conflict the table is
// scanned for a copy until one is removed or none is left.
func dropHeaderCopy[T any](ctx context.Context, s *sheet[T], at int) error {
	name := s.table.Name()
	log.Warn().Str("table", name).Int("position", at).Msg("removing duplicate header row")

	err := s.table.Delete(ctx, at, s.header)
	for scan := 0; errors.Is(err, ports.ErrRowChanged) && scan < maxHeaderScans; scan++ {
		rows, rerr := s.table.ReadAll(ctx)
		if rerr != nil {
			return fmt.Errorf("reading %s: %w", name, rerr)
		}
		pos := len(rows) - 1
		for pos > 0 && !sameHeader(rows[pos], s.header) {
			pos--
		}
		if pos <= 0 {
			return nil
		}
		err = s.table.Delete(ctx, pos, rows[pos])
	}
	if errors.Is(err, ports.ErrRowChanged) {
		log.Warn().Str("table", name).Msg("duplicate header row left in place")
		return nil
	}
	return err
}

func load[T any](ctx context.Context, r *Reconciler, s *sheet[T]) ([]entry[T], error) {
	rows, err := s.table.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.table.Name(), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := checkHeader(r, s, rows[0]); err != nil {
		return nil, err
	}

	entries := make([]entry[T], 0, len(rows)-1)
	for pos := 1; pos < len(rows); pos++ {
		if len(trimTrailing(rows[pos])) == 0 {
			continue
		}
		rec, err := s.decode(pos, rows[pos])
		if err != nil {
			log.Warn().Err(err).Str("table", s.table.Name()).Msg("skipping unreadable row")
			continue
		}
		entries = append(entries, entry[T]{pos: pos, row: rows[pos], rec: rec})
	}
	return entries, nil
}

func records[T any](ctx context.Context, r *Reconciler, s *sheet[T]) ([]T, error) {
	entries, err := load(ctx, r, s)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.rec)
	}
	return out, nil
}

// mutate runs the locate, snapshot, guarded write cycle. change receives the
// snapshot and returns the replacement record, or del to delete the row. On a
// conflict the same logical row is located again and change is re-applied to
// its fresh contents. If the row is gone, or attempts run out, the result is
// ErrConcurrentModification and nothing was written.
func mutate[T any](ctx context.Context, r *Reconciler, s *sheet[T], op string, locate locator[T], notFound error, change func(T) (T, bool, error)) (T, error) {
	var zero T
	name := s.table.Name()

	if err := r.writable(); err != nil {
		return zero, err
	}

	entries, err := load(ctx, r, s)
	if err != nil {
		return zero, err
	}
	target, ok := locate(entries)
	if !ok {
		r.metrics.Failure(name, "not_found")
		return zero, notFound
	}
	key := s.key(target.row)

	for attempt := 1; ; attempt++ {
		next, del, err := change(target.rec)
		if err != nil {
			r.metrics.Failure(name, "rejected")
			return zero, err
		}

		if del {
			err = s.table.Delete(ctx, target.pos, target.row)
		} else {
			if err := s.validate(next); err != nil {
				r.metrics.Failure(name, "rejected")
				return zero, err
			}
			err = s.table.Update(ctx, target.pos, target.row, s.encode(next))
		}

		switch {
		case err == nil:
			r.metrics.Commit(name, op)
			log.Info().Str("table", name).Str("op", op).Int("position", target.pos).Int("attempt", attempt).Msg("row committed")
			if del {
				return target.rec, nil
			}
			return next, nil
		case !errors.Is(err, ports.ErrRowChanged):
			return zero, fmt.Errorf("writing %s row %d: %w", name, target.pos, err)
		}

		r.metrics.Conflict(name)
		log.Warn().Str("table", name).Str("op", op).Int("position", target.pos).Int("attempt", attempt).Msg("row changed before write")

		if attempt >= r.backoff.Attempts {
			r.metrics.Failure(name, "conflict")
			return zero, domain.ErrConcurrentModification
		}
		if err := r.backoff.wait(ctx, attempt); err != nil {
			return zero, err
		}

		entries, err = load(ctx, r, s)
		if err != nil {
			return zero, err
		}
		target, ok = relocate(s, entries, key, target.pos)
		if !ok {
			r.metrics.Failure(name, "conflict")
			return zero, domain.ErrConcurrentModification
		}
	}
}
