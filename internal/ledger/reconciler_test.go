package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/memstore"
	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendInitialisesEmptyTable(t *testing.T) {
	ctx := context.Background()
	expenses, goals := newTables()
	r := newReconciler(t, expenses, goals)

	e, err := r.AppendExpense(ctx, expenseAt("anna", 45, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, e.Position)

	_, err = r.AppendGoal(ctx, goalWithID("G00000001", "anna"))
	require.NoError(t, err)

	rows, _ := expenses.ReadAll(ctx)
	require.Len(t, rows, 2)
	assert.Equal(t, ExpenseHeader, rows[0])

	rows, _ = goals.ReadAll(ctx)
	require.Len(t, rows, 2)
	assert.Equal(t, GoalHeader, rows[0])
}

func TestAppendRejectsInvalid(t *testing.T) {
	expenses, goals := newTables()
	r := newReconciler(t, expenses, goals)

	e := expenseAt("anna", 0, 0)
	_, err := r.AppendExpense(context.Background(), e)

	var rej *domain.Rejected
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, domain.RejectNonPositiveAmount, rej.Reason)

	rows, _ := expenses.ReadAll(context.Background())
	assert.Empty(t, rows)
}

func TestConcurrentAppendsAllLand(t *testing.T) {
	ctx := context.Background()
	expenses, goals := newTables()
	r := newReconciler(t, expenses, goals)

	_, err := r.AppendExpense(ctx, expenseAt("anna", 1, 0))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.AppendExpense(ctx, expenseAt("ben", int64(i+1), i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := r.Expenses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 21)
}

func TestSchemaMismatchHaltsWrites(t *testing.T) {
	ctx := context.Background()
	expenses := memstore.New("Expenses", []string{"date", "amount", "who"})
	goals := memstore.New("Goals")
	health := &fakeHealth{}
	r := New(expenses, goals, Options{Backoff: noWait(), Location: berlin, Health: health})

	_, err := r.AppendExpense(ctx, expenseAt("anna", 5, 0))
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)

	serving, ok := health.serving(HealthService)
	require.True(t, ok)
	assert.False(t, serving)
	assert.Error(t, r.Halted())

	// The goals table is fine, but writes stay halted everywhere.
	_, err = r.AppendGoal(ctx, goalWithID("G00000001", "anna"))
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)

	rows, _ := goals.ReadAll(ctx)
	assert.Empty(t, rows)
}

func TestUnreadableRowsAreSkipped(t *testing.T) {
	expenses := memstore.New("Expenses",
		ExpenseHeader,
		[]string{"not a date", "x", "Other", "", "", "anna"},
		[]string{"2025-06-15 10:00", "3.50", "Other", "", "gum", "anna"},
		[]string{"", "", "", "", "", ""},
	)
	r := newReconciler(t, expenses, memstore.New("Goals"))

	all, err := r.Expenses(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].Position)
	assert.Equal(t, "gum", all[0].Note)
}

func TestUndoLastExpenseByActor(t *testing.T) {
	ctx := context.Background()
	expenses, goals := newTables()
	r := newReconciler(t, expenses, goals)

	for i, actor := range []string{"anna", "ben", "anna"} {
		_, err := r.AppendExpense(ctx, expenseAt(actor, int64(i+1), i))
		require.NoError(t, err)
	}

	undone, err := r.UndoLastExpense(ctx, "anna")
	require.NoError(t, err)
	assert.True(t, undone.Amount.Equal(decimal.NewFromInt(3)))

	undone, err = r.UndoLastExpense(ctx, "anna")
	require.NoError(t, err)
	assert.True(t, undone.Amount.Equal(decimal.NewFromInt(1)))

	_, err = r.UndoLastExpense(ctx, "anna")
	assert.ErrorIs(t, err, domain.ErrNothingToUndo)

	left, err := r.Expenses(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "ben", left[0].Actor)
}

func TestUndoRelocatesShiftedRow(t *testing.T) {
	ctx := context.Background()
	mem, goals := newTables()
	racy := &racyTable{Table: mem}
	r := newReconciler(t, racy, goals)

	_, err := r.AppendExpense(ctx, expenseAt("ben", 7, 0))
	require.NoError(t, err)
	_, err = r.AppendExpense(ctx, expenseAt("anna", 45, 1))
	require.NoError(t, err)

	// Someone else removes the row above the target before our write.
	fired := false
	racy.beforeWrite = func() {
		if fired {
			return
		}
		fired = true
		rows, _ := mem.ReadAll(ctx)
		require.NoError(t, mem.Delete(ctx, 1, rows[1]))
	}

	undone, err := r.UndoLastExpense(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, "anna", undone.Actor)
	assert.Equal(t, 2, racy.writes)

	rows, _ := mem.ReadAll(ctx)
	assert.Len(t, rows, 1)
}

func TestUndoTargetVanished(t *testing.T) {
	ctx := context.Background()
	mem, goals := newTables()
	racy := &racyTable{Table: mem}
	r := newReconciler(t, racy, goals)

	_, err := r.AppendExpense(ctx, expenseAt("ben", 7, 0))
	require.NoError(t, err)
	_, err = r.AppendExpense(ctx, expenseAt("anna", 45, 1))
	require.NoError(t, err)

	racy.beforeWrite = func() {
		rows, _ := mem.ReadAll(ctx)
		if len(rows) == 3 {
			require.NoError(t, mem.Delete(ctx, 2, rows[2]))
		}
	}

	_, err = r.UndoLastExpense(ctx, "anna")
	require.ErrorIs(t, err, domain.ErrConcurrentModification)

	// The other actor's row was not taken instead.
	left, err := r.Expenses(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "ben", left[0].Actor)
}

func TestUpdateExpense(t *testing.T) {
	ctx := context.Background()
	expenses, goals := newTables()
	r := newReconciler(t, expenses, goals)

	e, err := r.AppendExpense(ctx, expenseAt("anna", 45, 0))
	require.NoError(t, err)

	got, err := r.UpdateExpense(ctx, e.Position, func(e domain.Expense) (domain.Expense, error) {
		e.Amount = decimal.NewFromInt(50)
		return e, nil
	})
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(50)))

	last, err := r.LastExpense(ctx, "anna")
	require.NoError(t, err)
	assert.True(t, last.Amount.Equal(decimal.NewFromInt(50)))

	_, err = r.UpdateExpense(ctx, 42, func(e domain.Expense) (domain.Expense, error) { return e, nil })
	assert.ErrorIs(t, err, domain.ErrExpenseNotFound)

	_, err = r.UpdateExpense(ctx, e.Position, func(e domain.Expense) (domain.Expense, error) {
		e.Amount = decimal.Zero
		return e, nil
	})
	var rej *domain.Rejected
	assert.ErrorAs(t, err, &rej)
}

func TestConcurrentGoalEditsBothLand(t *testing.T) {
	ctx := context.Background()
	expenses, mem := newTables()
	racy := &racyTable{Table: mem}
	r := newReconciler(t, expenses, racy)

	_, err := r.AppendGoal(ctx, goalWithID("G00000001", "anna"))
	require.NoError(t, err)

	fired := false
	racy.beforeWrite = func() {
		if fired {
			return
		}
		fired = true
		rows, _ := mem.ReadAll(ctx)
		next := append([]string(nil), rows[1]...)
		next[9] = "from elsewhere"
		require.NoError(t, mem.Update(ctx, 1, rows[1], next))
	}

	got, err := r.UpdateGoal(ctx, "g00000001", func(g domain.Goal) (domain.Goal, error) {
		g.Name = "Paint the shed"
		return g, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Paint the shed", got.Name)
	assert.Equal(t, "from elsewhere", got.Notes)

	all, err := r.Goals(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Paint the shed", all[0].Name)
	assert.Equal(t, "from elsewhere", all[0].Notes)
}

func TestGoalEditGivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	expenses, mem := newTables()
	racy := &racyTable{Table: mem}
	r := newReconciler(t, expenses, racy)

	_, err := r.AppendGoal(ctx, goalWithID("G00000001", "anna"))
	require.NoError(t, err)

	racy.beforeWrite = func() {
		rows, _ := mem.ReadAll(ctx)
		next := append([]string(nil), rows[1]...)
		next[9] += "x"
		require.NoError(t, mem.Update(ctx, 1, rows[1], next))
	}

	_, err = r.UpdateGoal(ctx, "G00000001", func(g domain.Goal) (domain.Goal, error) {
		g.Name = "never written"
		return g, nil
	})
	require.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, 5, racy.writes)

	all, _ := r.Goals(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "Paint the fence", all[0].Name)
}

func TestGoalEditRacingDeleteDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	expenses, mem := newTables()
	racy := &racyTable{Table: mem}
	r := newReconciler(t, expenses, racy)

	_, err := r.AppendGoal(ctx, goalWithID("G00000001", "anna"))
	require.NoError(t, err)

	racy.beforeWrite = func() {
		rows, _ := mem.ReadAll(ctx)
		if len(rows) == 2 {
			require.NoError(t, mem.Delete(ctx, 1, rows[1]))
		}
	}

	_, err = r.UpdateGoal(ctx, "G00000001", func(g domain.Goal) (domain.Goal, error) {
		g.Notes = "late edit"
		return g, nil
	})
	require.ErrorIs(t, err, domain.ErrConcurrentModification)

	all, err := r.Goals(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGoalIDIsImmutable(t *testing.T) {
	ctx := context.Background()
	expenses, goals := newTables()
	r := newReconciler(t, expenses, goals)

	_, err := r.AppendGoal(ctx, goalWithID("G00000001", "anna"))
	require.NoError(t, err)

	_, err = r.UpdateGoal(ctx, "G00000001", func(g domain.Goal) (domain.Goal, error) {
		g.ID = "G00000002"
		return g, nil
	})
	var rej *domain.Rejected
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, domain.RejectInvalidValue, rej.Reason)

	_, err = r.UpdateGoal(ctx, "G0000000X", func(g domain.Goal) (domain.Goal, error) { return g, nil })
	assert.ErrorIs(t, err, domain.ErrGoalNotFound)
}

func TestDeleteGoalHonoursCheck(t *testing.T) {
	ctx := context.Background()
	expenses, goals := newTables()
	r := newReconciler(t, expenses, goals)

	_, err := r.AppendGoal(ctx, goalWithID("G00000001", "anna"))
	require.NoError(t, err)

	refuse := errors.New("refused")
	_, err = r.DeleteGoal(ctx, "G00000001", func(domain.Goal) error { return refuse })
	require.ErrorIs(t, err, refuse)

	deleted, err := r.DeleteGoal(ctx, "G00000001", nil)
	require.NoError(t, err)
	assert.Equal(t, "G00000001", deleted.ID)

	_, err = r.DeleteGoal(ctx, "G00000001", nil)
	assert.ErrorIs(t, err, domain.ErrGoalNotFound)
}

func TestConcurrentUndoGoalDeletesOnce(t *testing.T) {
	ctx := context.Background()
	expenses, mem := newTables()
	r0 := newReconciler(t, expenses, mem)
	_, err := r0.AppendGoal(ctx, goalWithID("G00000001", "anna"))
	require.NoError(t, err)
	_, err = r0.AppendGoal(ctx, goalWithID("G00000002", "ben"))
	require.NoError(t, err)

	r := newReconciler(t, expenses, newBarrierTable(mem, 2))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.DeleteLastGoal(ctx, "anna", nil)
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConcurrentModification):
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)

	left, err := r.Goals(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "G00000002", left[0].ID)
}

func TestLateHeaderInitialisationIsUndone(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New("Expenses", ExpenseHeader)
	r := newReconciler(t, &emptyOnceTable{Table: mem}, memstore.New("Goals"))

	e, err := r.AppendExpense(ctx, expenseAt("anna", 45, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, e.Position)

	rows, _ := mem.ReadAll(ctx)
	require.Len(t, rows, 2)
	assert.Equal(t, ExpenseHeader, rows[0])
	assert.NotEqual(t, ExpenseHeader, rows[1])
}

func TestConcurrentFirstAppendsWriteOneHeader(t *testing.T) {
	ctx := context.Background()
	expenses, goals := newTables()
	r := newReconciler(t, expenses, goals)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.AppendExpense(ctx, expenseAt("anna", int64(i+1), i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rows, _ := expenses.ReadAll(ctx)
	require.Len(t, rows, 9)
	headers := 0
	for _, row := range rows {
		if sameHeader(row, ExpenseHeader) {
			headers++
		}
	}
	assert.Equal(t, 1, headers)
	assert.Equal(t, ExpenseHeader, rows[0])
}
