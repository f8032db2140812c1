package ledger

import (
	"testing"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenseRow(t *testing.T) {
	c := codec{loc: berlin}
	e := domain.Expense{
		Date:     time.Date(2025, 6, 15, 8, 30, 0, 0, time.UTC),
		Amount:   decimal.RequireFromString("12.5"),
		Category: domain.CategoryFoodTakeout,
		Note:     "pizza",
		Actor:    "anna",
	}

	row := c.encodeExpense(e)
	assert.Equal(t, []string{"2025-06-15 10:30", "12.50", "Food Takeout", "", "pizza", "anna"}, row)

	got, err := c.decodeExpense(4, row)
	require.NoError(t, err)
	assert.True(t, e.Date.Equal(got.Date))
	assert.True(t, e.Amount.Equal(got.Amount))
	assert.Equal(t, e.Category, got.Category)
	assert.Equal(t, 4, got.Position)
}

func TestExpenseRowShort(t *testing.T) {
	got, err := codec{loc: berlin}.decodeExpense(1, []string{"2025-06-15", "3"})
	require.NoError(t, err)
	assert.Equal(t, "", got.Actor)
	assert.Equal(t, 2025, got.Date.Year())

	_, err = codec{loc: berlin}.decodeExpense(1, []string{"yesterday", "3"})
	assert.Error(t, err)
}

func TestGoalRow(t *testing.T) {
	c := codec{loc: berlin}
	target := time.Date(2026, 12, 31, 0, 0, 0, 0, berlin)
	done := time.Date(2025, 7, 1, 18, 5, 0, 0, berlin)
	g := domain.Goal{
		ID:            "G1A2B3C4D",
		CreatedDate:   time.Date(2025, 6, 15, 0, 0, 0, 0, berlin),
		Type:          domain.GoalFinancial,
		Name:          "Trip to Japan",
		TargetAmount:  decimal.NewNullDecimal(decimal.NewFromInt(5000)),
		TargetDate:    &target,
		Status:        domain.StatusDone,
		CreatedBy:     "ben",
		CompletedDate: &done,
		Notes:         "booked flights",
	}

	row := c.encodeGoal(g)
	assert.Equal(t, []string{"2025-06-15", "Financial", "Trip to Japan", "5000.00", "2026-12-31", "Done", "ben", "G1A2B3C4D", "2025-07-01 18:05", "booked flights"}, row)

	got, err := c.decodeGoal(2, row)
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
	assert.True(t, g.TargetAmount.Decimal.Equal(got.TargetAmount.Decimal))
	require.NotNil(t, got.TargetDate)
	assert.True(t, target.Equal(*got.TargetDate))
	require.NotNil(t, got.CompletedDate)
	assert.True(t, done.Equal(*got.CompletedDate))
	assert.Equal(t, g.Status, got.Status)
	assert.Equal(t, g.Notes, got.Notes)

	task, err := c.decodeGoal(3, []string{"2025-06-15", "Task", "Paint", "", "", "in progress", "ben", "G2"})
	require.NoError(t, err)
	assert.False(t, task.TargetAmount.Valid)
	assert.Nil(t, task.TargetDate)
	assert.Nil(t, task.CompletedDate)
	assert.Equal(t, domain.StatusInProgress, task.Status)
}

func TestSameHeader(t *testing.T) {
	assert.True(t, sameHeader([]string{"Date", " amount ", "category", "merchant", "note", "user", ""}, ExpenseHeader))
	assert.False(t, sameHeader([]string{"date", "amount", "category", "merchant", "user", "note"}, ExpenseHeader))
	assert.False(t, sameHeader([]string{"date", "amount"}, ExpenseHeader))
}
