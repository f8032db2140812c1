package policy

import (
	"errors"
	"testing"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expense(amount, currency, merchant, note, text string) domain.RawExtraction {
	return domain.RawExtraction{
		Kind:          domain.KindExpense,
		Amount:        amount,
		Currency:      currency,
		Merchant:      merchant,
		Note:          note,
		Text:          text,
		ReferenceDate: ref,
	}
}

func TestNormalizeExpense(t *testing.T) {
	p := New(DefaultConfig())

	tests := []struct {
		name     string
		raw      domain.RawExtraction
		amount   string
		category domain.Category
		merchant string
	}{
		{"known merchant", expense("45", "", "Rewe", "", "45 Rewe"), "45", domain.CategoryGroceries, "Rewe"},
		{"note keyword", expense("12,50", "", "", "pizza", "12,50 pizza"), "12.50", domain.CategoryFoodTakeout, ""},
		{"explicit dollar", expense("10", "$", "", "", "10$"), "9.26", domain.CategoryOther, ""},
		{"bare DM is legacy currency", expense("5", "DM", "", "", "5 DM"), "2.56", domain.CategoryOther, ""},
		{"DM with drugstore context", expense("5", "DM", "", "shampoo", "5 DM shampoo"), "5", domain.CategoryHousehold, "dm-drogerie markt"},
		{"DM with merchant hint", expense("5", "DM", "dm-drogerie markt", "", "5 DM"), "5", domain.CategoryHousehold, "dm-drogerie markt"},
		{"DM with explicit euro", expense("5", "€", "", "", "5€ DM"), "5", domain.CategoryHousehold, "dm-drogerie markt"},
		{"DM with unrelated context", expense("100", "DM", "", "pizza", "100 DM pizza"), "51.13", domain.CategoryFoodTakeout, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := p.NormalizeExpense(tt.raw, "anna")
			require.NoError(t, err)

			assert.True(t, decimal.RequireFromString(tt.amount).Equal(e.Amount), "amount %s, want %s", e.Amount, tt.amount)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.merchant, e.Merchant)
			assert.Equal(t, "anna", e.Actor)
			assert.True(t, e.Amount.IsPositive())
			assert.True(t, e.Category.Valid())
		})
	}
}

func TestNormalizeExpenseDate(t *testing.T) {
	p := New(DefaultConfig())

	raw := expense("3", "", "", "", "3 coffee yesterday")
	raw.Date = "yesterday"
	e, err := p.NormalizeExpense(raw, "anna")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-14 10:30", e.Date.Format("2006-01-02 15:04"))
}

func TestNormalizeExpenseErrors(t *testing.T) {
	onlyEuro := New(Config{Rates: map[string]decimal.Decimal{"EUR": decimal.NewFromInt(1)}})

	dated := expense("3", "", "", "", "")
	dated.Date = "someday"

	tests := []struct {
		name   string
		policy *Policy
		raw    domain.RawExtraction
		reason domain.NormalizationReason
	}{
		{"missing amount", New(DefaultConfig()), expense("", "", "Rewe", "", "Rewe"), domain.MissingAmount},
		{"negative amount", New(DefaultConfig()), expense("-4", "", "", "", "-4"), domain.NegativeAmount},
		{"unparseable date", New(DefaultConfig()), dated, domain.UnparseableDate},
		{"no rate", onlyEuro, expense("10", "USD", "", "", "10 USD"), domain.UnsupportedCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.policy.NormalizeExpense(tt.raw, "anna")
			var ne *domain.NormalizationError
			require.True(t, errors.As(err, &ne), "got %v", err)
			assert.Equal(t, tt.reason, ne.Reason)
		})
	}
}

func TestNormalizeGoal(t *testing.T) {
	p := New(DefaultConfig())

	g, err := p.NormalizeGoal(domain.RawExtraction{
		Kind:          domain.KindGoal,
		Name:          " Trip to Japan ",
		TargetAmount:  "5000",
		TargetDate:    "by December 2026",
		ReferenceDate: ref,
	}, "ben")
	require.NoError(t, err)

	assert.Equal(t, "Trip to Japan", g.Name)
	assert.Equal(t, domain.GoalFinancial, g.Type)
	assert.True(t, decimal.NewFromInt(5000).Equal(g.TargetAmount.Decimal))
	require.NotNil(t, g.TargetDate)
	assert.Equal(t, "2026-12-31", g.TargetDate.Format("2006-01-02"))
	assert.Equal(t, domain.StatusPending, g.Status)
	assert.Equal(t, "ben", g.CreatedBy)
	assert.Nil(t, g.CompletedDate)
	assert.Empty(t, g.ID)

	task, err := p.NormalizeGoal(domain.RawExtraction{Name: "Paint the fence", ReferenceDate: ref}, "ben")
	require.NoError(t, err)
	assert.Equal(t, domain.GoalTask, task.Type)
	assert.False(t, task.TargetAmount.Valid)
	assert.Nil(t, task.TargetDate)
}

func TestParseMoneyLegacy(t *testing.T) {
	v, err := New(DefaultConfig()).ParseMoney("1000 DM", "")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("511.29").Equal(v), "got %s", v)
}
