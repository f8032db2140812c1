package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// Column contracts of the two tables.
var (
	ExpenseHeader = []string{"date", "amount", "category", "merchant", "note", "user"}
	GoalHeader    = []string{"created_date", "type", "goal_name", "target_amount", "target_date", "status", "created_by", "goal_id", "completed_date", "notes"}
)

const goalIDColumn = 7

type codec struct {
	loc *time.Location
}

func (c codec) encodeExpense(e domain.Expense) []string {
	return []string{
		e.Date.In(c.loc).Format(dateTimeLayout),
		e.Amount.StringFixed(2),
		string(e.Category),
		e.Merchant,
		e.Note,
		e.Actor,
	}
}

func (c codec) decodeExpense(pos int, row []string) (domain.Expense, error) {
	row = pad(row, len(ExpenseHeader))

	d, err := c.parseTime(row[0])
	if err != nil {
		return domain.Expense{}, fmt.Errorf("row %d: date: %w", pos, err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(row[1]))
	if err != nil {
		return domain.Expense{}, fmt.Errorf("row %d: amount: %w", pos, err)
	}

	return domain.Expense{
		Date:     d,
		Amount:   amount,
		Category: domain.Category(row[2]),
		Merchant: row[3],
		Note:     row[4],
		Actor:    row[5],
		Position: pos,
	}, nil
}

func (c codec) encodeGoal(g domain.Goal) []string {
	target := ""
	if g.TargetAmount.Valid {
		target = g.TargetAmount.Decimal.StringFixed(2)
	}
	targetDate := ""
	if g.TargetDate != nil {
		targetDate = g.TargetDate.Format(dateLayout)
	}
	completed := ""
	if g.CompletedDate != nil {
		completed = g.CompletedDate.In(c.loc).Format(dateTimeLayout)
	}

	return []string{
		g.CreatedDate.Format(dateLayout),
		string(g.Type),
		g.Name,
		target,
		targetDate,
		string(g.Status),
		g.CreatedBy,
		g.ID,
		completed,
		g.Notes,
	}
}

func (c codec) decodeGoal(pos int, row []string) (domain.Goal, error) {
	row = pad(row, len(GoalHeader))

	created, err := c.parseTime(row[0])
	if err != nil {
		return domain.Goal{}, fmt.Errorf("row %d: created_date: %w", pos, err)
	}

	var target decimal.NullDecimal
	if s := strings.TrimSpace(row[3]); s != "" {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return domain.Goal{}, fmt.Errorf("row %d: target_amount: %w", pos, err)
		}
		target = decimal.NewNullDecimal(v)
	}

	targetDate, err := c.parseOptional(row[4])
	if err != nil {
		return domain.Goal{}, fmt.Errorf("row %d: target_date: %w", pos, err)
	}
	completed, err := c.parseOptional(row[8])
	if err != nil {
		return domain.Goal{}, fmt.Errorf("row %d: completed_date: %w", pos, err)
	}

	status, ok := domain.ParseGoalStatus(row[5])
	if !ok {
		status = domain.GoalStatus(row[5])
	}

	return domain.Goal{
		ID:            strings.TrimSpace(row[goalIDColumn]),
		CreatedDate:   created,
		Type:          domain.GoalType(row[1]),
		Name:          row[2],
		TargetAmount:  target,
		TargetDate:    targetDate,
		Status:        status,
		CreatedBy:     row[6],
		CompletedDate: completed,
		Notes:         row[9],
	}, nil
}

func (c codec) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateTimeLayout, s, c.loc); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dateLayout, s, c.loc)
}

func (c codec) parseOptional(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := c.parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func pad(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	out := make([]string, n)
	copy(out, row)
	return out
}

// sameHeader compares header rows ignoring case and surrounding space.
func sameHeader(got, want []string) bool {
	got = trimTrailing(got)
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if !strings.EqualFold(strings.TrimSpace(got[i]), want[i]) {
			return false
		}
	}
	return true
}

func trimTrailing(row []string) []string {
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}
