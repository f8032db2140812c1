package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/cp25sy5-modjot/ledger-service/internal/goals"
	"github.com/cp25sy5-modjot/ledger-service/internal/ledger"
	"github.com/cp25sy5-modjot/ledger-service/internal/metrics"
	"github.com/cp25sy5-modjot/ledger-service/internal/policy"
	"github.com/cp25sy5-modjot/ledger-service/internal/ports"
	"github.com/rs/zerolog/log"
)

// Editable expense fields.
var expenseFields = map[string]string{
	"amount":   "amount",
	"category": "category",
	"merchant": "merchant",
	"shop":     "merchant",
	"note":     "note",
	"date":     "date",
}

type Config struct {
	Extractor ports.Extractor
	Policy    *policy.Policy
	Ledger    *ledger.Reconciler
	Goals     *goals.Manager
	Clock     ports.Clock
	Metrics   *metrics.Metrics
}

// Engine exposes the operations the command router calls. Every call is
// independent and safe to run concurrently with any other.
type Engine struct {
	extractor ports.Extractor
	policy    *policy.Policy
	ledger    *ledger.Reconciler
	goals     *goals.Manager
	clock     ports.Clock
	metrics   *metrics.Metrics
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		extractor: cfg.Extractor,
		policy:    cfg.Policy,
		ledger:    cfg.Ledger,
		goals:     cfg.Goals,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
	}
}

// SubmitExpense extracts, normalizes, validates and appends one expense.
func (e *Engine) SubmitExpense(ctx context.Context, actor string, payload domain.Payload) (domain.Expense, error) {
	raw, err := e.extract(ctx, domain.KindExpense, payload)
	if err != nil {
		return domain.Expense{}, err
	}

	exp, err := e.policy.NormalizeExpense(*raw, actor)
	if err != nil {
		e.metrics.Failure("Expenses", "normalization")
		return domain.Expense{}, err
	}

	committed, err := e.ledger.AppendExpense(ctx, exp)
	if err != nil {
		return domain.Expense{}, err
	}
	log.Info().
		Str("actor", actor).
		Str("amount", committed.Amount.StringFixed(2)).
		Str("category", string(committed.Category)).
		Msg("expense saved")
	return committed, nil
}

// SubmitGoal extracts and creates one goal in Pending.
func (e *Engine) SubmitGoal(ctx context.Context, actor string, payload domain.Payload) (domain.Goal, error) {
	raw, err := e.extract(ctx, domain.KindGoal, payload)
	if err != nil {
		return domain.Goal{}, err
	}

	g, err := e.policy.NormalizeGoal(*raw, actor)
	if err != nil {
		e.metrics.Failure("Goals", "normalization")
		return domain.Goal{}, err
	}
	return e.goals.Create(ctx, g)
}

func (e *Engine) EditGoal(ctx context.Context, id, field, value string) (domain.Goal, error) {
	return e.goals.Edit(ctx, id, field, value)
}

func (e *Engine) ChangeGoalStatus(ctx context.Context, id, status string) (domain.Goal, error) {
	return e.goals.ChangeStatus(ctx, id, status)
}

func (e *Engine) UndoLastExpense(ctx context.Context, actor string) (domain.Expense, error) {
	return e.ledger.UndoLastExpense(ctx, actor)
}

func (e *Engine) UndoLastGoal(ctx context.Context, actor string) (domain.Goal, error) {
	return e.goals.UndoLast(ctx, actor)
}

// DeleteGoal deletes a goal by id. The actor is recorded in the log only.
func (e *Engine) DeleteGoal(ctx context.Context, actor, id string) (domain.Goal, error) {
	log.Info().Str("actor", actor).Str("goal_id", id).Msg("goal deletion requested")
	return e.goals.Delete(ctx, id)
}

func (e *Engine) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	return e.goals.List(ctx)
}

// RecentExpenses returns up to n expenses of actor, newest first. An empty
// actor lists everybody's.
func (e *Engine) RecentExpenses(ctx context.Context, actor string, n int) ([]domain.Expense, error) {
	all, err := e.ledger.Expenses(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Expense, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if actor == "" || all[i].Actor == actor {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// EditExpense sets one field of the expense at position, or of actor's most
// recent expense when position is zero.
func (e *Engine) EditExpense(ctx context.Context, actor string, position int, field, value string) (domain.Expense, error) {
	f, ok := expenseFields[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return domain.Expense{}, domain.Reject(domain.RejectUnknownField, field)
	}
	value = strings.TrimSpace(value)

	if position <= 0 {
		last, err := e.ledger.LastExpense(ctx, actor)
		if err != nil {
			return domain.Expense{}, err
		}
		position = last.Position
	}

	now := e.clock.Now()
	return e.ledger.UpdateExpense(ctx, position, func(exp domain.Expense) (domain.Expense, error) {
		return e.applyExpense(exp, f, value, now)
	})
}

func (e *Engine) applyExpense(exp domain.Expense, field, value string, now time.Time) (domain.Expense, error) {
	switch field {
	case "amount":
		v, err := e.policy.ParseMoney(value, "")
		if err != nil {
			return exp, err
		}
		exp.Amount = v
	case "category":
		c, ok := domain.ParseCategory(value)
		if !ok {
			return exp, domain.Reject(domain.RejectUnknownCategory, value)
		}
		exp.Category = c
	case "merchant":
		exp.Merchant = value
	case "note":
		exp.Note = value
	case "date":
		d, err := policy.ResolveDate(value, now)
		if err != nil {
			return exp, err
		}
		exp.Date = time.Date(d.Year(), d.Month(), d.Day(), exp.Date.Hour(), exp.Date.Minute(), 0, 0, d.Location())
	}
	return exp, nil
}

// Healthy reports whether the engine still accepts writes.
func (e *Engine) Healthy() error {
	return e.ledger.Halted()
}

func (e *Engine) extract(ctx context.Context, kind domain.Kind, payload domain.Payload) (*domain.RawExtraction, error) {
	ref := e.clock.Now()

	start := time.Now()
	raw, err := e.extractor.Extract(ctx, kind, payload, ref)
	took := time.Since(start)

	switch {
	case err != nil:
		e.metrics.Extraction(string(kind), "error", took)
		log.Warn().Err(err).Str("kind", string(kind)).Msg("extraction failed")
		return nil, err
	case raw == nil:
		e.metrics.Extraction(string(kind), "no_match", took)
		return nil, domain.ErrNoMatch
	}
	e.metrics.Extraction(string(kind), "ok", took)

	if raw.ReferenceDate.IsZero() {
		raw.ReferenceDate = ref
	}
	if raw.Text == "" {
		raw.Text = payload.Text
	}
	return raw, nil
}
