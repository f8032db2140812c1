// Package goals owns the goal lifecycle: Pending, In Progress, Done.
// Transitions only move forward and Done is terminal. Moving a goal back
// is an explicit field edit of its status.
package goals

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/cp25sy5-modjot/ledger-service/internal/ledger"
	"github.com/cp25sy5-modjot/ledger-service/internal/policy"
	"github.com/cp25sy5-modjot/ledger-service/internal/ports"
	"github.com/cp25sy5-modjot/ledger-service/internal/validator"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

const maxIDAttempts = 8

// Editable goal fields and their accepted spellings.
const (
	FieldName   = "name"
	FieldAmount = "amount"
	FieldDate   = "date"
	FieldNote   = "note"
	FieldStatus = "status"
)

var fieldAliases = map[string]string{
	"name":     FieldName,
	"title":    FieldName,
	"amount":   FieldAmount,
	"target":   FieldAmount,
	"date":     FieldDate,
	"deadline": FieldDate,
	"due":      FieldDate,
	"note":     FieldNote,
	"notes":    FieldNote,
	"status":   FieldStatus,
}

// clearValues remove an optional field.
var clearValues = []string{"none", "-", "clear", "remove", "no"}

type Manager struct {
	ledger *ledger.Reconciler
	policy *policy.Policy
	clock  ports.Clock
	newID  func() string
}

func New(r *ledger.Reconciler, p *policy.Policy, clock ports.Clock) *Manager {
	return &Manager{ledger: r, policy: p, clock: clock, newID: NewID}
}

// NewID returns "G" followed by eight upper-case hex digits of a random UUID.
func NewID() string {
	u := uuid.New()
	return "G" + strings.ToUpper(hex.EncodeToString(u[:4]))
}

// Create assigns an unused id to g and commits it.
func (m *Manager) Create(ctx context.Context, g domain.Goal) (domain.Goal, error) {
	existing, err := m.ledger.Goals(ctx)
	if err != nil {
		return domain.Goal{}, err
	}
	taken := make([]string, 0, len(existing))
	for _, e := range existing {
		taken = append(taken, strings.ToUpper(e.ID))
	}

	g.ID = ""
	for i := 0; i < maxIDAttempts && g.ID == ""; i++ {
		if id := m.newID(); !slices.Contains(taken, id) {
			g.ID = id
		}
	}
	if g.ID == "" {
		return domain.Goal{}, domain.Reject(domain.RejectDuplicateGoalID, "no free goal id")
	}

	if err := validator.Goal(g, taken); err != nil {
		return domain.Goal{}, err
	}

	created, err := m.ledger.AppendGoal(ctx, g)
	if err != nil {
		return domain.Goal{}, err
	}
	log.Info().Str("goal_id", created.ID).Str("actor", created.CreatedBy).Msg("goal created")
	return created, nil
}

// Edit sets one field of a goal. Editing the status may move it in either
// direction.
func (m *Manager) Edit(ctx context.Context, id, field, value string) (domain.Goal, error) {
	f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return domain.Goal{}, domain.Reject(domain.RejectUnknownField, field)
	}
	now := m.clock.Now()

	return m.ledger.UpdateGoal(ctx, id, func(g domain.Goal) (domain.Goal, error) {
		return m.apply(g, f, strings.TrimSpace(value), now)
	})
}

func (m *Manager) apply(g domain.Goal, field, value string, now time.Time) (domain.Goal, error) {
	switch field {
	case FieldName:
		if value == "" {
			return g, domain.Reject(domain.RejectEmptyGoalName, "")
		}
		g.Name = value

	case FieldAmount:
		if isClear(value) {
			g.TargetAmount = decimal.NullDecimal{}
		} else {
			v, err := m.policy.ParseMoney(value, "")
			if err != nil {
				return g, err
			}
			g.TargetAmount = decimal.NewNullDecimal(v)
		}
		g.Type = domain.TypeFor(g.TargetAmount)

	case FieldDate:
		if isClear(value) {
			g.TargetDate = nil
			break
		}
		d, err := policy.ResolveTargetDate(value, now)
		if err != nil {
			return g, err
		}
		g.TargetDate = d

	case FieldNote:
		if value == "" {
			return g, domain.Reject(domain.RejectInvalidValue, "empty note")
		}
		if g.Notes == "" {
			g.Notes = value
		} else {
			g.Notes += "; " + value
		}

	case FieldStatus:
		status, ok := domain.ParseGoalStatus(value)
		if !ok {
			return g, domain.Reject(domain.RejectUnknownStatus, value)
		}
		if status == g.Status {
			return g, domain.Reject(domain.RejectNoTransition, string(status))
		}
		setStatus(&g, status, now)
	}
	return g, nil
}

// ChangeStatus moves a goal forward. Backward moves and moves out of Done
// are rejected.
func (m *Manager) ChangeStatus(ctx context.Context, id, value string) (domain.Goal, error) {
	to, ok := domain.ParseGoalStatus(value)
	if !ok {
		return domain.Goal{}, domain.Reject(domain.RejectUnknownStatus, value)
	}
	now := m.clock.Now()

	return m.ledger.UpdateGoal(ctx, id, func(g domain.Goal) (domain.Goal, error) {
		switch {
		case g.Status == to:
			return g, domain.Reject(domain.RejectNoTransition, string(to))
		case g.Status.Terminal():
			return g, domain.Reject(domain.RejectTerminal, g.ID)
		case !g.Status.Forward(to):
			return g, domain.Reject(domain.RejectBackward, string(g.Status)+" -> "+string(to))
		}
		setStatus(&g, to, now)
		return g, nil
	})
}

// Delete removes the goal with the given id unless it is done.
func (m *Manager) Delete(ctx context.Context, id string) (domain.Goal, error) {
	g, err := m.ledger.DeleteGoal(ctx, id, deletable)
	if err != nil {
		return domain.Goal{}, err
	}
	log.Info().Str("goal_id", g.ID).Msg("goal deleted")
	return g, nil
}

// UndoLast removes the most recent goal created by actor unless it is done.
func (m *Manager) UndoLast(ctx context.Context, actor string) (domain.Goal, error) {
	g, err := m.ledger.DeleteLastGoal(ctx, actor, deletable)
	if err != nil {
		return domain.Goal{}, err
	}
	log.Info().Str("goal_id", g.ID).Str("actor", actor).Msg("goal undone")
	return g, nil
}

func (m *Manager) List(ctx context.Context) ([]domain.Goal, error) {
	return m.ledger.Goals(ctx)
}

// Get returns the goal with the given id.
func (m *Manager) Get(ctx context.Context, id string) (domain.Goal, error) {
	all, err := m.ledger.Goals(ctx)
	if err != nil {
		return domain.Goal{}, err
	}
	i := slices.IndexFunc(all, func(g domain.Goal) bool { return strings.EqualFold(g.ID, strings.TrimSpace(id)) })
	if i < 0 {
		return domain.Goal{}, domain.ErrGoalNotFound
	}
	return all[i], nil
}

func deletable(g domain.Goal) error {
	if g.Status.Terminal() {
		return domain.Reject(domain.RejectTerminal, "done goals cannot be deleted")
	}
	return nil
}

func setStatus(g *domain.Goal, status domain.GoalStatus, now time.Time) {
	g.Status = status
	if status.Terminal() {
		done := now.Truncate(time.Minute)
		g.CompletedDate = &done
	} else {
		g.CompletedDate = nil
	}
}

func isClear(v string) bool {
	return v == "" || slices.Contains(clearValues, strings.ToLower(v))
}
