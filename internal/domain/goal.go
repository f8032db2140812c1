package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type GoalType string

const (
	GoalFinancial GoalType = "Financial"
	GoalTask      GoalType = "Task"
)

type GoalStatus string

const (
	StatusPending    GoalStatus = "Pending"
	StatusInProgress GoalStatus = "In Progress"
	StatusDone       GoalStatus = "Done"
)

var statusRank = map[GoalStatus]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusDone:       2,
}

// ParseGoalStatus accepts the display names plus the common spellings used
// in chat commands ("in_progress", "inprogress", "doing", "done").
func ParseGoalStatus(s string) (GoalStatus, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("_", " ", "-", " ").Replace(k)
	switch k {
	case "pending", "todo", "to do", "open":
		return StatusPending, true
	case "in progress", "inprogress", "progress", "doing", "started":
		return StatusInProgress, true
	case "done", "complete", "completed", "finished":
		return StatusDone, true
	}
	return "", false
}

func (s GoalStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transition leaves s.
func (s GoalStatus) Terminal() bool { return s == StatusDone }

// Forward reports whether moving from s to to is a forward transition.
// Staying in the same state is not a transition.
func (s GoalStatus) Forward(to GoalStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	next, ok := statusRank[to]
	return ok && next > from
}

type Goal struct {
	ID            string              `json:"goal_id"`
	CreatedDate   time.Time           `json:"created_date"`
	Type          GoalType            `json:"type"`
	Name          string              `json:"name"`
	TargetAmount  decimal.NullDecimal `json:"target_amount"`
	TargetDate    *time.Time          `json:"target_date,omitempty"`
	Status        GoalStatus          `json:"status"`
	CreatedBy     string              `json:"created_by"`
	CompletedDate *time.Time          `json:"completed_date,omitempty"`
	Notes         string              `json:"notes"`
}

// TypeFor derives the goal type from the presence of a target amount.
func TypeFor(target decimal.NullDecimal) GoalType {
	if target.Valid {
		return GoalFinancial
	}
	return GoalTask
}
