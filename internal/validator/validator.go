// Package validator enforces the record invariants before anything is
// committed to the store. All checks are pure.
package validator

import (
	"strings"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"golang.org/x/exp/slices"
)

// Expense checks an expense record.
func Expense(e domain.Expense) error {
	if !e.Amount.IsPositive() {
		return domain.Reject(domain.RejectNonPositiveAmount, e.Amount.String())
	}
	if !slices.Contains(domain.Categories, e.Category) {
		return domain.Reject(domain.RejectUnknownCategory, string(e.Category))
	}
	if strings.TrimSpace(e.Actor) == "" {
		return domain.Reject(domain.RejectMissingActor, "")
	}
	if !storable(e.Date) {
		return domain.Reject(domain.RejectInvalidValue, "date out of range")
	}
	return nil
}

// Goal checks a goal record. taken lists goal ids already in use by other
// goals, a new goal must not reuse any of them.
func Goal(g domain.Goal, taken []string) error {
	if strings.TrimSpace(g.ID) == "" {
		return domain.Reject(domain.RejectMissingGoalID, "")
	}
	if slices.Contains(taken, g.ID) {
		return domain.Reject(domain.RejectDuplicateGoalID, g.ID)
	}
	if strings.TrimSpace(g.Name) == "" {
		return domain.Reject(domain.RejectEmptyGoalName, "")
	}
	if g.TargetAmount.Valid && !g.TargetAmount.Decimal.IsPositive() {
		return domain.Reject(domain.RejectNonPositiveTarget, g.TargetAmount.Decimal.String())
	}
	if g.Type != domain.TypeFor(g.TargetAmount) {
		return domain.Reject(domain.RejectTypeMismatch, string(g.Type))
	}
	if !g.Status.Valid() {
		return domain.Reject(domain.RejectUnknownStatus, string(g.Status))
	}
	if g.Status.Terminal() != (g.CompletedDate != nil) {
		return domain.Reject(domain.RejectCompletedMismatch, string(g.Status))
	}
	if strings.TrimSpace(g.CreatedBy) == "" {
		return domain.Reject(domain.RejectMissingActor, "")
	}
	if !storable(g.CreatedDate) || (g.TargetDate != nil && !storable(*g.TargetDate)) {
		return domain.Reject(domain.RejectInvalidValue, "date out of range")
	}
	return nil
}

// storable reports whether t has a four-digit year.
func storable(t time.Time) bool {
	return t.Year() >= 1 && t.Year() <= 9999
}
