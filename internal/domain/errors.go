package domain

import (
	"errors"
	"fmt"
)

var (
	ErrExtractionUnavailable  = errors.New("extraction service unavailable")
	ErrNoMatch                = errors.New("nothing recognisable in the input, please clarify")
	ErrInvalidPayload         = errors.New("payload outside the accepted size or format")
	ErrSchemaMismatch         = errors.New("store header does not match the expected columns")
	ErrConcurrentModification = errors.New("record was modified concurrently, try again")
	ErrNothingToUndo          = errors.New("nothing to undo")
	ErrGoalNotFound           = errors.New("there is no goal with this id")
	ErrExpenseNotFound        = errors.New("there is no expense at this position")
	ErrActorNotAllowed        = errors.New("actor is not on the allowlist")
)

type NormalizationReason string

const (
	MissingAmount       NormalizationReason = "MissingAmount"
	NegativeAmount      NormalizationReason = "NegativeAmount"
	UnparseableDate     NormalizationReason = "UnparseableDate"
	UnsupportedCurrency NormalizationReason = "UnsupportedCurrency"
)

type NormalizationError struct {
	Reason NormalizationReason
	Input  string
}

func (e *NormalizationError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("normalization failed: %s", e.Reason)
	}
	return fmt.Sprintf("normalization failed: %s (%q)", e.Reason, e.Input)
}

func NewNormalizationError(reason NormalizationReason, input string) *NormalizationError {
	return &NormalizationError{Reason: reason, Input: input}
}

type RejectReason string

const (
	RejectNonPositiveAmount RejectReason = "non-positive amount"
	RejectUnknownCategory   RejectReason = "category outside the closed set"
	RejectMissingActor      RejectReason = "record has no actor"
	RejectEmptyGoalName     RejectReason = "empty goal name"
	RejectNonPositiveTarget RejectReason = "non-positive target amount"
	RejectDuplicateGoalID   RejectReason = "duplicate goal id"
	RejectMissingGoalID     RejectReason = "goal has no id"
	RejectUnknownStatus     RejectReason = "unknown goal status"
	RejectCompletedMismatch RejectReason = "completed date does not match status"
	RejectTypeMismatch      RejectReason = "goal type does not match target amount"
	RejectBackward          RejectReason = "backward status transition"
	RejectNoTransition      RejectReason = "goal already has this status"
	RejectTerminal          RejectReason = "goal is done"
	RejectUnknownField      RejectReason = "unknown field"
	RejectInvalidValue      RejectReason = "invalid value"
)

type Rejected struct {
	Reason RejectReason
	Detail string
}

func (e *Rejected) Error() string {
	if e.Detail == "" {
		return "rejected: " + string(e.Reason)
	}
	return fmt.Sprintf("rejected: %s: %s", e.Reason, e.Detail)
}

func Reject(reason RejectReason, detail string) *Rejected {
	return &Rejected{Reason: reason, Detail: detail}
}
