package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidDate            = errors.New("invalid_date")
	ErrInvalidPeriod          = errors.New("invalid_period")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidFilingReference = errors.New("invalid_filing_reference")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrNotFound               = errors.New("not_found")
	ErrPeriodOverlap          = errors.New("period_overlap")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrOutsidePeriod          = errors.New("transaction_outside_period")
)

// OverlapError reports a period that collides with an already filed return.
type OverlapError struct {
	Requested     Period
	ConflictingID snowflake.ID
	Conflicting   Period
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("period_overlap: %s overlaps filed return %s (%s)",
		e.Requested, e.ConflictingID, e.Conflicting)
}

func (e *OverlapError) Unwrap() error { return ErrPeriodOverlap }

// TransitionError reports a lifecycle move the current status does not allow.
type TransitionError struct {
	From   Status
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: cannot %s a %s return", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsValidationError reports whether err was caused by malformed caller input.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidFilingReference),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrOutsidePeriod):
		return true
	default:
		return false
	}
}
