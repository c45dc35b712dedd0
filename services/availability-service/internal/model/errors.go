package model

import (
	"errors"
	"fmt"
)

// ErrNotFound signals an unknown entity id (event type, rule, organizer).
var ErrNotFound = errors.New("not found")

// ErrReadOnlySource signals an attempt to mutate a blocked time owned by an
// external calendar sync; those rows are only writable by the sync feed.
var ErrReadOnlySource = errors.New("blocked time is managed by an external calendar source")

// ValidationError rejects structurally invalid input before any resolution
// or persistence happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError blocks a rule write that overlaps (or touches) an existing
// active rule of the same kind. It names the colliding rule so authoring
// forms can point at it.
type ConflictError struct {
	RuleKind    string
	RuleID      string
	StartMinute int
	EndMinute   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s rule %s (%s-%s) overlaps or touches the candidate interval",
		e.RuleKind, e.RuleID, FormatMinuteOfDay(e.StartMinute), FormatMinuteOfDay(e.EndMinute))
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
