package swap

import (
	"errors"
	"fmt"
)

// ConflictReason identifies which business rule a request ran into. Callers
// branch UI messaging on it, so the values are part of the API surface.
type ConflictReason string

const (
	ConflictStaffNotAssigned ConflictReason = "staff-not-assigned"
	ConflictNoInventory      ConflictReason = "no-inventory"
	ConflictTypeMismatch     ConflictReason = "type-mismatch"
	ConflictInactiveBattery  ConflictReason = "inactive-battery"
	ConflictNoChargedBattery ConflictReason = "no-charged-battery"
	ConflictNoEmptySlot      ConflictReason = "no-empty-slot"
	ConflictBookingState     ConflictReason = "booking-state"
	ConflictSwapState        ConflictReason = "swap-state"
)

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidArgumentError reports a malformed or missing request field.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports a business-rule violation. The request was well
// formed but the current inventory or assignment state forbids it.
type ConflictError struct {
	Reason ConflictReason
	Detail string
}

func (e *ConflictError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidArgument reports whether err is an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var ia *InvalidArgumentError
	return errors.As(err, &ia)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// ReasonOf returns the conflict reason carried by err, or "" if err is not a
// ConflictError.
func ReasonOf(err error) ConflictReason {
	var c *ConflictError
	if errors.As(err, &c) {
		return c.Reason
	}
	return ""
}
