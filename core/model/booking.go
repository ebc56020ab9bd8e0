package model

import (
	"fmt"
	"time"
)

// BookingStatus is the lifecycle state of a driver's reservation.
type BookingStatus string

const (
	BookingPending         BookingStatus = "PENDING"
	BookingPendingSwapping BookingStatus = "PENDING_SWAPPING"
	BookingCompleted       BookingStatus = "COMPLETED"
	BookingCancelled       BookingStatus = "CANCELLED"
)

// Booking represents a driver's reservation for one or more battery units at
// a station. A booking is committed into physical swaps only from the
// PENDING_SWAPPING state; payment is assumed settled before that point.
type Booking struct {
	ID           string
	UserID       string
	StationID    string
	BatteryType  string // requested chemistry/model, matched exactly
	BatteryCount int    // number of units to exchange
	Status       BookingStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks that the booking is structurally sound.
func (b Booking) Validate() error {
	if b.StationID == "" {
		return fmt.Errorf("booking %s: missing station", b.ID)
	}
	if b.BatteryCount <= 0 {
		return fmt.Errorf("booking %s: battery count must be positive", b.ID)
	}
	return nil
}

// Swappable reports whether the booking may enter swap commitment.
func (b Booking) Swappable() bool {
	return b.Status == BookingPendingSwapping
}
