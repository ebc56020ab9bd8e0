package model

import "time"

// SwapStatus is the state of one recorded exchange.
// Transitions: PENDING -> SUCCESS -> {CANCELLED_TEMP | CANCELLED}.
// Both cancelled states are terminal.
type SwapStatus string

const (
	SwapPending       SwapStatus = "PENDING"
	SwapSuccess       SwapStatus = "SUCCESS"
	SwapCancelledTemp SwapStatus = "CANCELLED_TEMP"
	SwapCancelled     SwapStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s SwapStatus) Terminal() bool {
	return s == SwapCancelledTemp || s == SwapCancelled
}

// CancelKind selects how a swap is cancelled. TEMP marks the record without
// touching inventory; PERMANENT reverses battery and slot state.
type CancelKind string

const (
	CancelTemp      CancelKind = "TEMP"
	CancelPermanent CancelKind = "PERMANENT"
)

// Valid reports whether k is a recognised cancellation kind.
func (k CancelKind) Valid() bool {
	return k == CancelTemp || k == CancelPermanent
}

// Swap is the ledger record of one exchange: the driver's depleted unit in,
// the station's charged unit out. Immutable once SUCCESS except for
// cancellation bookkeeping.
type Swap struct {
	ID           string
	BookingID    string
	BatteryInID  string // depleted unit handed over by the driver
	BatteryOutID string // charged unit handed to the driver
	Status       SwapStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
