package model

import "time"

// BatteryStatus is the operational state of a physical battery unit.
type BatteryStatus string

const (
	BatteryAvailable BatteryStatus = "AVAILABLE" // charged and docked, ready to hand out
	BatteryInUse     BatteryStatus = "IN_USE"    // out with a driver
	BatteryCharging  BatteryStatus = "CHARGING"  // docked but not yet at handout level
	BatteryFaulty    BatteryStatus = "FAULTY"
)

// Battery is one physical unit in a station's pool. Only active units
// participate in swaps; Type must match the requesting booking exactly.
type Battery struct {
	ID        string
	StationID string
	Type      string // chemistry/model, e.g. "LFP-48V"
	Status    BatteryStatus
	Active    bool // soft-disable flag
	UpdatedAt time.Time
}

// Swappable reports whether the unit may take part in an exchange.
func (b Battery) Swappable() bool { return b.Active }
