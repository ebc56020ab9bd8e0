package model

// Dock is a named rack of slots within a station. Allocation orders slots by
// (dock name, slot number) so concurrent staff actions pick deterministically.
type Dock struct {
	ID        string
	StationID string
	Name      string
}

// SlotStatus is the occupancy state of a dock slot.
type SlotStatus string

const (
	SlotEmpty    SlotStatus = "EMPTY"
	SlotOccupied SlotStatus = "OCCUPIED"
)

// DockSlot is an individual mounting point. At most one battery occupies a
// slot at a time; BatteryID is set exactly when Status is OCCUPIED.
type DockSlot struct {
	ID        string
	DockID    string
	DockName  string // denormalized for ordering
	StationID string
	Number    int
	Status    SlotStatus
	BatteryID string // empty string when vacant
	Active    bool
}

// Seat places a battery into the slot.
func (s *DockSlot) Seat(batteryID string) {
	s.Status = SlotOccupied
	s.BatteryID = batteryID
}

// Vacate removes the slot's battery, leaving it empty.
func (s *DockSlot) Vacate() {
	s.Status = SlotEmpty
	s.BatteryID = ""
}
