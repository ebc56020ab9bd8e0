// Package store defines the persistence boundary of the swap engine. The
// engine only ever sees these interfaces; memory and sqlite implementations
// live under infra/storage.
package store

import (
	"context"
	"errors"

	"github.com/evswap/stationd/core/model"
)

// ErrNotFound is returned by lookups when no record matches. Ordered
// first-match queries use it to signal an empty result as well.
var ErrNotFound = errors.New("store: record not found")

// Stores bundles access to every record store. A Stores value handed to a
// transaction callback is only valid for the duration of that callback.
type Stores interface {
	Bookings() BookingStore
	Batteries() BatteryStore
	Slots() SlotStore
	Swaps() SwapStore
	Staff() StaffDirectory
}

// Runner opens units of work. Every compound mutation in the engine runs
// inside exactly one WithTransaction call: reads used for allocation and the
// writes they justify share the same boundary, so two concurrent swaps cannot
// select the same charged battery or empty slot. If fn returns an error the
// unit of work is rolled back and the error is returned unchanged.
type Runner interface {
	WithTransaction(ctx context.Context, fn func(Stores) error) error
}

// BookingStore persists driver reservations.
type BookingStore interface {
	Get(ctx context.Context, id string) (model.Booking, error)
	Save(ctx context.Context, b model.Booking) error
}

// BatteryStore persists battery units and answers inventory counts.
type BatteryStore interface {
	Get(ctx context.Context, id string) (model.Battery, error)
	Save(ctx context.Context, b model.Battery) error
	// CountAvailable returns the number of active AVAILABLE units of the
	// given type in the station's pool.
	CountAvailable(ctx context.Context, stationID, batteryType string) (int, error)
	ListByStation(ctx context.Context, stationID string) ([]model.Battery, error)
}

// SlotStore persists dock slots. First* queries order candidates by
// (dock name, slot number) ascending so allocation is deterministic.
type SlotStore interface {
	Get(ctx context.Context, id string) (model.DockSlot, error)
	Save(ctx context.Context, s model.DockSlot) error
	// ByBattery returns the slot currently holding the battery, or ErrNotFound.
	ByBattery(ctx context.Context, batteryID string) (model.DockSlot, error)
	// FirstCharged returns the first occupied slot at the station whose
	// battery is active and AVAILABLE, or ErrNotFound.
	FirstCharged(ctx context.Context, stationID string) (model.DockSlot, error)
	// FirstEmpty returns the first empty, active slot at the station, or
	// ErrNotFound.
	FirstEmpty(ctx context.Context, stationID string) (model.DockSlot, error)
	ListByStation(ctx context.Context, stationID string) ([]model.DockSlot, error)
}

// SwapStore persists the swap ledger.
type SwapStore interface {
	Get(ctx context.Context, id string) (model.Swap, error)
	Create(ctx context.Context, s model.Swap) error
	Save(ctx context.Context, s model.Swap) error
}

// StaffDirectory answers whether a staff user works the given station.
type StaffDirectory interface {
	IsAssigned(ctx context.Context, stationID, userID string) (bool, error)
}
