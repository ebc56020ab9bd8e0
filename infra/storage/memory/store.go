// Package memory provides an in-process store implementation. It backs the
// engine's tests and the `serve --storage memory` development mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/evswap/stationd/core/model"
	"github.com/evswap/stationd/core/store"
)

// Store keeps all records in maps guarded by a single mutex. A transaction
// holds the mutex for its whole duration and rolls back by restoring a
// snapshot, which gives the serializable behavior the engine's allocation
// reads require.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

type dataset struct {
	bookings  map[string]model.Booking
	batteries map[string]model.Battery
	slots     map[string]model.DockSlot
	swaps     map[string]model.Swap
	staff     map[string]map[string]bool // station id -> staff user ids
}

func newDataset() *dataset {
	return &dataset{
		bookings:  map[string]model.Booking{},
		batteries: map[string]model.Battery{},
		slots:     map[string]model.DockSlot{},
		swaps:     map[string]model.Swap{},
		staff:     map[string]map[string]bool{},
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	for k, v := range d.batteries {
		c.batteries[k] = v
	}
	for k, v := range d.slots {
		c.slots[k] = v
	}
	for k, v := range d.swaps {
		c.swaps[k] = v
	}
	for station, users := range d.staff {
		m := make(map[string]bool, len(users))
		for u, ok := range users {
			m[u] = ok
		}
		c.staff[station] = m
	}
	return c
}

// New returns an empty store.
func New() *Store { return &Store{data: newDataset()} }

// WithTransaction runs fn over the live dataset under the store mutex. If fn
// returns an error the pre-transaction snapshot is restored and the error is
// returned unchanged.
func (s *Store) WithTransaction(ctx context.Context, fn func(store.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.data.clone()
	if err := fn(&txStores{d: s.data}); err != nil {
		s.data = snap
		return err
	}
	return nil
}

// Seed helpers populate the store outside any transaction. They are meant
// for tests and development bootstrapping.

func (s *Store) AddBooking(b model.Booking) {
	s.mu.Lock()
	s.data.bookings[b.ID] = b
	s.mu.Unlock()
}

func (s *Store) AddBattery(b model.Battery) {
	s.mu.Lock()
	s.data.batteries[b.ID] = b
	s.mu.Unlock()
}

func (s *Store) RemoveBattery(id string) {
	s.mu.Lock()
	delete(s.data.batteries, id)
	s.mu.Unlock()
}

func (s *Store) AddSlot(sl model.DockSlot) {
	s.mu.Lock()
	s.data.slots[sl.ID] = sl
	s.mu.Unlock()
}

func (s *Store) AddSwap(sw model.Swap) {
	s.mu.Lock()
	s.data.swaps[sw.ID] = sw
	s.mu.Unlock()
}

func (s *Store) AssignStaff(stationID, userID string) {
	s.mu.Lock()
	if s.data.staff[stationID] == nil {
		s.data.staff[stationID] = map[string]bool{}
	}
	s.data.staff[stationID][userID] = true
	s.mu.Unlock()
}

type txStores struct {
	d *dataset
}

func (t *txStores) Bookings() store.BookingStore  { return bookingStore{t.d} }
func (t *txStores) Batteries() store.BatteryStore { return batteryStore{t.d} }
func (t *txStores) Slots() store.SlotStore        { return slotStore{t.d} }
func (t *txStores) Swaps() store.SwapStore        { return swapStore{t.d} }
func (t *txStores) Staff() store.StaffDirectory   { return staffDirectory{t.d} }

type bookingStore struct{ d *dataset }

func (s bookingStore) Get(_ context.Context, id string) (model.Booking, error) {
	b, ok := s.d.bookings[id]
	if !ok {
		return model.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (s bookingStore) Save(_ context.Context, b model.Booking) error {
	s.d.bookings[b.ID] = b
	return nil
}

type batteryStore struct{ d *dataset }

func (s batteryStore) Get(_ context.Context, id string) (model.Battery, error) {
	b, ok := s.d.batteries[id]
	if !ok {
		return model.Battery{}, store.ErrNotFound
	}
	return b, nil
}

func (s batteryStore) Save(_ context.Context, b model.Battery) error {
	s.d.batteries[b.ID] = b
	return nil
}

func (s batteryStore) CountAvailable(_ context.Context, stationID, batteryType string) (int, error) {
	n := 0
	for _, b := range s.d.batteries {
		if b.StationID == stationID && b.Type == batteryType && b.Active && b.Status == model.BatteryAvailable {
			n++
		}
	}
	return n, nil
}

func (s batteryStore) ListByStation(_ context.Context, stationID string) ([]model.Battery, error) {
	var out []model.Battery
	for _, b := range s.d.batteries {
		if b.StationID == stationID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type slotStore struct{ d *dataset }

func (s slotStore) Get(_ context.Context, id string) (model.DockSlot, error) {
	sl, ok := s.d.slots[id]
	if !ok {
		return model.DockSlot{}, store.ErrNotFound
	}
	return sl, nil
}

func (s slotStore) Save(_ context.Context, sl model.DockSlot) error {
	s.d.slots[sl.ID] = sl
	return nil
}

func (s slotStore) ByBattery(_ context.Context, batteryID string) (model.DockSlot, error) {
	if batteryID == "" {
		return model.DockSlot{}, store.ErrNotFound
	}
	for _, sl := range s.d.slots {
		if sl.BatteryID == batteryID {
			return sl, nil
		}
	}
	return model.DockSlot{}, store.ErrNotFound
}

func (s slotStore) FirstCharged(_ context.Context, stationID string) (model.DockSlot, error) {
	var candidates []model.DockSlot
	for _, sl := range s.d.slots {
		if sl.StationID != stationID || sl.Status != model.SlotOccupied {
			continue
		}
		b, ok := s.d.batteries[sl.BatteryID]
		if !ok || !b.Active || b.Status != model.BatteryAvailable {
			continue
		}
		candidates = append(candidates, sl)
	}
	return firstOrdered(candidates)
}

func (s slotStore) FirstEmpty(_ context.Context, stationID string) (model.DockSlot, error) {
	var candidates []model.DockSlot
	for _, sl := range s.d.slots {
		if sl.StationID == stationID && sl.Active && sl.Status == model.SlotEmpty {
			candidates = append(candidates, sl)
		}
	}
	return firstOrdered(candidates)
}

func (s slotStore) ListByStation(_ context.Context, stationID string) ([]model.DockSlot, error) {
	var out []model.DockSlot
	for _, sl := range s.d.slots {
		if sl.StationID == stationID {
			out = append(out, sl)
		}
	}
	sortSlots(out)
	return out, nil
}

func sortSlots(slots []model.DockSlot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].DockName != slots[j].DockName {
			return slots[i].DockName < slots[j].DockName
		}
		if slots[i].Number != slots[j].Number {
			return slots[i].Number < slots[j].Number
		}
		return slots[i].ID < slots[j].ID
	})
}

func firstOrdered(slots []model.DockSlot) (model.DockSlot, error) {
	if len(slots) == 0 {
		return model.DockSlot{}, store.ErrNotFound
	}
	sortSlots(slots)
	return slots[0], nil
}

type swapStore struct{ d *dataset }

func (s swapStore) Get(_ context.Context, id string) (model.Swap, error) {
	sw, ok := s.d.swaps[id]
	if !ok {
		return model.Swap{}, store.ErrNotFound
	}
	return sw, nil
}

func (s swapStore) Create(_ context.Context, sw model.Swap) error {
	if _, ok := s.d.swaps[sw.ID]; ok {
		return fmt.Errorf("memory: swap %s already exists", sw.ID)
	}
	s.d.swaps[sw.ID] = sw
	return nil
}

func (s swapStore) Save(_ context.Context, sw model.Swap) error {
	s.d.swaps[sw.ID] = sw
	return nil
}

type staffDirectory struct{ d *dataset }

func (s staffDirectory) IsAssigned(_ context.Context, stationID, userID string) (bool, error) {
	return s.d.staff[stationID][userID], nil
}
