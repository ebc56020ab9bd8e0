package swap

import (
	"context"
	"testing"

	"github.com/evswap/stationd/core/events"
	"github.com/evswap/stationd/core/logger"
	"github.com/evswap/stationd/core/model"
	"github.com/evswap/stationd/core/notifier"
	"github.com/evswap/stationd/core/store"
	"github.com/evswap/stationd/infra/mqtt"
	"github.com/evswap/stationd/infra/storage/memory"
)

// fixture seeds station 101 with one PENDING_SWAPPING booking for a single
// LFP unit, a charged battery BOUT001 docked in slot A-1 and an empty slot
// B-1. The driver's depleted unit BIN001 is out with the booking user.
type fixture struct {
	store  *memory.Store
	notif  *mqtt.MockNotifier
	sink   *recordingSink
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	st.AddBooking(model.Booking{
		ID: "bk1", UserID: "u1", StationID: "101",
		BatteryType: "LFP", BatteryCount: 1, Status: model.BookingPendingSwapping,
	})
	st.AssignStaff("101", "staff1")
	st.AddBattery(model.Battery{ID: "BIN001", StationID: "101", Type: "LFP", Status: model.BatteryInUse, Active: true})
	st.AddBattery(model.Battery{ID: "BOUT001", StationID: "101", Type: "LFP", Status: model.BatteryAvailable, Active: true})
	st.AddSlot(model.DockSlot{ID: "A-1", DockName: "A", StationID: "101", Number: 1, Status: model.SlotOccupied, BatteryID: "BOUT001", Active: true})
	st.AddSlot(model.DockSlot{ID: "B-1", DockName: "B", StationID: "101", Number: 1, Status: model.SlotEmpty, Active: true})

	notif := mqtt.NewMockNotifier()
	sink := &recordingSink{}
	engine, err := NewEngine(st, notif, sink, logger.Nop{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return &fixture{store: st, notif: notif, sink: sink, engine: engine}
}

type recordingSink struct {
	committed     int
	conflicts     []string
	cancellations []string
	partials      int
}

func (r *recordingSink) RecordSwapCommitted(string, string) error {
	r.committed++
	return nil
}

func (r *recordingSink) RecordConflict(reason string) error {
	r.conflicts = append(r.conflicts, reason)
	return nil
}

func (r *recordingSink) RecordCancellation(kind string, partial bool) error {
	r.cancellations = append(r.cancellations, kind)
	if partial {
		r.partials++
	}
	return nil
}

func (f *fixture) booking(t *testing.T, id string) model.Booking {
	t.Helper()
	var b model.Booking
	err := f.store.WithTransaction(context.Background(), func(s store.Stores) error {
		var err error
		b, err = s.Bookings().Get(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("load booking %s: %v", id, err)
	}
	return b
}

func (f *fixture) battery(t *testing.T, id string) model.Battery {
	t.Helper()
	var b model.Battery
	err := f.store.WithTransaction(context.Background(), func(s store.Stores) error {
		var err error
		b, err = s.Batteries().Get(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("load battery %s: %v", id, err)
	}
	return b
}

func (f *fixture) slot(t *testing.T, id string) model.DockSlot {
	t.Helper()
	var sl model.DockSlot
	err := f.store.WithTransaction(context.Background(), func(s store.Stores) error {
		var err error
		sl, err = s.Slots().Get(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("load slot %s: %v", id, err)
	}
	return sl
}

func (f *fixture) swapRecord(t *testing.T, id string) model.Swap {
	t.Helper()
	var sw model.Swap
	err := f.store.WithTransaction(context.Background(), func(s store.Stores) error {
		var err error
		sw, err = s.Swaps().Get(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("load swap %s: %v", id, err)
	}
	return sw
}

// inventoryState captures the mutable state the engine may touch, for
// no-mutation assertions.
func (f *fixture) inventoryState(t *testing.T) map[string]string {
	t.Helper()
	state := map[string]string{}
	err := f.store.WithTransaction(context.Background(), func(s store.Stores) error {
		for _, id := range []string{"BIN001", "BOUT001"} {
			b, err := s.Batteries().Get(context.Background(), id)
			if err != nil {
				return err
			}
			state["battery:"+id] = string(b.Status)
		}
		slots, err := s.Slots().ListByStation(context.Background(), "101")
		if err != nil {
			return err
		}
		for _, sl := range slots {
			state["slot:"+sl.ID] = string(sl.Status) + ":" + sl.BatteryID
		}
		return nil
	})
	if err != nil {
		t.Fatalf("capture state: %v", err)
	}
	return state
}

func assertUnchanged(t *testing.T, before, after map[string]string) {
	t.Helper()
	if len(before) != len(after) {
		t.Fatalf("state size changed: %d != %d", len(before), len(after))
	}
	for k, v := range before {
		if after[k] != v {
			t.Errorf("%s changed: %q -> %q", k, v, after[k])
		}
	}
}

func TestCommitSwap_SingleUnit(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "bk1", BatteryInIDs: []string{"BIN001"}, StaffUserID: "staff1",
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Status != model.SwapSuccess {
		t.Fatalf("expected SUCCESS got %s", res.Status)
	}
	if res.BatteryInID != "BIN001" || res.BatteryOutID != "BOUT001" {
		t.Fatalf("wrong batteries: %+v", res)
	}

	if got := f.booking(t, "bk1").Status; got != model.BookingCompleted {
		t.Errorf("booking status = %s, want COMPLETED", got)
	}
	if got := f.battery(t, "BOUT001").Status; got != model.BatteryInUse {
		t.Errorf("outgoing battery = %s, want IN_USE", got)
	}
	if got := f.battery(t, "BIN001").Status; got != model.BatteryAvailable {
		t.Errorf("incoming battery = %s, want AVAILABLE", got)
	}
	if sl := f.slot(t, "A-1"); sl.Status != model.SlotEmpty || sl.BatteryID != "" {
		t.Errorf("slot A-1 = %s/%q, want EMPTY", sl.Status, sl.BatteryID)
	}
	if sl := f.slot(t, "B-1"); sl.Status != model.SlotOccupied || sl.BatteryID != "BIN001" {
		t.Errorf("slot B-1 = %s/%q, want OCCUPIED/BIN001", sl.Status, sl.BatteryID)
	}
	if sw := f.swapRecord(t, res.SwapID); sw.Status != model.SwapSuccess || sw.BookingID != "bk1" {
		t.Errorf("swap record = %+v", sw)
	}
	if f.sink.committed != 1 {
		t.Errorf("committed metric = %d, want 1", f.sink.committed)
	}
}

func TestCommitSwap_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "bk1", BatteryInIDs: []string{"BIN001"}, StaffUserID: "staff1",
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	station := f.notif.Events(notifier.StationTopic("101"))
	if len(station) != 2 {
		t.Fatalf("expected swap + booking events on station topic, got %d", len(station))
	}
	if _, ok := station[0].(events.SwapCompletedEvent); !ok {
		t.Errorf("first station event is %T", station[0])
	}
	if _, ok := station[1].(events.BookingCompletedEvent); !ok {
		t.Errorf("second station event is %T", station[1])
	}
	if admin := f.notif.Events(notifier.AdminTopic); len(admin) != 2 {
		t.Errorf("expected 2 admin events, got %d", len(admin))
	}
}

func TestCommitSwap_NotifierFailureDoesNotFailCommit(t *testing.T) {
	f := newFixture(t)
	f.notif.FailTopics[notifier.StationTopic("101")] = true
	res, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "bk1", BatteryInIDs: []string{"BIN001"}, StaffUserID: "staff1",
	})
	if err != nil {
		t.Fatalf("commit should tolerate notify failure: %v", err)
	}
	if res.Status != model.SwapSuccess {
		t.Fatalf("expected SUCCESS got %s", res.Status)
	}
}

func TestCommitSwap_UnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "nope", BatteryInIDs: []string{"BIN001"}, StaffUserID: "staff1",
	})
	if !IsNotFound(err) {
		t.Fatalf("expected NotFound got %v", err)
	}
}

func TestCommitSwap_MissingStaff(t *testing.T) {
	f := newFixture(t)
	for _, staff := range []string{"", "   "} {
		_, err := f.engine.CommitSwap(context.Background(), Request{
			BookingID: "bk1", BatteryInIDs: []string{"BIN001"}, StaffUserID: staff,
		})
		if !IsInvalidArgument(err) {
			t.Fatalf("staff %q: expected InvalidArgument got %v", staff, err)
		}
	}
}

func TestCommitSwap_NoBatteries(t *testing.T) {
	f := newFixture(t)
	for _, ids := range [][]string{nil, {}} {
		_, err := f.engine.CommitSwap(context.Background(), Request{
			BookingID: "bk1", BatteryInIDs: ids, StaffUserID: "staff1",
		})
		if !IsInvalidArgument(err) {
			t.Fatalf("ids %v: expected InvalidArgument got %v", ids, err)
		}
	}
	// The booking must not reach COMPLETED without a single exchange.
	if got := f.booking(t, "bk1").Status; got != model.BookingPendingSwapping {
		t.Errorf("booking = %s, want PENDING_SWAPPING", got)
	}
	if f.sink.committed != 0 {
		t.Errorf("committed metric = %d, want 0", f.sink.committed)
	}
}

func TestCommitSwap_StaffNotAssigned(t *testing.T) {
	f := newFixture(t)
	before := f.inventoryState(t)
	_, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "bk1", BatteryInIDs: []string{"BIN001"}, StaffUserID: "intruder",
	})
	if ReasonOf(err) != ConflictStaffNotAssigned {
		t.Fatalf("expected staff-not-assigned got %v", err)
	}
	assertUnchanged(t, before, f.inventoryState(t))
	if len(f.sink.conflicts) != 1 || f.sink.conflicts[0] != string(ConflictStaffNotAssigned) {
		t.Errorf("conflict metrics = %v", f.sink.conflicts)
	}
}

func TestCommitSwap_NoInventory(t *testing.T) {
	f := newFixture(t)
	bout := f.battery(t, "BOUT001")
	bout.Status = model.BatteryCharging
	f.store.AddBattery(bout)

	before := f.inventoryState(t)
	_, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "bk1", BatteryInIDs: []string{"BIN001"}, StaffUserID: "staff1",
	})
	if ReasonOf(err) != ConflictNoInventory {
		t.Fatalf("expected no-inventory got %v", err)
	}
	assertUnchanged(t, before, f.inventoryState(t))
}

func TestCommitSwap_NoInventoryOfRequestedType(t *testing.T) {
	f := newFixture(t)
	// A charged unit of the wrong chemistry does not count as inventory.
	bout := f.battery(t, "BOUT001")
	bout.Type = "NMC"
	f.store.AddBattery(bout)

	_, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "bk1", BatteryInIDs: []string{"BIN001"}, StaffUserID: "staff1",
	})
	if ReasonOf(err) != ConflictNoInventory {
		t.Fatalf("expected no-inventory got %v", err)
	}
}

func TestCommitSwap_BookingNotSwappable(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, "bk1")
	b.Status = model.BookingPending
	f.store.AddBooking(b)

	_, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "bk1", BatteryInIDs: []string{"BIN001"}, StaffUserID: "staff1",
	})
	if ReasonOf(err) != ConflictBookingState {
		t.Fatalf("expected booking-state conflict got %v", err)
	}
}

func TestCommitSwap_MultiUnit(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, "bk1")
	b.BatteryCount = 2
	f.store.AddBooking(b)
	f.store.AddBattery(model.Battery{ID: "BIN002", StationID: "101", Type: "LFP", Status: model.BatteryInUse, Active: true})
	f.store.AddBattery(model.Battery{ID: "BOUT002", StationID: "101", Type: "LFP", Status: model.BatteryAvailable, Active: true})
	f.store.AddSlot(model.DockSlot{ID: "A-2", DockName: "A", StationID: "101", Number: 2, Status: model.SlotOccupied, BatteryID: "BOUT002", Active: true})
	f.store.AddSlot(model.DockSlot{ID: "B-2", DockName: "B", StationID: "101", Number: 2, Status: model.SlotEmpty, Active: true})

	res, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "bk1", BatteryInIDs: []string{"BIN001", "BIN002"}, StaffUserID: "staff1",
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Units allocate in order: the first unit takes A-1, the second A-2.
	if res.BatteryInID != "BIN002" || res.BatteryOutID != "BOUT002" {
		t.Fatalf("last result = %+v", res)
	}
	if got := f.booking(t, "bk1").Status; got != model.BookingCompleted {
		t.Errorf("booking status = %s", got)
	}
	for _, id := range []string{"BOUT001", "BOUT002"} {
		if got := f.battery(t, id).Status; got != model.BatteryInUse {
			t.Errorf("battery %s = %s, want IN_USE", id, got)
		}
	}
	if f.sink.committed != 2 {
		t.Errorf("committed metric = %d, want 2", f.sink.committed)
	}
}

func TestCommitSwap_MidLoopFailureKeepsEarlierUnits(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, "bk1")
	b.BatteryCount = 2
	f.store.AddBooking(b)
	// Second incoming unit does not exist; first unit should still commit.
	_, err := f.engine.CommitSwap(context.Background(), Request{
		BookingID: "bk1", BatteryInIDs: []string{"BIN001", "ghost"}, StaffUserID: "staff1",
	})
	if !IsNotFound(err) {
		t.Fatalf("expected NotFound got %v", err)
	}
	if got := f.battery(t, "BIN001").Status; got != model.BatteryAvailable {
		t.Errorf("first unit should be committed, incoming battery = %s", got)
	}
	if got := f.booking(t, "bk1").Status; got != model.BookingPendingSwapping {
		t.Errorf("booking must not complete after failure, got %s", got)
	}
}

func TestNewEngine_NilStore(t *testing.T) {
	if _, err := NewEngine(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}
