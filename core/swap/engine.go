// Package swap implements the swap orchestration engine: committing a
// booking into physical battery exchanges, allocating and releasing dock
// slots and battery records, and reversing a swap on cancellation.
package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evswap/stationd/core/events"
	"github.com/evswap/stationd/core/logger"
	"github.com/evswap/stationd/core/model"
	"github.com/evswap/stationd/core/notifier"
	"github.com/evswap/stationd/core/store"
	"github.com/evswap/stationd/metrics"
)

// Request asks the engine to commit a booking into physical swaps, one
// incoming battery per unit being exchanged.
type Request struct {
	BookingID    string   `json:"booking_id"`
	BatteryInIDs []string `json:"battery_in_ids"`
	StaffUserID  string   `json:"staff_user_id"`
}

// Result reports one completed unit exchange.
type Result struct {
	Status       model.SwapStatus `json:"status"`
	SwapID       string           `json:"swap_id"`
	BatteryInID  string           `json:"battery_in_id"`
	BatteryOutID string           `json:"battery_out_id"`
}

// CancelResult reports the terminal status a cancellation left the swap in.
type CancelResult struct {
	Status model.SwapStatus `json:"status"`
}

// Engine drives the compound booking -> swap -> battery x2 -> slot x2
// transition. Every mutation runs inside a store transaction; the engine
// itself holds no inventory state.
type Engine struct {
	store store.Runner
	notif notifier.Notifier
	sink  metrics.SwapSink
	log   logger.Logger
}

// NewEngine creates an engine bound to the given store. Notifier, sink and
// logger may be nil, in which case no-op implementations are used.
func NewEngine(st store.Runner, n notifier.Notifier, sink metrics.SwapSink, log logger.Logger) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("swap: nil store provided to NewEngine")
	}
	if n == nil {
		n = notifier.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Engine{store: st, notif: n, sink: sink, log: log}, nil
}

// CommitSwap finalizes a booking into physical exchanges. It validates the
// booking, the staff assignment and the station inventory up front, then runs
// HandleSingleSwap once per incoming battery so each unit commits in its own
// transaction. Units are not atomic across each other: a mid-loop failure
// leaves already-exchanged units committed, since those correspond to
// physically completed handovers. On success the booking is marked COMPLETED
// and the last unit's result is returned.
func (e *Engine) CommitSwap(ctx context.Context, req Request) (Result, error) {
	var booking model.Booking
	err := e.store.WithTransaction(ctx, func(s store.Stores) error {
		b, err := s.Bookings().Get(ctx, req.BookingID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Entity: "booking", ID: req.BookingID}
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(req.StaffUserID) == "" {
			return &InvalidArgumentError{Field: "staffUserId", Reason: "required"}
		}
		if len(req.BatteryInIDs) == 0 {
			return &InvalidArgumentError{Field: "batteryInIds", Reason: "at least one battery required"}
		}
		if !b.Swappable() {
			return &ConflictError{Reason: ConflictBookingState, Detail: fmt.Sprintf("booking %s is %s", b.ID, b.Status)}
		}
		assigned, err := s.Staff().IsAssigned(ctx, b.StationID, req.StaffUserID)
		if err != nil {
			return err
		}
		if !assigned {
			return &ConflictError{Reason: ConflictStaffNotAssigned, Detail: fmt.Sprintf("user %s is not assigned to station %s", req.StaffUserID, b.StationID)}
		}
		avail, err := s.Batteries().CountAvailable(ctx, b.StationID, b.BatteryType)
		if err != nil {
			return err
		}
		if avail == 0 {
			return &ConflictError{Reason: ConflictNoInventory, Detail: fmt.Sprintf("no %s batteries available at station %s", b.BatteryType, b.StationID)}
		}
		booking = b
		return nil
	})
	if err != nil {
		e.observe(err)
		return Result{}, err
	}

	var last Result
	for _, inID := range req.BatteryInIDs {
		res, err := e.HandleSingleSwap(ctx, booking.ID, inID, req.StaffUserID)
		if err != nil {
			return Result{}, err
		}
		last = res
	}

	err = e.store.WithTransaction(ctx, func(s store.Stores) error {
		b, err := s.Bookings().Get(ctx, booking.ID)
		if err != nil {
			return err
		}
		b.Status = model.BookingCompleted
		b.UpdatedAt = time.Now().UTC()
		return s.Bookings().Save(ctx, b)
	})
	if err != nil {
		return Result{}, fmt.Errorf("complete booking %s: %w", booking.ID, err)
	}
	e.publish(booking.StationID, events.BookingCompletedEvent{
		BookingID: booking.ID,
		StationID: booking.StationID,
		Units:     len(req.BatteryInIDs),
		Timestamp: time.Now().UTC(),
	})
	e.log.Infof("booking %s completed, %d unit(s) swapped", booking.ID, len(req.BatteryInIDs))
	return last, nil
}

// HandleSingleSwap exchanges one battery unit for a booking inside its own
// transaction: the incoming (depleted) unit is seated and flipped to
// AVAILABLE, the first charged unit in (dock name, slot number) order is
// handed out and flipped to IN_USE, and a SUCCESS ledger record is written.
// Any precondition failure aborts before any mutation.
func (e *Engine) HandleSingleSwap(ctx context.Context, bookingID, batteryInID, staffUserID string) (Result, error) {
	var (
		res       Result
		stationID string
		batType   string
	)
	err := e.store.WithTransaction(ctx, func(s store.Stores) error {
		booking, err := s.Bookings().Get(ctx, bookingID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Entity: "booking", ID: bookingID}
		}
		if err != nil {
			return err
		}
		in, err := s.Batteries().Get(ctx, batteryInID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Entity: "battery", ID: batteryInID}
		}
		if err != nil {
			return err
		}
		if !in.Swappable() {
			return &ConflictError{Reason: ConflictInactiveBattery, Detail: fmt.Sprintf("battery %s is inactive", in.ID)}
		}
		if in.Type != booking.BatteryType {
			return &ConflictError{Reason: ConflictTypeMismatch, Detail: fmt.Sprintf("battery %s is %s, booking requests %s", in.ID, in.Type, booking.BatteryType)}
		}

		outSlot, err := s.Slots().FirstCharged(ctx, booking.StationID)
		if errors.Is(err, store.ErrNotFound) {
			return &ConflictError{Reason: ConflictNoChargedBattery, Detail: fmt.Sprintf("no charged battery docked at station %s", booking.StationID)}
		}
		if err != nil {
			return err
		}
		out, err := s.Batteries().Get(ctx, outSlot.BatteryID)
		if err != nil {
			return fmt.Errorf("load outgoing battery %s: %w", outSlot.BatteryID, err)
		}

		// The incoming unit goes back into its own slot when it has one,
		// otherwise into the first empty active slot at the station.
		inSlot, err := s.Slots().ByBattery(ctx, in.ID)
		if errors.Is(err, store.ErrNotFound) {
			inSlot, err = s.Slots().FirstEmpty(ctx, booking.StationID)
			if errors.Is(err, store.ErrNotFound) {
				return &ConflictError{Reason: ConflictNoEmptySlot, Detail: fmt.Sprintf("no empty slot at station %s to receive battery %s", booking.StationID, in.ID)}
			}
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		out.Status = model.BatteryInUse
		out.UpdatedAt = now
		outSlot.Vacate()
		in.Status = model.BatteryAvailable
		in.UpdatedAt = now
		inSlot.Seat(in.ID)

		for _, b := range []model.Battery{out, in} {
			if err := s.Batteries().Save(ctx, b); err != nil {
				return err
			}
		}
		for _, sl := range []model.DockSlot{outSlot, inSlot} {
			if err := s.Slots().Save(ctx, sl); err != nil {
				return err
			}
		}
		sw := model.Swap{
			ID:           uuid.NewString(),
			BookingID:    booking.ID,
			BatteryInID:  in.ID,
			BatteryOutID: out.ID,
			Status:       model.SwapSuccess,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.Swaps().Create(ctx, sw); err != nil {
			return err
		}
		stationID = booking.StationID
		batType = booking.BatteryType
		res = Result{Status: model.SwapSuccess, SwapID: sw.ID, BatteryInID: in.ID, BatteryOutID: out.ID}
		return nil
	})
	if err != nil {
		e.observe(err)
		return Result{}, err
	}
	if serr := e.sink.RecordSwapCommitted(stationID, batType); serr != nil {
		e.log.Errorf("metrics error: %v", serr)
	}
	e.publish(stationID, events.SwapCompletedEvent{
		SwapID:       res.SwapID,
		BookingID:    bookingID,
		StationID:    stationID,
		BatteryInID:  res.BatteryInID,
		BatteryOutID: res.BatteryOutID,
		StaffUserID:  staffUserID,
		Timestamp:    time.Now().UTC(),
	})
	return res, nil
}

// CancelSwap cancels a recorded swap. TEMP only marks the ledger record and
// leaves inventory untouched. PERMANENT reverses inventory: both batteries
// return to their pre-swap status, the incoming unit's slot is vacated, the
// outgoing unit is re-seated into the first empty slot and the booking drops
// back to PENDING_SWAPPING. Reversal is forgiving: records that can no longer
// be resolved are skipped with a partial-revert warning, and the swap is
// still marked CANCELLED.
func (e *Engine) CancelSwap(ctx context.Context, swapID string, kind model.CancelKind) (CancelResult, error) {
	if !kind.Valid() {
		return CancelResult{}, &InvalidArgumentError{Field: "kind", Reason: fmt.Sprintf("must be TEMP or PERMANENT, got %q", kind)}
	}
	target := model.SwapCancelledTemp
	if kind == model.CancelPermanent {
		target = model.SwapCancelled
	}
	var (
		res     CancelResult
		ev      *events.SwapCancelledEvent
		partial bool
		station string
	)
	err := e.store.WithTransaction(ctx, func(s store.Stores) error {
		sw, err := s.Swaps().Get(ctx, swapID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Entity: "swap", ID: swapID}
		}
		if err != nil {
			return err
		}
		if sw.Status.Terminal() {
			if sw.Status == target {
				// Re-applying the same terminal status is a no-op.
				res = CancelResult{Status: sw.Status}
				return nil
			}
			return &ConflictError{Reason: ConflictSwapState, Detail: fmt.Sprintf("swap %s is already %s", sw.ID, sw.Status)}
		}
		now := time.Now().UTC()
		if kind == model.CancelTemp {
			sw.Status = model.SwapCancelledTemp
			sw.UpdatedAt = now
			if err := s.Swaps().Save(ctx, sw); err != nil {
				return err
			}
			res = CancelResult{Status: sw.Status}
			ev = &events.SwapCancelledEvent{SwapID: sw.ID, BookingID: sw.BookingID, Kind: string(kind), Timestamp: now}
			return nil
		}

		booking, berr := s.Bookings().Get(ctx, sw.BookingID)
		if berr != nil && !errors.Is(berr, store.ErrNotFound) {
			return berr
		}
		if errors.Is(berr, store.ErrNotFound) {
			partial = true
			e.log.Warnf("cancel swap %s: booking %s missing, skipping booking revert", sw.ID, sw.BookingID)
		} else {
			station = booking.StationID
		}

		// Incoming unit goes back to the driver: vacate its slot, restore IN_USE.
		if in, ierr := s.Batteries().Get(ctx, sw.BatteryInID); ierr == nil {
			if slot, serr := s.Slots().ByBattery(ctx, in.ID); serr == nil {
				slot.Vacate()
				if err := s.Slots().Save(ctx, slot); err != nil {
					return err
				}
			} else if !errors.Is(serr, store.ErrNotFound) {
				return serr
			}
			in.Status = model.BatteryInUse
			in.UpdatedAt = now
			if err := s.Batteries().Save(ctx, in); err != nil {
				return err
			}
		} else if errors.Is(ierr, store.ErrNotFound) {
			partial = true
			e.log.Warnf("cancel swap %s: incoming battery %s missing, treating as already reverted", sw.ID, sw.BatteryInID)
		} else {
			return ierr
		}

		// Outgoing unit returns to the station: restore AVAILABLE and re-seat.
		if out, oerr := s.Batteries().Get(ctx, sw.BatteryOutID); oerr == nil {
			out.Status = model.BatteryAvailable
			out.UpdatedAt = now
			if err := s.Batteries().Save(ctx, out); err != nil {
				return err
			}
			if station == "" {
				partial = true
			} else if slot, serr := s.Slots().FirstEmpty(ctx, station); serr == nil {
				slot.Seat(out.ID)
				if err := s.Slots().Save(ctx, slot); err != nil {
					return err
				}
			} else if errors.Is(serr, store.ErrNotFound) {
				partial = true
				e.log.Warnf("cancel swap %s: no empty slot at station %s to re-seat battery %s", sw.ID, station, out.ID)
			} else {
				return serr
			}
		} else if errors.Is(oerr, store.ErrNotFound) {
			partial = true
			e.log.Warnf("cancel swap %s: outgoing battery %s missing, treating as already reverted", sw.ID, sw.BatteryOutID)
		} else {
			return oerr
		}

		if berr == nil {
			booking.Status = model.BookingPendingSwapping
			booking.UpdatedAt = now
			if err := s.Bookings().Save(ctx, booking); err != nil {
				return err
			}
		}
		sw.Status = model.SwapCancelled
		sw.UpdatedAt = now
		if err := s.Swaps().Save(ctx, sw); err != nil {
			return err
		}
		res = CancelResult{Status: sw.Status}
		ev = &events.SwapCancelledEvent{
			SwapID:        sw.ID,
			BookingID:     sw.BookingID,
			StationID:     station,
			Kind:          string(kind),
			PartialRevert: partial,
			Timestamp:     now,
		}
		return nil
	})
	if err != nil {
		e.observe(err)
		return CancelResult{}, err
	}
	if ev != nil {
		if serr := e.sink.RecordCancellation(string(kind), partial); serr != nil {
			e.log.Errorf("metrics error: %v", serr)
		}
		e.publish(ev.StationID, *ev)
	}
	return res, nil
}

// observe counts conflicts in the sink. Other error classes are left to the
// caller to report.
func (e *Engine) observe(err error) {
	if reason := ReasonOf(err); reason != "" {
		if serr := e.sink.RecordConflict(string(reason)); serr != nil {
			e.log.Errorf("metrics error: %v", serr)
		}
	}
}

// publish broadcasts to the station topic (when known) and the admin topic.
// Failures are logged and never propagate into the swap transition.
func (e *Engine) publish(stationID string, ev any) {
	topics := []string{notifier.AdminTopic}
	if stationID != "" {
		topics = append(topics, notifier.StationTopic(stationID))
	}
	for _, topic := range topics {
		if err := e.notif.Publish(topic, ev); err != nil {
			e.log.Warnf("notify %s: %v", topic, err)
		}
	}
}
