// Package events defines the payloads published to realtime subscribers.
package events

import "time"

// SwapCompletedEvent is published to the station and admin topics after one
// battery unit has been exchanged and persisted.
type SwapCompletedEvent struct {
	SwapID       string    `json:"swap_id"`
	BookingID    string    `json:"booking_id"`
	StationID    string    `json:"station_id"`
	BatteryInID  string    `json:"battery_in_id"`
	BatteryOutID string    `json:"battery_out_id"`
	StaffUserID  string    `json:"staff_user_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// SwapCancelledEvent is published when a swap is cancelled. PartialRevert is
// set when a PERMANENT cancel could not fully reconstruct inventory state.
type SwapCancelledEvent struct {
	SwapID        string    `json:"swap_id"`
	BookingID     string    `json:"booking_id"`
	StationID     string    `json:"station_id"`
	Kind          string    `json:"kind"`
	PartialRevert bool      `json:"partial_revert,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// BookingCompletedEvent is published once every unit of a booking has been
// swapped and the booking reached its terminal success state.
type BookingCompletedEvent struct {
	BookingID string    `json:"booking_id"`
	StationID string    `json:"station_id"`
	Units     int       `json:"units"`
	Timestamp time.Time `json:"timestamp"`
}
