// Package stations exposes a read-only inventory view of a station.
package stations

import (
	"encoding/json"
	"net/http"

	"github.com/evswap/stationd/core/model"
	"github.com/evswap/stationd/core/store"
)

// SlotView is one dock slot in the inventory response.
type SlotView struct {
	ID        string `json:"id"`
	DockName  string `json:"dock_name"`
	Number    int    `json:"number"`
	Status    string `json:"status"`
	BatteryID string `json:"battery_id,omitempty"`
	Active    bool   `json:"active"`
}

// Inventory is the station inventory read model: the slot map plus the count
// of handout-ready batteries per type.
type Inventory struct {
	StationID string         `json:"station_id"`
	Slots     []SlotView     `json:"slots"`
	Available map[string]int `json:"available_by_type"`
}

// NewInventoryHandler returns an HTTP handler exposing station inventory via
// GET /api/stations/inventory?station_id=...
func NewInventoryHandler(st store.Runner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		stationID := r.URL.Query().Get("station_id")
		if stationID == "" {
			http.Error(w, "station_id is required", http.StatusBadRequest)
			return
		}
		inv := Inventory{StationID: stationID, Available: map[string]int{}}
		err := st.WithTransaction(r.Context(), func(s store.Stores) error {
			slots, err := s.Slots().ListByStation(r.Context(), stationID)
			if err != nil {
				return err
			}
			for _, sl := range slots {
				inv.Slots = append(inv.Slots, SlotView{
					ID:        sl.ID,
					DockName:  sl.DockName,
					Number:    sl.Number,
					Status:    string(sl.Status),
					BatteryID: sl.BatteryID,
					Active:    sl.Active,
				})
			}
			batteries, err := s.Batteries().ListByStation(r.Context(), stationID)
			if err != nil {
				return err
			}
			for _, b := range batteries {
				if b.Active && b.Status == model.BatteryAvailable {
					inv.Available[b.Type]++
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(inv); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
