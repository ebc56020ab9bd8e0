// Package swaps exposes the swap engine over HTTP.
package swaps

import (
	"encoding/json"
	"net/http"

	"github.com/evswap/stationd/core/logger"
	"github.com/evswap/stationd/core/model"
	"github.com/evswap/stationd/core/swap"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps the engine's error taxonomy onto HTTP status codes:
// NotFound 404, InvalidArgument 400, Conflict 409, anything else 500.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case swap.IsNotFound(err):
		status = http.StatusNotFound
	case swap.IsInvalidArgument(err):
		status = http.StatusBadRequest
	case swap.IsConflict(err):
		status = http.StatusConflict
	default:
		log.Errorf("swap api: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Reason: string(swap.ReasonOf(err))})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// NewCommitHandler returns an HTTP handler committing bookings into swaps via
// POST /api/swaps/commit.
func NewCommitHandler(engine *swap.Engine, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req swap.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		res, err := engine.CommitSwap(r.Context(), req)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, res)
	})
}

type cancelRequest struct {
	SwapID string `json:"swap_id"`
	Kind   string `json:"kind"`
}

// NewCancelHandler returns an HTTP handler cancelling swaps via
// POST /api/swaps/cancel.
func NewCancelHandler(engine *swap.Engine, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req cancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		res, err := engine.CancelSwap(r.Context(), req.SwapID, model.CancelKind(req.Kind))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, res)
	})
}
