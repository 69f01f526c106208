package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSONInfo(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleRides(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rides := registry.Rides()
		sort.Strings(rides)
		writeJSONInfo(w, http.StatusOK, map[string]any{"rides": rides})
	}
}

func handleRideState(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rideID := chi.URLParam(r, "rideID")
		src, ok := registry.Get(rideID)
		if !ok {
			writeJSONError(r.Context(), w, http.StatusNotFound, "ride not open on this device")
			return
		}
		writeJSONInfo(w, http.StatusOK, src.Snapshot())
	}
}

func writeJSONError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeJSONInfo(w, status, map[string]any{
		"error":      message,
		"code":       status,
		"request_id": middleware.GetReqID(ctx),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSONInfo(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
