// Package handlers holds the service's thin operational HTTP surface.
// The product-facing API lives with the upstream web collaborator; only
// health reporting is exposed here.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// CheckFunc probes one backing dependency.
type CheckFunc func(ctx context.Context) error

// HealthHandler responds with service health information, including the
// reachability of each registered dependency.
type HealthHandler struct {
	Checks map[string]CheckFunc
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	payload := map[string]string{
		"status": "ok",
	}

	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			payload["status"] = "degraded"
			payload[name] = err.Error()
			continue
		}
		payload[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// RegisterRoutes wires the operational handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, health HealthHandler) {
	mux.HandleFunc("/healthz", health.Handle)
}
