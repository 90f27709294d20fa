package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger checks a dependency.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	db      Pinger
	timeout time.Duration
}

// NewHealthHandler constructs a HealthHandler. A nil pinger reports ok.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// ServeHTTP handles GET /healthz.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if h.db == nil {
		resp.Database = "memory"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
