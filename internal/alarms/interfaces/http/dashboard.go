package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	alarmapp "alarm-dashboard/internal/alarms/application"
)

// DashboardHandler serves the dashboard snapshot.
type DashboardHandler struct {
	dashboard *alarmapp.Dashboard
	logger    *zap.SugaredLogger
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(dashboard *alarmapp.Dashboard, logger *zap.SugaredLogger) (*DashboardHandler, error) {
	if dashboard == nil {
		return nil, errors.New("dashboard handler: nil dashboard")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DashboardHandler{dashboard: dashboard, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/dashboard. refresh=1 forces a reread and
// reports a failed reread as 503 with the stale snapshot in the body.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snapshot := h.dashboard.Snapshot()
	if r.URL.Query().Get("refresh") == "1" || !snapshot.Ready() {
		refreshed, err := h.dashboard.Refresh(r.Context())
		if err != nil {
			h.logger.Warnw("dashboard refresh on request failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, refreshed)
			return
		}
		snapshot = refreshed
	}
	writeJSON(w, http.StatusOK, snapshot)
}
