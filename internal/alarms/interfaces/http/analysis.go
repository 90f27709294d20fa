package http

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	alarmapp "alarm-dashboard/internal/alarms/application"
)

const (
	timeLayout            = time.RFC3339
	defaultAnalysisPeriod = 30 * 24 * time.Hour
)

// AnalysisHandler serves the status distribution and Pareto chart data.
type AnalysisHandler struct {
	service *alarmapp.Service
	logger  *zap.SugaredLogger
}

// NewAnalysisHandler constructs an analysis handler.
func NewAnalysisHandler(service *alarmapp.Service, logger *zap.SugaredLogger) (*AnalysisHandler, error) {
	if service == nil {
		return nil, errors.New("analysis handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AnalysisHandler{service: service, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/analysis?from=&to=.
func (h *AnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	to, err := parseTimeQuery(r, "to", h.service.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	from, err := parseTimeQuery(r, "from", to.Add(-defaultAnalysisPeriod))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}
	analysis, err := h.service.Analysis(r.Context(), from, to)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func parseTimeQuery(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback.UTC(), nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
