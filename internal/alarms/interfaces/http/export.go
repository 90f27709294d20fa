package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	alarmapp "alarm-dashboard/internal/alarms/application"
	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/alarms/export"
	"alarm-dashboard/internal/observability/metrics"
)

const exportPrefix = "/api/v1/exports/alarms."

// ExportHandler serves open alarm exports.
type ExportHandler struct {
	service  *alarmapp.Service
	location *time.Location
	logger   *zap.SugaredLogger
}

// NewExportHandler constructs an export handler rendering times in loc.
func NewExportHandler(service *alarmapp.Service, loc *time.Location, logger *zap.SugaredLogger) (*ExportHandler, error) {
	if service == nil {
		return nil, errors.New("export handler: nil service")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ExportHandler{service: service, location: loc, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/exports/alarms.{csv,xlsx,pdf}?window=.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.URL.Path, exportPrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	format, err := export.ParseFormat(strings.TrimPrefix(r.URL.Path, exportPrefix))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	window, err := alarms.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	result := metrics.ResultError
	defer func() {
		metrics.ObserveExport(string(format), result, time.Since(start))
	}()

	now := h.service.Now()
	list, err := h.service.ListOpenAt(r.Context(), window, now)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	report := export.Report{Window: window, GeneratedAt: now, Location: h.location, Alarms: list}
	data, err := export.Build(format, report)
	if err != nil {
		h.logger.Errorw("alarm export failed", "format", format, "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	result = metrics.ResultSuccess

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
