package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	alarmapp "alarm-dashboard/internal/alarms/application"
	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/audit"
	"alarm-dashboard/internal/auth"
)

const maxBodyBytes = 4 << 10

// Handler provides alarm HTTP endpoints.
type Handler struct {
	service   *alarmapp.Service
	dashboard *alarmapp.Dashboard
	logger    *zap.SugaredLogger
}

// NewHandler constructs a handler.
func NewHandler(service *alarmapp.Service, dashboard *alarmapp.Dashboard, logger *zap.SugaredLogger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alarms handler: nil service")
	}
	if dashboard == nil {
		return nil, errors.New("alarms handler: nil dashboard")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{service: service, dashboard: dashboard, logger: logger}, nil
}

// ServeHTTP handles /api/v1/alarms and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alarms":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/alarms/"):
		h.handleAlarm(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	window, err := alarms.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.service.ListOpen(r.Context(), window)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleAlarm(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/alarms/")
	parts := strings.Split(path, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid alarm id", http.StatusBadRequest)
		return
	}

	switch len(parts) {
	case 1:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		alarm, err := h.service.Get(r.Context(), id)
		if err != nil {
			h.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alarm)
	case 2:
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var status alarms.Status
		switch parts[1] {
		case "accept":
			status = alarms.StatusAccepted
		case "dismiss":
			status = alarms.StatusDismissed
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.handleTransition(w, r, id, status)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type transitionBody struct {
	OperatorID string `json:"operator_id"`
}

type transitionResponse struct {
	alarmapp.TransitionResult
	Message string `json:"message"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, id int64, status alarms.Status) {
	var body transitionBody
	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "read body failed", http.StatusBadRequest)
			return
		}
		if len(strings.TrimSpace(string(data))) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				http.Error(w, "invalid json body", http.StatusBadRequest)
				return
			}
		}
	}
	if strings.TrimSpace(body.OperatorID) == "" {
		body.OperatorID = auth.OperatorIDFromContext(r.Context())
	}

	ctx := audit.WithClient(r.Context(), audit.ClientFromRequest(r))
	result, err := h.dashboard.Transition(ctx, alarms.TransitionRequest{
		AlarmID:    id,
		Status:     status,
		OperatorID: body.OperatorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := transitionResponse{TransitionResult: result}
	code := http.StatusOK
	switch result.Outcome {
	case alarmapp.OutcomeApplied:
		resp.Message = "alarm " + strings.ToLower(string(status))
	case alarmapp.OutcomeAlreadyResolved:
		resp.Message = "no changes made: alarm already resolved"
		code = http.StatusConflict
	case alarmapp.OutcomeNotFound:
		resp.Message = "no changes made: alarm not found"
		code = http.StatusNotFound
	}
	writeJSON(w, code, resp)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	respondError(w, h.logger, err)
}

func respondError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	switch {
	case errors.Is(err, alarms.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, alarms.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, alarms.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, alarms.ErrStoreUnavailable):
		logger.Warnw("alarm store unavailable", "error", err)
		http.Error(w, "alarm store unavailable", http.StatusServiceUnavailable)
	default:
		logger.Errorw("alarm request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
