package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/sink"
	"github.com/Haru65/subtronic-backend/internal/store"
	"github.com/Haru65/subtronic-backend/internal/timeseries"
)

const devicesPrefix = "/api/v1/devices"

// DeviceHandler serves the read-only device surface plus alert
// acknowledgment: all of it passes through the device store (and, for
// acknowledgments, into the alarm log sink).
type DeviceHandler struct {
	store     *store.DeviceStore
	alarmSink *sink.AlarmLogSink
	history   *timeseries.InfluxWriter
	logger    *zap.Logger
}

func NewDeviceHandler(deviceStore *store.DeviceStore, alarmSink *sink.AlarmLogSink, history *timeseries.InfluxWriter, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		store:     deviceStore,
		alarmSink: alarmSink,
		history:   history,
		logger:    logger,
	}
}

// ServeHTTP dispatches:
//
//	GET  /api/v1/devices
//	GET  /api/v1/devices/{serial}
//	GET  /api/v1/devices/{serial}/alerts
//	GET  /api/v1/devices/{serial}/history
//	POST /api/v1/devices/{serial}/alerts/{id}/acknowledge
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == devicesPrefix && r.Method == http.MethodGet:
		h.ListDevices(w, r)
	case strings.HasSuffix(path, "/acknowledge") && r.Method == http.MethodPost:
		h.AcknowledgeAlert(w, r)
	case strings.HasSuffix(path, "/alerts") && r.Method == http.MethodGet:
		h.GetDeviceAlerts(w, r)
	case strings.HasSuffix(path, "/history") && r.Method == http.MethodGet:
		h.GetDeviceHistory(w, r)
	case strings.HasPrefix(path, devicesPrefix+"/") && r.Method == http.MethodGet:
		h.GetDevice(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListDevices returns the current record of every known device.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.store.List()))
}

// GetDevice returns the latest record for one serial number.
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	serial := strings.TrimPrefix(r.URL.Path, devicesPrefix+"/")
	if serial == "" || strings.Contains(serial, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	data, ok := h.store.Get(serial)
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("device not found: "+serial))
		return
	}
	writeJSON(w, http.StatusOK, Ok(data))
}

// GetDeviceAlerts returns the in-memory alert history for one device.
func (h *DeviceHandler) GetDeviceAlerts(w http.ResponseWriter, r *http.Request) {
	serial := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, devicesPrefix+"/"), "/alerts")
	if serial == "" || strings.Contains(serial, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.store.GetAlerts(serial)))
}

// GetDeviceHistory serves the time-series reading history when the history
// store is configured.
func (h *DeviceHandler) GetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotImplemented, Fail("reading history is not enabled"))
		return
	}

	serial := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, devicesPrefix+"/"), "/history")
	if serial == "" || strings.Contains(serial, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)
	if t, ok := parseTime(r.URL.Query().Get("start_date")); !ok {
		writeJSON(w, http.StatusBadRequest, Fail("invalid start_date"))
		return
	} else if t != nil {
		start = *t
	}
	if t, ok := parseTime(r.URL.Query().Get("end_date")); !ok {
		writeJSON(w, http.StatusBadRequest, Fail("invalid end_date"))
		return
	} else if t != nil {
		end = *t
	}

	points, err := h.history.QueryRange(r.Context(), serial, start, end)
	if err != nil {
		h.logger.Error("Reading history query failed", zap.String("serial_number", serial), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query reading history"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(points))
}

type acknowledgeRequest struct {
	User string `json:"user"`
}

// AcknowledgeAlert marks one alert acknowledged in the live store and
// mirrors the change into the alarm log.
func (h *DeviceHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	// /api/v1/devices/{serial}/alerts/{id}/acknowledge
	trimmed := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, devicesPrefix+"/"), "/acknowledge")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 || parts[1] != "alerts" || parts[0] == "" || parts[2] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	serial, alertID := parts[0], parts[2]

	var req acknowledgeRequest
	if err := readBodyJSON(r, 4096, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.User == "" {
		req.User = "system"
	}

	if err := h.store.Acknowledge(serial, alertID, req.User); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("alert not found: "+alertID))
			return
		}
		h.logger.Error("Failed to acknowledge alert",
			zap.String("serial_number", serial),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to acknowledge alert"))
		return
	}

	h.alarmSink.MarkAcknowledged(r.Context(), alertID, req.User, time.Now().UTC())

	writeJSON(w, http.StatusOK, Ok(map[string]string{
		"alert_id":        alertID,
		"acknowledged_by": req.User,
	}))
}
