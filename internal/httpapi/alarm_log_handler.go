package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/models"
	"github.com/Haru65/subtronic-backend/internal/sink"
)

const maxLogQueryLimit = 1000

// AlarmLogHandler serves the persisted alarm history: filtered queries,
// aggregate statistics and the Excel export.
type AlarmLogHandler struct {
	alarmSink *sink.AlarmLogSink
	logger    *zap.Logger
}

func NewAlarmLogHandler(alarmSink *sink.AlarmLogSink, logger *zap.Logger) *AlarmLogHandler {
	return &AlarmLogHandler{
		alarmSink: alarmSink,
		logger:    logger,
	}
}

// ServeHTTP dispatches:
//
//	GET /api/v1/alarm-logs
//	GET /api/v1/alarm-logs/stats
//	GET /api/v1/alarm-logs/export
func (h *AlarmLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/api/v1/alarm-logs":
		h.ListAlarmLogs(w, r)
	case "/api/v1/alarm-logs/stats":
		h.GetAlarmLogStats(w, r)
	case "/api/v1/alarm-logs/export":
		h.ExportAlarmLogs(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListAlarmLogs returns the filtered alarm log, newest first.
func (h *AlarmLogHandler) ListAlarmLogs(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.parseFilters(w, r)
	if !ok {
		return
	}

	entries, err := h.alarmSink.Query(r.Context(), filters)
	if err != nil {
		h.logger.Error("Alarm log query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query alarm logs"))
		return
	}
	if entries == nil {
		entries = []models.AlarmLogEntry{}
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}

// GetAlarmLogStats returns aggregate counts over the filtered log.
func (h *AlarmLogHandler) GetAlarmLogStats(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.parseFilters(w, r)
	if !ok {
		return
	}

	stats, err := h.alarmSink.Aggregate(r.Context(), filters)
	if err != nil {
		h.logger.Error("Alarm log aggregation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to aggregate alarm logs"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}

// ExportAlarmLogs streams the filtered log as an Excel workbook.
func (h *AlarmLogHandler) ExportAlarmLogs(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.parseFilters(w, r)
	if !ok {
		return
	}

	entries, err := h.alarmSink.Query(r.Context(), filters)
	if err != nil {
		h.logger.Error("Alarm log export query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query alarm logs"))
		return
	}

	book, err := GenerateAlarmLogExport(entries)
	if err != nil {
		h.logger.Error("Alarm log export generation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("alarm-logs-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(book)
}

func (h *AlarmLogHandler) parseFilters(w http.ResponseWriter, r *http.Request) (models.AlarmLogFilters, bool) {
	q := r.URL.Query()

	filters := models.AlarmLogFilters{
		DeviceID:  q.Get("device_id"),
		AlarmType: q.Get("alarm_type"),
		Severity:  q.Get("severity"),
		Limit:     parseInt(q.Get("limit"), 100),
	}
	if filters.Limit > maxLogQueryLimit {
		filters.Limit = maxLogQueryLimit
	}

	start, ok := parseTime(q.Get("start_date"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, Fail("invalid start_date"))
		return filters, false
	}
	filters.StartDate = start

	end, ok := parseTime(q.Get("end_date"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, Fail("invalid end_date"))
		return filters, false
	}
	filters.EndDate = end

	return filters, true
}
