package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/models"
	"github.com/Haru65/subtronic-backend/internal/repository"
	"github.com/Haru65/subtronic-backend/internal/sink"
)

func alarmLogFixture(t *testing.T) (*AlarmLogHandler, *repository.MemoryAlarmLog) {
	t.Helper()
	logger := zap.NewNop()
	memLog := repository.NewMemoryAlarmLog(0)
	return NewAlarmLogHandler(sink.NewAlarmLogSink(nil, memLog, logger), logger), memLog
}

func logEntry(id, deviceID, severity string, ts time.Time) models.AlarmLogEntry {
	return models.AlarmLogEntry{
		ID:        id,
		DeviceID:  deviceID,
		AlarmType: models.AlertTypeAlarmLevel1,
		Severity:  severity,
		Timestamp: ts,
	}
}

func TestListAlarmLogs(t *testing.T) {
	h, memLog := alarmLogFixture(t)
	now := time.Now().UTC()
	memLog.Append(logEntry("a", "OTSM-1", "warning", now.Add(-time.Hour)))
	memLog.Append(logEntry("b", "OTSM-2", "critical", now))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alarm-logs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult[[]models.AlarmLogEntry](t, rec)
	require.Len(t, res.Result, 2)
	assert.Equal(t, "b", res.Result[0].ID)
}

func TestListAlarmLogs_Filtered(t *testing.T) {
	h, memLog := alarmLogFixture(t)
	now := time.Now().UTC()
	memLog.Append(logEntry("a", "OTSM-1", "warning", now))
	memLog.Append(logEntry("b", "OTSM-2", "critical", now))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alarm-logs?device_id=OTSM-2&severity=critical", nil))

	res := decodeResult[[]models.AlarmLogEntry](t, rec)
	require.Len(t, res.Result, 1)
	assert.Equal(t, "b", res.Result[0].ID)
}

func TestListAlarmLogs_EmptyIsArrayNotNull(t *testing.T) {
	h, _ := alarmLogFixture(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alarm-logs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result":[]`)
}

func TestListAlarmLogs_InvalidDate(t *testing.T) {
	h, _ := alarmLogFixture(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alarm-logs?start_date=yesterday", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := decodeResult[any](t, rec)
	assert.Equal(t, ResultError, res.Code)
}

func TestGetAlarmLogStats(t *testing.T) {
	h, memLog := alarmLogFixture(t)
	now := time.Now().UTC()
	memLog.Append(logEntry("a", "OTSM-1", "warning", now))
	memLog.Append(logEntry("b", "OTSM-1", "critical", now))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alarm-logs/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult[models.AlarmLogStats](t, rec)
	assert.Equal(t, 2, res.Result.Total)
	assert.Equal(t, 1, res.Result.BySeverity["critical"])
	assert.Equal(t, 2, res.Result.ByDevice["OTSM-1"])
}

func TestExportAlarmLogs_Headers(t *testing.T) {
	h, memLog := alarmLogFixture(t)
	memLog.Append(logEntry("a", "OTSM-1", "warning", time.Now().UTC()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alarm-logs/export", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"),
	)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "alarm-logs-")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestAlarmLogHandler_MethodNotAllowed(t *testing.T) {
	h, _ := alarmLogFixture(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alarm-logs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
