package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/models"
	"github.com/Haru65/subtronic-backend/internal/repository"
	"github.com/Haru65/subtronic-backend/internal/sink"
	"github.com/Haru65/subtronic-backend/internal/store"
)

func deviceFixture(t *testing.T) (*DeviceHandler, *store.DeviceStore, *repository.MemoryAlarmLog) {
	t.Helper()
	logger := zap.NewNop()
	deviceStore := store.NewDeviceStore(nil, logger)
	memLog := repository.NewMemoryAlarmLog(0)
	alarmSink := sink.NewAlarmLogSink(nil, memLog, logger)
	return NewDeviceHandler(deviceStore, alarmSink, nil, logger), deviceStore, memLog
}

func decodeResult[T any](t *testing.T, rec *httptest.ResponseRecorder) Result[T] {
	t.Helper()
	var res Result[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestListDevices(t *testing.T) {
	h, deviceStore, _ := deviceFixture(t)
	deviceStore.Put("OTSM-1", &models.DeviceData{SerialNumber: "OTSM-1"})
	deviceStore.Put("OTSM-2", &models.DeviceData{SerialNumber: "OTSM-2"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult[[]models.DeviceData](t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
	assert.Len(t, res.Result, 2)
}

func TestGetDevice(t *testing.T) {
	h, deviceStore, _ := deviceFixture(t)
	deviceStore.Put("OTSM-1", &models.DeviceData{SerialNumber: "OTSM-1", SensorReading: 42})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/OTSM-1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult[models.DeviceData](t, rec)
	assert.Equal(t, 42.0, res.Result.SensorReading)
}

func TestGetDevice_NotFound(t *testing.T) {
	h, _, _ := deviceFixture(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	res := decodeResult[any](t, rec)
	assert.Equal(t, ResultError, res.Code)
}

func TestGetDeviceAlerts(t *testing.T) {
	h, deviceStore, _ := deviceFixture(t)
	deviceStore.AppendAlerts("OTSM-1", []models.Alert{
		{ID: "a1", Type: models.AlertTypeAlarmLevel1, Severity: models.SeverityWarning},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/OTSM-1/alerts", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult[[]models.Alert](t, rec)
	require.Len(t, res.Result, 1)
	assert.Equal(t, "a1", res.Result[0].ID)
}

func TestGetDeviceHistory_NotEnabled(t *testing.T) {
	h, _, _ := deviceFixture(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/OTSM-1/history", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestAcknowledgeAlert(t *testing.T) {
	h, deviceStore, memLog := deviceFixture(t)
	deviceStore.AppendAlerts("OTSM-1", []models.Alert{
		{ID: "a1", Type: models.AlertTypeAlarmLevel3, Severity: models.SeverityCritical},
	})
	memLog.Append(models.AlarmLogEntry{ID: "a1", DeviceID: "OTSM-1", Timestamp: time.Now().UTC()})

	body := strings.NewReader(`{"user": "operator"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/devices/OTSM-1/alerts/a1/acknowledge", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult[map[string]string](t, rec)
	assert.Equal(t, "operator", res.Result["acknowledged_by"])

	alerts := deviceStore.GetAlerts("OTSM-1")
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Acknowledged)
	assert.Equal(t, "operator", alerts[0].AcknowledgedBy)

	// The durable log entry is updated as well.
	entries := memLog.Query(models.AlarmLogFilters{DeviceID: "OTSM-1"})
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Acknowledged)
}

func TestAcknowledgeAlert_DefaultsUser(t *testing.T) {
	h, deviceStore, _ := deviceFixture(t)
	deviceStore.AppendAlerts("OTSM-1", []models.Alert{{ID: "a1"}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/devices/OTSM-1/alerts/a1/acknowledge", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	alerts := deviceStore.GetAlerts("OTSM-1")
	require.Len(t, alerts, 1)
	assert.Equal(t, "system", alerts[0].AcknowledgedBy)
}

func TestAcknowledgeAlert_UnknownID(t *testing.T) {
	h, deviceStore, _ := deviceFixture(t)
	deviceStore.AppendAlerts("OTSM-1", []models.Alert{{ID: "a1"}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/devices/OTSM-1/alerts/unknown/acknowledge", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	res := decodeResult[any](t, rec)
	assert.Equal(t, ResultError, res.Code)
}

func TestAcknowledgeAlert_WrongDevice(t *testing.T) {
	h, deviceStore, _ := deviceFixture(t)
	deviceStore.AppendAlerts("OTSM-1", []models.Alert{{ID: "a1"}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/devices/OTSM-2/alerts/a1/acknowledge", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeviceHandler_UnknownRoute(t *testing.T) {
	h, _, _ := deviceFixture(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/devices/OTSM-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
