package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/models"
)

func testRecord(reading float64) *models.DeviceData {
	return &models.DeviceData{
		DeviceName:    "Test Device",
		SerialNumber:  "OTSM-0001",
		Unit:          "ppm",
		SensorReading: reading,
		Offset:        reading,
		A1Level:       250,
		A2Level:       500,
		A3Level:       1000,
	}
}

func TestEvaluate_NoAlerts(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	alerts := e.Evaluate(testRecord(100))
	assert.Empty(t, alerts)
}

func TestEvaluate_CascadeEmitsOnlyHighestLevel(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	alerts := e.Evaluate(testRecord(1000))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeAlarmLevel3, alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	require.NotNil(t, alerts[0].Threshold)
	assert.Equal(t, 1000.0, *alerts[0].Threshold)
	require.NotNil(t, alerts[0].CurrentValue)
	assert.Equal(t, 1000.0, *alerts[0].CurrentValue)
}

func TestEvaluate_CascadeBoundaries(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	cases := []struct {
		reading  float64
		expected string
	}{
		{999.99, models.AlertTypeAlarmLevel2},
		{500, models.AlertTypeAlarmLevel2},
		{499.99, models.AlertTypeAlarmLevel1},
		{250, models.AlertTypeAlarmLevel1},
	}
	for _, tc := range cases {
		alerts := e.Evaluate(testRecord(tc.reading))
		require.Len(t, alerts, 1, "reading %v", tc.reading)
		assert.Equal(t, tc.expected, alerts[0].Type, "reading %v", tc.reading)
	}

	alerts := e.Evaluate(testRecord(249.99))
	assert.Empty(t, alerts)
}

func TestEvaluate_SensorFaultIsOrthogonal(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	record := testRecord(0)
	record.SensorFault = 1

	alerts := e.Evaluate(record)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeSensorFault, alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Nil(t, alerts[0].Threshold)
}

func TestEvaluate_FaultAndThresholdFireTogether(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	record := testRecord(600)
	record.SensorFault = 1

	alerts := e.Evaluate(record)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertTypeSensorFault, alerts[0].Type)
	assert.Equal(t, models.AlertTypeAlarmLevel2, alerts[1].Type)
}

func TestEvaluate_AlertIDsUnique(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		alerts := e.Evaluate(testRecord(1200))
		require.Len(t, alerts, 1)
		assert.False(t, seen[alerts[0].ID], "duplicate alert id %s", alerts[0].ID)
		seen[alerts[0].ID] = true
	}
}

func TestEvaluate_CarriesDeviceIdentity(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	record := testRecord(300)
	record.GasType = "CO"

	alerts := e.Evaluate(record)
	require.Len(t, alerts, 1)
	assert.Equal(t, "OTSM-0001", alerts[0].SerialNumber)
	assert.Equal(t, "Test Device", alerts[0].DeviceName)
	assert.Equal(t, "ppm", alerts[0].Unit)
	assert.Equal(t, "CO", alerts[0].GasType)
	assert.False(t, alerts[0].Acknowledged)
}
