package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haru65/subtronic-backend/internal/models"
)

func TestNormalize_ReadingFieldVariants(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]interface{}
	}{
		{
			name: "live sensor readings with trailing space",
			payload: map[string]interface{}{
				"Parameters": map[string]interface{}{"Live Sensor Readings ": 42.5},
			},
		},
		{
			name: "live sensor readings without trailing space",
			payload: map[string]interface{}{
				"Parameters": map[string]interface{}{"Live Sensor Readings": 42.5},
			},
		},
		{
			name:    "top-level sensor reading",
			payload: map[string]interface{}{"Sensor Reading": 42.5},
		},
		{
			name:    "top-level offset",
			payload: map[string]interface{}{"Offset": 42.5},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := NormalizeMap(tc.payload)
			assert.Equal(t, 42.5, data.SensorReading)
			assert.Equal(t, 42.5, data.Offset)
		})
	}
}

func TestNormalize_ReadingPriority(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{
		"Parameters": map[string]interface{}{"Live Sensor Readings ": 100.0},
		"Offset":     7.0,
	})
	assert.Equal(t, 100.0, data.SensorReading)
	assert.Equal(t, 100.0, data.Offset)
}

func TestNormalize_ReadingAbsentDefaultsToZero(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{})
	assert.Equal(t, 0.0, data.SensorReading)
	assert.Equal(t, 0.0, data.Offset)
}

func TestNormalize_DeviceNameVariants(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{"Device Alias Name": "Boiler Room"})
	assert.Equal(t, "Boiler Room", data.DeviceName)

	// Misspelled historical variant still emitted by old firmware.
	data = NormalizeMap(map[string]interface{}{"Device Alise Name": "Boiler Room"})
	assert.Equal(t, "Boiler Room", data.DeviceName)

	data = NormalizeMap(map[string]interface{}{})
	assert.Equal(t, "Unknown", data.DeviceName)
}

func TestNormalize_SerialNumberDefault(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{"OTSM-2 Serial Number": "OTSM-0042"})
	assert.Equal(t, "OTSM-0042", data.SerialNumber)

	data = NormalizeMap(map[string]interface{}{})
	assert.Equal(t, "Unknown", data.SerialNumber)
}

func TestNormalize_UnitCodes(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{
		"Parameters": map[string]interface{}{"Unit of Measurement ": 1.0},
	})
	assert.Equal(t, "ppm", data.Unit)

	// Unrecognized codes still resolve to ppm.
	data = NormalizeMap(map[string]interface{}{
		"Parameters": map[string]interface{}{"Unit of Measurement ": 9.0},
	})
	assert.Equal(t, "ppm", data.Unit)

	// Textual units pass through trimmed.
	data = NormalizeMap(map[string]interface{}{
		"Parameters": map[string]interface{}{"Unit of Measurement ": " mg/m3 "},
	})
	assert.Equal(t, "mg/m3", data.Unit)

	data = NormalizeMap(map[string]interface{}{})
	assert.Equal(t, "ppm", data.Unit)
}

func TestNormalize_LocationPriority(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{
		"lat":  "51.5072",
		"long": "-0.1276",
		"Parameters": map[string]interface{}{
			"lat":  "0.0001",
			"long": "0.0002",
		},
	})
	assert.Equal(t, "51.5072", data.Latitude)
	assert.Equal(t, "-0.1276", data.Longitude)

	// Each axis falls back independently.
	data = NormalizeMap(map[string]interface{}{"lat": "51.5072"})
	assert.Equal(t, "51.5072", data.Latitude)
	assert.Equal(t, "0.00", data.Longitude)
}

func TestNormalize_ThresholdDefaults(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{})
	assert.Equal(t, 250.0, data.A1Level)
	assert.Equal(t, 500.0, data.A2Level)
	assert.Equal(t, 1000.0, data.A3Level)
	assert.Equal(t, 1000, data.SpanHigh)
	assert.Equal(t, 0, data.SpanLow)
}

func TestNormalize_FlagsNonNumericDefaultToZero(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{
		"Parameters": map[string]interface{}{
			"Alarm 1 LED Status": "on",
			"Alarm 2 LED Status": nil,
		},
	})
	assert.Equal(t, 0, data.Alarm1LED)
	assert.Equal(t, 0, data.Alarm2LED)
	assert.Equal(t, 0, data.SensorFault)
}

func TestNormalize_AlarmStatusDerivation(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{})
	assert.Equal(t, models.AlarmStatusNormal, data.AlarmStatus)

	data = NormalizeMap(map[string]interface{}{
		"Parameters": map[string]interface{}{"Alarm 2 LED Status": 1.0},
	})
	assert.Equal(t, models.AlarmStatusAlarm, data.AlarmStatus)

	data = NormalizeMap(map[string]interface{}{
		"Parameters": map[string]interface{}{"Sensor Fault": 1.0},
	})
	assert.Equal(t, models.AlarmStatusAlarm, data.AlarmStatus)

	// Any alarm-status field in the payload itself is ignored.
	data = NormalizeMap(map[string]interface{}{"alarm_status": "ALARM"})
	assert.Equal(t, models.AlarmStatusNormal, data.AlarmStatus)
}

func TestNormalize_TimestampFallback(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{"Date Time At Reading": "2026-08-30 14:00:00"})
	assert.Equal(t, "2026-08-30 14:00:00", data.Timestamp)

	data = NormalizeMap(map[string]interface{}{})
	assert.NotEmpty(t, data.Timestamp)
}

func TestNormalize_RetainsRawMessage(t *testing.T) {
	payload := map[string]interface{}{
		"OTSM-2 Serial Number": "OTSM-0007",
		"mystery_field":        "kept",
	}
	data := NormalizeMap(payload)
	assert.Equal(t, payload, data.RawMessage)
	assert.Equal(t, "good", data.DataQuality)
	assert.NotEmpty(t, data.ProcessedAt)
}

func TestNormalize_Idempotent(t *testing.T) {
	payload := map[string]interface{}{
		"OTSM-2 Serial Number": "OTSM-0114",
		"Device Alias Name":    "Pump House",
		"Parameters": map[string]interface{}{
			"Live Sensor Readings ": 321.5,
			"Alarm Level A1":        200.0,
			"Alarm 1 LED Status":    1.0,
		},
	}

	first := NormalizeMap(payload)
	second := NormalizeMap(payload)

	// Identical except for the ingestion timestamp.
	second.ProcessedAt = first.ProcessedAt
	second.Timestamp = first.Timestamp
	assert.Equal(t, first, second)
}

func TestNormalize_MalformedInput(t *testing.T) {
	_, err := Normalize([]byte("not json at all"))
	require.ErrorIs(t, err, ErrMalformedPayload)

	_, err = Normalize([]byte(`[1, 2, 3]`))
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestNormalize_ValidJSONBytes(t *testing.T) {
	data, err := Normalize([]byte(`{"OTSM-2 Serial Number":"OTSM-0114","Parameters":{"Live Sensor Readings ":1200}}`))
	require.NoError(t, err)
	assert.Equal(t, "OTSM-0114", data.SerialNumber)
	assert.Equal(t, 1200.0, data.SensorReading)
}

func TestNormalize_NumericStrings(t *testing.T) {
	data := NormalizeMap(map[string]interface{}{
		"Parameters": map[string]interface{}{
			"Live Sensor Readings ": "123.4",
			"Alarm Level A2":        "600",
		},
	})
	assert.Equal(t, 123.4, data.SensorReading)
	assert.Equal(t, 600.0, data.A2Level)
}
