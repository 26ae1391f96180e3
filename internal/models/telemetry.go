package models

// DeviceData is the canonical, schema-stable snapshot of one OTSM-2 device's
// latest telemetry. Every downstream component (store, evaluator, hub, REST)
// operates on this shape; raw firmware payloads never leave the normalizer.
type DeviceData struct {
	DeviceName   string `json:"device_name"`
	SerialNumber string `json:"serial_number"`
	GasType      string `json:"gas_type,omitempty"`
	Timestamp    string `json:"timestamp"`
	Unit         string `json:"unit"`

	// SensorReading is the primary measured value. Offset carries the
	// identical value and exists only as a presentation alias for older
	// dashboard consumers; it is set once at normalization and must never
	// be derived separately.
	SensorReading float64 `json:"sensor_reading"`
	Offset        float64 `json:"offset"`

	// AlarmStatus is always derived from the fault/LED flags, never taken
	// from the payload. "NORMAL" or "ALARM".
	AlarmStatus string `json:"alarm_status"`

	A1Level float64 `json:"a1_level"`
	A2Level float64 `json:"a2_level"`
	A3Level float64 `json:"a3_level"`

	Alarm1LED   int `json:"alarm1_led"`
	Alarm2LED   int `json:"alarm2_led"`
	Alarm3LED   int `json:"alarm3_led"`
	SensorFault int `json:"sensor_fault"`

	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`

	// Device-side configuration registers, carried through for consumers.
	SpanHigh     int `json:"span_high"`
	SpanLow      int `json:"span_low"`
	DecimalPoint int `json:"decimal_point"`
	A1Type       int `json:"a1_type"`
	Hysteresis   int `json:"hysteresis"`
	Latching     int `json:"latching"`
	Siren        int `json:"siren"`
	Buzzer       int `json:"buzzer"`

	// RawMessage retains the original payload for audit and debugging.
	RawMessage  map[string]interface{} `json:"raw_message"`
	ProcessedAt string                 `json:"processed_at"`
	DataQuality string                 `json:"data_quality"`
}

// Alarm status values.
const (
	AlarmStatusNormal = "NORMAL"
	AlarmStatusAlarm  = "ALARM"
)
