package models

import "time"

// Alert types.
const (
	AlertTypeSensorFault = "sensor_fault"
	AlertTypeAlarmLevel1 = "alarm_level_1"
	AlertTypeAlarmLevel2 = "alarm_level_2"
	AlertTypeAlarmLevel3 = "alarm_level_3"
)

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert is one immutable derived event signaling a threshold breach or a
// sensor fault. Only the Acknowledged* fields may change after creation,
// exactly once, via the store's Acknowledge operation.
type Alert struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Severity     string   `json:"severity"`
	Message      string   `json:"message"`
	Timestamp    string   `json:"timestamp"`
	DeviceName   string   `json:"device_name"`
	SerialNumber string   `json:"serial_number"`
	Threshold    *float64 `json:"threshold"`
	CurrentValue *float64 `json:"current_value"`
	Unit         string   `json:"unit"`
	GasType      string   `json:"gas_type,omitempty"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
}

// AlarmLogEntry is the persisted form of an Alert (alarm_logs table).
type AlarmLogEntry struct {
	ID           string     `json:"id" db:"id"`
	DeviceID     string     `json:"device_id" db:"device_id"`
	DeviceName   string     `json:"device_name" db:"device_name"`
	AlarmType    string     `json:"alarm_type" db:"alarm_type"`
	Severity     string     `json:"severity" db:"severity"`
	Message      string     `json:"message" db:"message"`
	Threshold    *float64   `json:"threshold" db:"threshold"`
	CurrentValue *float64   `json:"current_value" db:"current_value"`
	Unit         string     `json:"unit" db:"unit"`
	GasType      string     `json:"gas_type,omitempty" db:"gas_type"`
	Acknowledged bool       `json:"acknowledged" db:"acknowledged"`
	AckedAt      *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	AckedBy      string     `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	Timestamp    time.Time  `json:"timestamp" db:"timestamp"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// AlarmLogFilters narrows alarm-log queries and aggregations.
type AlarmLogFilters struct {
	DeviceID  string
	StartDate *time.Time
	EndDate   *time.Time
	AlarmType string
	Severity  string
	Limit     int
}

// AlarmLogStats is the aggregate view over a filtered alarm log.
type AlarmLogStats struct {
	Total          int            `json:"total"`
	ByType         map[string]int `json:"by_type"`
	BySeverity     map[string]int `json:"by_severity"`
	ByDevice       map[string]int `json:"by_device"`
	Acknowledged   int            `json:"acknowledged"`
	Unacknowledged int            `json:"unacknowledged"`
}

// EntryFromAlert builds the persisted log entry for an alert raised by the
// device identified by deviceID.
func EntryFromAlert(deviceID string, a Alert) AlarmLogEntry {
	ts, err := time.Parse(time.RFC3339Nano, a.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	return AlarmLogEntry{
		ID:           a.ID,
		DeviceID:     deviceID,
		DeviceName:   a.DeviceName,
		AlarmType:    a.Type,
		Severity:     a.Severity,
		Message:      a.Message,
		Threshold:    a.Threshold,
		CurrentValue: a.CurrentValue,
		Unit:         a.Unit,
		GasType:      a.GasType,
		Acknowledged: a.Acknowledged,
		AckedAt:      a.AcknowledgedAt,
		AckedBy:      a.AcknowledgedBy,
		Timestamp:    ts,
		CreatedAt:    time.Now().UTC(),
	}
}
