package evaluator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/models"
)

// Evaluator derives alert events from a canonical device record. Evaluation
// is pure and never fails; a record that trips no rule yields an empty slice.
type Evaluator struct {
	logger *zap.Logger
}

func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate runs the fault rule and the threshold cascade against one record
// and returns the alerts that fired, in rule order.
//
// The thresholds are nested (A3 above A2 above A1), so the cascade emits
// only the highest breached level. Ties count as a breach.
func (e *Evaluator) Evaluate(data *models.DeviceData) []models.Alert {
	var alerts []models.Alert
	now := time.Now().UTC()

	if data.SensorFault == 1 {
		alerts = append(alerts, e.buildAlert(data, now, models.AlertTypeSensorFault, models.SeverityCritical, nil,
			fmt.Sprintf("Sensor fault detected on %s", data.DeviceName)))
	}

	reading := data.SensorReading
	switch {
	case reading >= data.A3Level:
		alerts = append(alerts, e.buildAlert(data, now, models.AlertTypeAlarmLevel3, models.SeverityCritical, &data.A3Level,
			fmt.Sprintf("%s reading %.2f %s breached A3 level %.2f", data.DeviceName, reading, data.Unit, data.A3Level)))
	case reading >= data.A2Level:
		alerts = append(alerts, e.buildAlert(data, now, models.AlertTypeAlarmLevel2, models.SeverityHigh, &data.A2Level,
			fmt.Sprintf("%s reading %.2f %s breached A2 level %.2f", data.DeviceName, reading, data.Unit, data.A2Level)))
	case reading >= data.A1Level:
		alerts = append(alerts, e.buildAlert(data, now, models.AlertTypeAlarmLevel1, models.SeverityWarning, &data.A1Level,
			fmt.Sprintf("%s reading %.2f %s breached A1 level %.2f", data.DeviceName, reading, data.Unit, data.A1Level)))
	}

	if len(alerts) > 0 {
		e.logger.Debug("Alert rules fired",
			zap.String("serial_number", data.SerialNumber),
			zap.Int("alert_count", len(alerts)),
		)
	}

	return alerts
}

func (e *Evaluator) buildAlert(data *models.DeviceData, ts time.Time, alertType, severity string, threshold *float64, message string) models.Alert {
	value := data.SensorReading
	return models.Alert{
		ID:           newAlertID(alertType, data.SerialNumber, ts),
		Type:         alertType,
		Severity:     severity,
		Message:      message,
		Timestamp:    ts.Format(time.RFC3339Nano),
		DeviceName:   data.DeviceName,
		SerialNumber: data.SerialNumber,
		Threshold:    threshold,
		CurrentValue: &value,
		Unit:         data.Unit,
		GasType:      data.GasType,
	}
}

// newAlertID composes a unique id from the alert kind, the device serial and
// a nanosecond timestamp. The random suffix disambiguates back-to-back
// identical readings so storage never silently overwrites a prior alert.
func newAlertID(alertType, serial string, ts time.Time) string {
	return fmt.Sprintf("%s_%s_%d_%s", alertType, serial, ts.UnixNano(), uuid.New().String()[:8])
}
