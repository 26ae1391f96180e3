package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Haru65/subtronic-backend/internal/models"
)

// ErrMalformedPayload marks an inbound message that could not be parsed as a
// JSON object. Such messages are dropped by the consumer; no partial record
// is ever produced.
var ErrMalformedPayload = errors.New("malformed device payload")

// candidate names one accepted location for a logical field: an optional
// sub-object and the exact key, including any firmware-emitted trailing
// spaces. Candidates are tried in order and the first present value wins.
type candidate struct {
	section string
	key     string
}

const sectionParameters = "Parameters"

// Accepted field names per logical attribute. New firmware variants are
// supported by extending these tables, not by editing the lookup logic.
// "Device Alise Name" is a misspelled historical variant that real units
// still emit.
var (
	deviceNameFields = []candidate{
		{"", "Device Alias Name"},
		{"", "Device Alise Name"},
	}
	serialNumberFields = []candidate{
		{"", "OTSM-2 Serial Number"},
	}
	timestampFields = []candidate{
		{"", "Date Time At Reading"},
		{"", "timestamp"},
	}
	sensorReadingFields = []candidate{
		{sectionParameters, "Live Sensor Readings "},
		{sectionParameters, "Live Sensor Readings"},
		{"", "Sensor Reading"},
		{"", "Offset"},
	}
	unitFields = []candidate{
		{sectionParameters, "Unit of Measurement "},
		{"", "Unit of Measurement "},
	}
	gasTypeFields = []candidate{
		{"", "Gas Type"},
		{sectionParameters, "Gas Type"},
	}
	latitudeFields = []candidate{
		{"", "lat"},
		{sectionParameters, "lat"},
	}
	longitudeFields = []candidate{
		{"", "long"},
		{sectionParameters, "long"},
	}
)

// intField describes one integer-valued attribute: where to look, its
// default, and where it lands on the record.
type intField struct {
	candidates []candidate
	def        int
	assign     func(*models.DeviceData, int)
}

var intFields = []intField{
	{paramOrRoot("Alarm 1 LED Status"), 0, func(d *models.DeviceData, v int) { d.Alarm1LED = flag(v) }},
	{paramOrRoot("Alarm 2 LED Status"), 0, func(d *models.DeviceData, v int) { d.Alarm2LED = flag(v) }},
	{paramOrRoot("Alarm 3 LED Status"), 0, func(d *models.DeviceData, v int) { d.Alarm3LED = flag(v) }},
	{sensorFaultFields(), 0, func(d *models.DeviceData, v int) { d.SensorFault = flag(v) }},
	{paramOrRoot("Span High"), 1000, func(d *models.DeviceData, v int) { d.SpanHigh = v }},
	{paramOrRoot("Span Low"), 0, func(d *models.DeviceData, v int) { d.SpanLow = v }},
	{paramOrRoot("Decimal Point"), 0, func(d *models.DeviceData, v int) { d.DecimalPoint = v }},
	{paramOrRoot("A1Type"), 0, func(d *models.DeviceData, v int) { d.A1Type = v }},
	{paramOrRoot("Hysteresis"), 0, func(d *models.DeviceData, v int) { d.Hysteresis = v }},
	{paramOrRoot("Latching"), 0, func(d *models.DeviceData, v int) { d.Latching = v }},
	{paramOrRoot("Siren"), 0, func(d *models.DeviceData, v int) { d.Siren = v }},
	{paramOrRoot("Buzzer"), 0, func(d *models.DeviceData, v int) { d.Buzzer = v }},
}

// Alarm threshold levels, float-valued so they compare directly against the
// live reading.
var levelFields = []struct {
	candidates []candidate
	def        float64
	assign     func(*models.DeviceData, float64)
}{
	{paramOrRoot("Alarm Level A1"), 250, func(d *models.DeviceData, v float64) { d.A1Level = v }},
	{paramOrRoot("Alarm Level A2"), 500, func(d *models.DeviceData, v float64) { d.A2Level = v }},
	{paramOrRoot("Alarm Level A3"), 1000, func(d *models.DeviceData, v float64) { d.A3Level = v }},
}

// unitCodes maps the firmware's numeric unit-of-measurement register to its
// display string. The table carries a single entry today; unknown codes fall
// back to ppm because every deployed OTSM-2 reports in ppm.
var unitCodes = map[int]string{
	1: "ppm",
}

const defaultUnit = "ppm"

func paramOrRoot(key string) []candidate {
	return []candidate{{sectionParameters, key}, {"", key}}
}

func sensorFaultFields() []candidate {
	return []candidate{
		{sectionParameters, "Sensor Fault LED Status"},
		{sectionParameters, "Sensor Fault"},
		{"", "Sensor Fault"},
	}
}

func flag(v int) int {
	if v != 0 {
		return 1
	}
	return 0
}

// Normalize parses raw bytes as a JSON object and maps them into a canonical
// DeviceData record. Unparseable input yields ErrMalformedPayload.
func Normalize(raw []byte) (*models.DeviceData, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return NormalizeMap(payload), nil
}

// NormalizeMap maps an already-parsed payload into a canonical record. It is
// pure apart from reading the clock for processed_at and never fails: every
// field has an independent default.
func NormalizeMap(payload map[string]interface{}) *models.DeviceData {
	now := time.Now().UTC()

	data := &models.DeviceData{
		DeviceName:   lookupString(payload, deviceNameFields, "Unknown"),
		SerialNumber: lookupString(payload, serialNumberFields, "Unknown"),
		GasType:      lookupString(payload, gasTypeFields, ""),
		Timestamp:    lookupString(payload, timestampFields, now.Format(time.RFC3339Nano)),
		Unit:         resolveUnit(payload),
		Latitude:     lookupString(payload, latitudeFields, "0.00"),
		Longitude:    lookupString(payload, longitudeFields, "0.00"),
		RawMessage:   payload,
		ProcessedAt:  now.Format(time.RFC3339Nano),
		DataQuality:  "good",
	}

	reading := lookupFloat(payload, sensorReadingFields, 0)
	data.SensorReading = reading
	// Offset is a presentation alias for sensor_reading, assigned from the
	// same resolved value so the two can never diverge.
	data.Offset = reading

	for _, f := range levelFields {
		f.assign(data, lookupFloat(payload, f.candidates, f.def))
	}
	for _, f := range intFields {
		f.assign(data, lookupInt(payload, f.candidates, f.def))
	}

	// The alarm status is derived here and only here; any alarm-status
	// field the payload itself carries is ignored.
	if data.SensorFault == 1 || data.Alarm1LED == 1 || data.Alarm2LED == 1 || data.Alarm3LED == 1 {
		data.AlarmStatus = models.AlarmStatusAlarm
	} else {
		data.AlarmStatus = models.AlarmStatusNormal
	}

	return data
}

// lookup returns the first candidate value present in the payload.
func lookup(payload map[string]interface{}, candidates []candidate) (interface{}, bool) {
	for _, c := range candidates {
		source := payload
		if c.section != "" {
			nested, ok := payload[c.section].(map[string]interface{})
			if !ok {
				continue
			}
			source = nested
		}
		if v, ok := source[c.key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(payload map[string]interface{}, candidates []candidate, def string) string {
	v, ok := lookup(payload, candidates)
	if !ok {
		return def
	}
	s := asString(v)
	if s == "" {
		return def
	}
	return s
}

func lookupFloat(payload map[string]interface{}, candidates []candidate, def float64) float64 {
	v, ok := lookup(payload, candidates)
	if !ok {
		return def
	}
	f, err := asFloat(v)
	if err != nil {
		return def
	}
	return f
}

func lookupInt(payload map[string]interface{}, candidates []candidate, def int) int {
	v, ok := lookup(payload, candidates)
	if !ok {
		return def
	}
	f, err := asFloat(v)
	if err != nil {
		return def
	}
	return int(f)
}

func resolveUnit(payload map[string]interface{}) string {
	v, ok := lookup(payload, unitFields)
	if !ok {
		return defaultUnit
	}
	if code, err := asFloat(v); err == nil {
		if unit, ok := unitCodes[int(code)]; ok {
			return unit
		}
		return defaultUnit
	}
	// Textual unit values pass through verbatim, trimmed.
	if s := strings.TrimSpace(asString(v)); s != "" {
		return s
	}
	return defaultUnit
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func asFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, fmt.Errorf("not a numeric value: %T", v)
	}
}
