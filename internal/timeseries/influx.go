package timeseries

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/config"
	"github.com/Haru65/subtronic-backend/internal/models"
)

const measurement = "gas_reading"

// ReadingPoint is one historical reading returned by a range query.
type ReadingPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
}

// InfluxWriter records every normalized reading as a time-series point and
// serves range queries for the history endpoint. Writes go through the
// non-blocking WriteAPI so a slow InfluxDB never stalls ingestion.
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	queryAPI api.QueryAPI
	bucket   string
	logger   *zap.Logger
}

func NewInfluxWriter(cfg *config.InfluxConfig, logger *zap.Logger) *InfluxWriter {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	w := &InfluxWriter{
		client:   client,
		writeAPI: writeAPI,
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		logger:   logger,
	}

	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("InfluxDB write failed", zap.Error(err))
		}
	}()

	return w
}

// WriteReading queues one reading point. Fire-and-forget: delivery errors
// surface on the write API's error channel.
func (w *InfluxWriter) WriteReading(data *models.DeviceData) {
	p := influxdb2.NewPoint(
		measurement,
		map[string]string{
			"serial_number": data.SerialNumber,
			"device_name":   data.DeviceName,
			"unit":          data.Unit,
		},
		map[string]interface{}{
			"sensor_reading": data.SensorReading,
			"alarm_status":   data.AlarmStatus,
			"sensor_fault":   data.SensorFault,
		},
		time.Now().UTC(),
	)
	w.writeAPI.WritePoint(p)
}

// QueryRange returns the readings for one device between start and end.
func (w *InfluxWriter) QueryRange(ctx context.Context, serial string, start, end time.Time) ([]ReadingPoint, error) {
	flux := fmt.Sprintf(`
		from(bucket: %q)
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == %q)
			|> filter(fn: (r) => r.serial_number == %q)
			|> filter(fn: (r) => r._field == "sensor_reading")
	`, w.bucket, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), measurement, serial)

	result, err := w.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("failed to query reading history: %w", err)
	}

	var points []ReadingPoint
	for result.Next() {
		value, ok := result.Record().Value().(float64)
		if !ok {
			continue
		}
		unit, _ := result.Record().ValueByKey("unit").(string)
		points = append(points, ReadingPoint{
			Timestamp: result.Record().Time(),
			Value:     value,
			Unit:      unit,
		})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to read history result: %w", result.Err())
	}
	return points, nil
}

// Close flushes pending points and shuts the client down.
func (w *InfluxWriter) Close() {
	w.writeAPI.Flush()
	w.client.Close()
}
