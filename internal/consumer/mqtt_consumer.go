package consumer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/config"
	"github.com/Haru65/subtronic-backend/internal/evaluator"
	"github.com/Haru65/subtronic-backend/internal/models"
	"github.com/Haru65/subtronic-backend/internal/mqtt"
	"github.com/Haru65/subtronic-backend/internal/normalizer"
	"github.com/Haru65/subtronic-backend/internal/sink"
	"github.com/Haru65/subtronic-backend/internal/store"
)

// Broadcaster fans updates out to live subscribers.
type Broadcaster interface {
	PublishData(serial string, data *models.DeviceData)
	PublishAlerts(serial string, alerts []models.Alert)
}

// HistoryWriter records readings into the optional time-series store.
type HistoryWriter interface {
	WriteReading(data *models.DeviceData)
}

// Notifier pushes critical alerts to an external channel.
type Notifier interface {
	NotifyCritical(ctx context.Context, deviceID string, alerts []models.Alert)
}

// MQTTConsumer subscribes to the device telemetry topic and drives the
// per-message pipeline: normalize, store, evaluate, broadcast (data before
// alerts), then persist the alert batch off the hot path.
type MQTTConsumer struct {
	config     *config.Config
	mqttClient *mqtt.Client
	store      *store.DeviceStore
	evaluator  *evaluator.Evaluator
	broadcast  Broadcaster
	alarmSink  *sink.AlarmLogSink
	history    HistoryWriter
	notifier   Notifier
	logger     *zap.Logger
}

func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	deviceStore *store.DeviceStore,
	eval *evaluator.Evaluator,
	broadcast Broadcaster,
	alarmSink *sink.AlarmLogSink,
	history HistoryWriter,
	notifier Notifier,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		store:      deviceStore,
		evaluator:  eval,
		broadcast:  broadcast,
		alarmSink:  alarmSink,
		history:    history,
		notifier:   notifier,
		logger:     logger,
	}
}

// Start subscribes to the telemetry topic and blocks until the context is
// canceled.
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.MQTT.Topic, c.config.MQTT.QoS, c.HandleMessage); err != nil {
		return err
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.MQTT.Topic),
		zap.Uint8("qos", c.config.MQTT.QoS),
	)

	<-ctx.Done()
	return nil
}

// Stop unsubscribes from the telemetry topic.
func (c *MQTTConsumer) Stop() {
	if err := c.mqttClient.Unsubscribe(c.config.MQTT.Topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
}

// HandleMessage processes one inbound telemetry payload. Malformed messages
// are dropped with a logged reason; nothing is stored or published for them.
func (c *MQTTConsumer) HandleMessage(topic string, payload []byte) error {
	data, err := normalizer.Normalize(payload)
	if err != nil {
		if errors.Is(err, normalizer.ErrMalformedPayload) {
			c.logger.Warn("Dropping malformed telemetry payload",
				zap.String("topic", topic),
				zap.Int("payload_size", len(payload)),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	serial := data.SerialNumber

	// The new record replaces the previous one wholesale.
	c.store.Put(serial, data)

	alerts := c.evaluator.Evaluate(data)
	c.store.AppendAlerts(serial, alerts)

	// Live delivery first, data before alerts, so subscribers always hold
	// the record an alert refers to. Persistence must not delay this.
	c.broadcast.PublishData(serial, data)
	c.broadcast.PublishAlerts(serial, alerts)

	if c.history != nil {
		c.history.WriteReading(data)
	}

	if len(alerts) > 0 {
		go c.persistAlerts(serial, alerts)
	}

	c.logger.Debug("Telemetry processed",
		zap.String("serial_number", serial),
		zap.Float64("sensor_reading", data.SensorReading),
		zap.String("alarm_status", data.AlarmStatus),
		zap.Int("alert_count", len(alerts)),
	)
	return nil
}

// persistAlerts runs on its own goroutine: a slow or unreachable alarm log
// must never stall delivery for other devices.
func (c *MQTTConsumer) persistAlerts(serial string, alerts []models.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, alert := range alerts {
		c.alarmSink.Record(ctx, models.EntryFromAlert(serial, alert))
	}

	if c.notifier != nil {
		c.notifier.NotifyCritical(ctx, serial, alerts)
	}
}
