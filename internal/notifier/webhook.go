package notifier

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/config"
	"github.com/Haru65/subtronic-backend/internal/models"
)

// WebhookNotifier POSTs critical alerts to an external endpoint,
// best-effort. Delivery failures are logged and never propagate into the
// ingest pipeline.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

type webhookPayload struct {
	DeviceID string         `json:"device_id"`
	Alerts   []models.Alert `json:"alerts"`
	SentAt   string         `json:"sent_at"`
}

func NewWebhookNotifier(cfg *config.WebhookConfig, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &WebhookNotifier{
		client: client,
		url:    cfg.URL,
		logger: logger,
	}
}

// NotifyCritical sends the critical subset of an alert batch. No-op when
// nothing in the batch is critical.
func (n *WebhookNotifier) NotifyCritical(ctx context.Context, deviceID string, alerts []models.Alert) {
	var critical []models.Alert
	for _, a := range alerts {
		if a.Severity == models.SeverityCritical {
			critical = append(critical, a)
		}
	}
	if len(critical) == 0 {
		return
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{
			DeviceID: deviceID,
			Alerts:   critical,
			SentAt:   time.Now().UTC().Format(time.RFC3339Nano),
		}).
		Post(n.url)
	if err != nil {
		n.logger.Warn("Alert webhook delivery failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		n.logger.Warn("Alert webhook rejected",
			zap.String("device_id", deviceID),
			zap.Int("status", resp.StatusCode()),
		)
	}
}
