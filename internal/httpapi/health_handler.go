package httpapi

import (
	"net/http"
	"time"
)

// BrokerStatus reports MQTT connectivity.
type BrokerStatus interface {
	IsConnected() bool
}

// SinkStatus reports whether alert persistence is running on the fallback.
type SinkStatus interface {
	Degraded() bool
}

type healthResponse struct {
	Status        string `json:"status"`
	MQTTConnected bool   `json:"mqtt_connected"`
	SinkDegraded  bool   `json:"sink_degraded"`
	Timestamp     string `json:"timestamp"`
}

// HealthHandler exposes the gateway's operational state. A degraded sink or
// a lost broker connection downgrade the status without failing the check:
// the gateway keeps serving cached state either way.
type HealthHandler struct {
	broker BrokerStatus
	sinks  SinkStatus
}

func NewHealthHandler(broker BrokerStatus, sinks SinkStatus) *HealthHandler {
	return &HealthHandler{broker: broker, sinks: sinks}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		MQTTConnected: h.broker == nil || h.broker.IsConnected(),
		SinkDegraded:  h.sinks != nil && h.sinks.Degraded(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if !resp.MQTTConnected || resp.SinkDegraded {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
