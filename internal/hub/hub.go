package hub

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/models"
)

// Outbound event types.
const (
	EventDeviceData   = "device_data"
	EventDeviceAlerts = "device_alerts"
)

// SnapshotFunc returns the current record for a device, used to seed a
// freshly joined subscriber.
type SnapshotFunc func(serial string) (*models.DeviceData, bool)

// DataEvent is the live-update envelope for one device record.
type DataEvent struct {
	Type      string             `json:"type"`
	DeviceID  string             `json:"device_id"`
	Data      *models.DeviceData `json:"data"`
	Timestamp string             `json:"timestamp"`
}

// AlertsEvent carries the alert batch generated for one device update.
type AlertsEvent struct {
	Type     string         `json:"type"`
	DeviceID string         `json:"device_id"`
	Alerts   []models.Alert `json:"alerts"`
}

// Hub fans device updates out to WebSocket subscribers. Membership is
// many-to-many between clients and device serials; all membership changes
// and deliveries happen under one lock so a join or leave is atomic
// relative to the next broadcast, and each subscriber sees each update
// exactly once.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]map[*Client]struct{}
	clients  map[*Client]map[string]struct{}
	snapshot SnapshotFunc
	logger   *zap.Logger
}

func NewHub(snapshot SnapshotFunc, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]map[string]struct{}),
		snapshot: snapshot,
		logger:   logger,
	}
}

// Register adds a connected client with no subscriptions yet.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = make(map[string]struct{})
	h.logger.Debug("WebSocket client registered", zap.String("remote", c.RemoteAddr()))
}

// Unregister removes a client from every room it joined. Effective before
// the next broadcast: once this returns, the client receives nothing more.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(c)
}

func (h *Hub) detach(c *Client) {
	serials, ok := h.clients[c]
	if !ok {
		return
	}
	for serial := range serials {
		delete(h.rooms[serial], c)
		if len(h.rooms[serial]) == 0 {
			delete(h.rooms, serial)
		}
	}
	delete(h.clients, c)
	c.closeSend()
	h.logger.Debug("WebSocket client unregistered", zap.String("remote", c.RemoteAddr()))
}

// Join subscribes the client to a device. If a current record exists the
// client receives it immediately, before any live delivery, so a mid-stream
// subscriber is never stateless until the next broker message.
func (h *Hub) Join(c *Client, serial string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	serials, ok := h.clients[c]
	if !ok {
		return
	}
	if _, joined := serials[serial]; joined {
		return
	}

	if data, ok := h.snapshot(serial); ok {
		h.deliver(c, marshalDataEvent(serial, data))
	}

	serials[serial] = struct{}{}
	room, ok := h.rooms[serial]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[serial] = room
	}
	room[c] = struct{}{}

	h.logger.Debug("Client joined device room",
		zap.String("remote", c.RemoteAddr()),
		zap.String("serial_number", serial),
	)
}

// Leave drops the client's subscription to a device.
func (h *Hub) Leave(c *Client, serial string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	serials, ok := h.clients[c]
	if !ok {
		return
	}
	delete(serials, serial)
	delete(h.rooms[serial], c)
	if len(h.rooms[serial]) == 0 {
		delete(h.rooms, serial)
	}
}

// PublishData broadcasts a new canonical record to the device's room.
func (h *Hub) PublishData(serial string, data *models.DeviceData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(serial, marshalDataEvent(serial, data))
}

// PublishAlerts broadcasts an alert batch to the device's room. Callers
// publish the data event first; alerts always describe a record the
// subscriber already holds.
func (h *Hub) PublishAlerts(serial string, alerts []models.Alert) {
	if len(alerts) == 0 {
		return
	}
	payload, err := json.Marshal(AlertsEvent{
		Type:     EventDeviceAlerts,
		DeviceID: serial,
		Alerts:   alerts,
	})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(serial, payload)
}

// Close disconnects every client, typically during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.detach(c)
	}
}

func (h *Hub) broadcast(serial string, payload []byte) {
	for c := range h.rooms[serial] {
		h.deliver(c, payload)
	}
}

// deliver queues a payload without blocking the ingest path. A client whose
// send buffer is full is considered gone and is detached.
func (h *Hub) deliver(c *Client, payload []byte) {
	if !c.trySend(payload) {
		h.logger.Warn("Dropping slow WebSocket client", zap.String("remote", c.RemoteAddr()))
		h.detach(c)
	}
}

func marshalDataEvent(serial string, data *models.DeviceData) []byte {
	payload, _ := json.Marshal(DataEvent{
		Type:      EventDeviceData,
		DeviceID:  serial,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	return payload
}
