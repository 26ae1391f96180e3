package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/models"
)

// ErrNotFound reports a lookup for a device or alert id the store does not
// hold.
var ErrNotFound = errors.New("not found")

const (
	latestKeyPrefix = "device:latest:"
	snapshotTTL     = 24 * time.Hour
)

// DeviceStore owns all per-device state: the single current record per
// serial number and that device's accumulated alert history. Mutation is
// serialized per device, never globally, so a burst of updates for one
// device cannot delay another.
//
// When a KV mirror is attached, the latest record is also written there
// best-effort so the cache survives a process restart.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[string]*deviceEntry

	kv     KV
	logger *zap.Logger
}

type deviceEntry struct {
	mu      sync.Mutex
	current *models.DeviceData
	alerts  []models.Alert
}

func NewDeviceStore(kv KV, logger *zap.Logger) *DeviceStore {
	return &DeviceStore{
		devices: make(map[string]*deviceEntry),
		kv:      kv,
		logger:  logger,
	}
}

// entry returns the per-device slot, creating it on first use. Only the
// outer map access takes the store-wide lock; all record and alert mutation
// happens under the entry's own mutex.
func (s *DeviceStore) entry(serial string) *deviceEntry {
	s.mu.RLock()
	e, ok := s.devices[serial]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.devices[serial]; ok {
		return e
	}
	e = &deviceEntry{}
	s.devices[serial] = e
	return e
}

// Put atomically replaces the current record for serial and returns the
// previous one, if any. There is no merging: the new record is authoritative.
func (s *DeviceStore) Put(serial string, data *models.DeviceData) *models.DeviceData {
	e := s.entry(serial)

	e.mu.Lock()
	prev := e.current
	e.current = data
	e.mu.Unlock()

	s.mirror(serial, data)
	return prev
}

// Get returns the current record for serial.
func (s *DeviceStore) Get(serial string) (*models.DeviceData, bool) {
	e := s.entry(serial)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil, false
	}
	return e.current, true
}

// List returns the current record of every known device.
func (s *DeviceStore) List() []*models.DeviceData {
	s.mu.RLock()
	entries := make([]*deviceEntry, 0, len(s.devices))
	for _, e := range s.devices {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*models.DeviceData, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.current != nil {
			out = append(out, e.current)
		}
		e.mu.Unlock()
	}
	return out
}

// AppendAlerts appends to the device's alert history in insertion order.
func (s *DeviceStore) AppendAlerts(serial string, alerts []models.Alert) {
	if len(alerts) == 0 {
		return
	}
	e := s.entry(serial)
	e.mu.Lock()
	e.alerts = append(e.alerts, alerts...)
	e.mu.Unlock()
}

// GetAlerts returns a copy of the device's alert history.
func (s *DeviceStore) GetAlerts(serial string) []models.Alert {
	e := s.entry(serial)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Alert, len(e.alerts))
	copy(out, e.alerts)
	return out
}

// Acknowledge marks the alert identified by alertID within the device's own
// history. Ids are not indexed globally, so the search is scoped to that
// device. Acknowledging an already-acknowledged alert is a no-op success;
// an unknown id yields ErrNotFound with no mutation.
func (s *DeviceStore) Acknowledge(serial, alertID, who string) error {
	e := s.entry(serial)
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.alerts {
		if e.alerts[i].ID != alertID {
			continue
		}
		if e.alerts[i].Acknowledged {
			return nil
		}
		now := time.Now().UTC()
		e.alerts[i].Acknowledged = true
		e.alerts[i].AcknowledgedAt = &now
		e.alerts[i].AcknowledgedBy = who
		return nil
	}
	return ErrNotFound
}

// WarmStart reloads the latest-record cache from the KV mirror, typically
// once at boot before the MQTT consumer starts. Live updates always win over
// warmed entries.
func (s *DeviceStore) WarmStart(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	keys, err := s.kv.ScanKeys(ctx, latestKeyPrefix+"*")
	if err != nil {
		return err
	}

	loaded := 0
	for _, key := range keys {
		val, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var data models.DeviceData
		if err := json.Unmarshal([]byte(val), &data); err != nil {
			s.logger.Warn("Discarding unreadable device snapshot", zap.String("key", key), zap.Error(err))
			continue
		}
		serial := strings.TrimPrefix(key, latestKeyPrefix)

		e := s.entry(serial)
		e.mu.Lock()
		if e.current == nil {
			e.current = &data
			loaded++
		}
		e.mu.Unlock()
	}

	if loaded > 0 {
		s.logger.Info("Warmed device cache from snapshot mirror", zap.Int("devices", loaded))
	}
	return nil
}

// mirror writes the latest record to the KV snapshot, best-effort: a slow or
// unreachable mirror must never stall the ingest path.
func (s *DeviceStore) mirror(serial string, data *models.DeviceData) {
	if s.kv == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("Failed to marshal device snapshot", zap.String("serial_number", serial), zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.kv.Set(ctx, latestKeyPrefix+serial, string(payload), snapshotTTL); err != nil {
			s.logger.Warn("Failed to mirror device snapshot", zap.String("serial_number", serial), zap.Error(err))
		}
	}()
}
