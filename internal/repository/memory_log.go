package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/Haru65/subtronic-backend/internal/models"
)

// DefaultMemoryLogCap bounds the fallback log per device; once full the
// oldest entries are evicted first.
const DefaultMemoryLogCap = 1000

// MemoryAlarmLog is the bounded in-process fallback for the alarm log. It
// keeps ingestion alive when the durable store is down: entries written here
// survive for the process lifetime only.
type MemoryAlarmLog struct {
	mu      sync.RWMutex
	entries map[string][]models.AlarmLogEntry
	cap     int
}

func NewMemoryAlarmLog(capPerDevice int) *MemoryAlarmLog {
	if capPerDevice <= 0 {
		capPerDevice = DefaultMemoryLogCap
	}
	return &MemoryAlarmLog{
		entries: make(map[string][]models.AlarmLogEntry),
		cap:     capPerDevice,
	}
}

// Append stores one entry, evicting the device's oldest entry when the
// per-device cap is reached.
func (m *MemoryAlarmLog) Append(entry models.AlarmLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.entries[entry.DeviceID]
	if len(log) >= m.cap {
		log = log[1:]
	}
	m.entries[entry.DeviceID] = append(log, entry)
}

// Query returns matching entries, newest first, honoring the limit.
func (m *MemoryAlarmLog) Query(filters models.AlarmLogFilters) []models.AlarmLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.AlarmLogEntry
	for deviceID, log := range m.entries {
		if filters.DeviceID != "" && filters.DeviceID != deviceID {
			continue
		}
		for _, entry := range log {
			if matches(entry, filters) {
				matched = append(matched, entry)
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// Aggregate folds the matching entries into counters, mirroring the durable
// repository's Aggregate.
func (m *MemoryAlarmLog) Aggregate(filters models.AlarmLogFilters) *models.AlarmLogStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.AlarmLogStats{
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
		ByDevice:   make(map[string]int),
	}
	for deviceID, log := range m.entries {
		if filters.DeviceID != "" && filters.DeviceID != deviceID {
			continue
		}
		for _, entry := range log {
			if !matches(entry, filters) {
				continue
			}
			stats.Total++
			stats.ByType[entry.AlarmType]++
			stats.BySeverity[entry.Severity]++
			stats.ByDevice[entry.DeviceID]++
			if entry.Acknowledged {
				stats.Acknowledged++
			} else {
				stats.Unacknowledged++
			}
		}
	}
	return stats
}

// MarkAcknowledged updates the fallback copy of an alert, if present.
func (m *MemoryAlarmLog) MarkAcknowledged(alertID, who string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for deviceID, log := range m.entries {
		for i := range log {
			if log[i].ID != alertID || log[i].Acknowledged {
				continue
			}
			log[i].Acknowledged = true
			log[i].AckedAt = &at
			log[i].AckedBy = who
			m.entries[deviceID] = log
			return
		}
	}
}

func matches(entry models.AlarmLogEntry, filters models.AlarmLogFilters) bool {
	if filters.AlarmType != "" && entry.AlarmType != filters.AlarmType {
		return false
	}
	if filters.Severity != "" && entry.Severity != filters.Severity {
		return false
	}
	if filters.StartDate != nil && entry.Timestamp.Before(*filters.StartDate) {
		return false
	}
	if filters.EndDate != nil && entry.Timestamp.After(*filters.EndDate) {
		return false
	}
	return true
}
