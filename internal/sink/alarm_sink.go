package sink

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/models"
	"github.com/Haru65/subtronic-backend/internal/repository"
)

// AlarmLogSink is the durable append point for alert events. It prefers the
// Postgres repository and falls back to the bounded in-memory log whenever
// the database is unavailable, so ingestion never blocks or fails on
// persistence. Reads are served from whichever side is healthy.
type AlarmLogSink struct {
	repo     *repository.AlarmLogRepository
	fallback *repository.MemoryAlarmLog
	logger   *zap.Logger
	degraded atomic.Bool
}

// NewAlarmLogSink builds a sink. repo may be nil when the gateway starts
// without a reachable database; the sink then runs memory-only from the
// beginning.
func NewAlarmLogSink(repo *repository.AlarmLogRepository, fallback *repository.MemoryAlarmLog, logger *zap.Logger) *AlarmLogSink {
	s := &AlarmLogSink{
		repo:     repo,
		fallback: fallback,
		logger:   logger,
	}
	if repo == nil {
		s.degraded.Store(true)
	}
	return s
}

// Record stores one alarm log entry. A durable write failure is caught,
// logged and compensated by a fallback append; the caller never sees an
// error from this path.
func (s *AlarmLogSink) Record(ctx context.Context, entry models.AlarmLogEntry) {
	if s.repo == nil {
		s.fallback.Append(entry)
		return
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error("Durable alarm log write failed, using fallback",
			zap.String("alert_id", entry.ID),
			zap.String("device_id", entry.DeviceID),
			zap.Error(err),
		)
		s.degraded.Store(true)
		s.fallback.Append(entry)
		return
	}
	s.degraded.Store(false)
}

// Query serves the filtered alarm log, durable store first.
func (s *AlarmLogSink) Query(ctx context.Context, filters models.AlarmLogFilters) ([]models.AlarmLogEntry, error) {
	if s.repo != nil {
		entries, err := s.repo.Query(ctx, filters)
		if err == nil {
			return entries, nil
		}
		s.logger.Error("Alarm log query against durable store failed, serving fallback", zap.Error(err))
	}
	return s.fallback.Query(filters), nil
}

// Aggregate serves alarm log statistics, durable store first.
func (s *AlarmLogSink) Aggregate(ctx context.Context, filters models.AlarmLogFilters) (*models.AlarmLogStats, error) {
	if s.repo != nil {
		stats, err := s.repo.Aggregate(ctx, filters)
		if err == nil {
			return stats, nil
		}
		s.logger.Error("Alarm log aggregation against durable store failed, serving fallback", zap.Error(err))
	}
	return s.fallback.Aggregate(filters), nil
}

// MarkAcknowledged propagates an acknowledgment into both copies of the
// log, best-effort.
func (s *AlarmLogSink) MarkAcknowledged(ctx context.Context, alertID, who string, at time.Time) {
	if s.repo != nil {
		if err := s.repo.MarkAcknowledged(ctx, alertID, who, at); err != nil {
			s.logger.Warn("Failed to mark alarm log entry acknowledged",
				zap.String("alert_id", alertID),
				zap.Error(err),
			)
		}
	}
	s.fallback.MarkAcknowledged(alertID, who, at)
}

// Degraded reports whether the sink is currently running on the in-memory
// fallback.
func (s *AlarmLogSink) Degraded() bool {
	return s.degraded.Load()
}
