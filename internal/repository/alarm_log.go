package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Haru65/subtronic-backend/internal/models"
)

const defaultQueryLimit = 100

// AlarmLogRepository persists alert events to the alarm_logs table and
// serves the filtered query and aggregation surface over them.
type AlarmLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAlarmLogRepository(db *sql.DB, logger *zap.Logger) *AlarmLogRepository {
	return &AlarmLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends one alarm log entry.
func (r *AlarmLogRepository) Insert(ctx context.Context, entry models.AlarmLogEntry) error {
	query := `
		INSERT INTO alarm_logs (
			id, device_id, device_name, alarm_type, severity, message,
			threshold, current_value, unit, gas_type,
			acknowledged, acknowledged_at, acknowledged_by,
			timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var ackedBy sql.NullString
	if entry.AckedBy != "" {
		ackedBy = sql.NullString{String: entry.AckedBy, Valid: true}
	}
	var ackedAt sql.NullTime
	if entry.AckedAt != nil {
		ackedAt = sql.NullTime{Time: *entry.AckedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.DeviceID,
		entry.DeviceName,
		entry.AlarmType,
		entry.Severity,
		entry.Message,
		entry.Threshold,
		entry.CurrentValue,
		entry.Unit,
		entry.GasType,
		entry.Acknowledged,
		ackedAt,
		ackedBy,
		entry.Timestamp,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alarm log entry: %w", err)
	}
	return nil
}

// Query returns the alarm log entries matching the filters, newest first.
func (r *AlarmLogRepository) Query(ctx context.Context, filters models.AlarmLogFilters) ([]models.AlarmLogEntry, error) {
	where, args := buildWhere(filters)

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	query := fmt.Sprintf(`
		SELECT
			id, device_id, device_name, alarm_type, severity, message,
			threshold, current_value, unit, gas_type,
			acknowledged, acknowledged_at, acknowledged_by,
			timestamp, created_at
		FROM alarm_logs
		%s
		ORDER BY timestamp DESC
		LIMIT %d
	`, where, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarm logs: %w", err)
	}
	defer rows.Close()

	var entries []models.AlarmLogEntry
	for rows.Next() {
		var entry models.AlarmLogEntry
		var threshold, currentValue sql.NullFloat64
		var gasType, ackedBy sql.NullString
		var ackedAt sql.NullTime

		if err := rows.Scan(
			&entry.ID,
			&entry.DeviceID,
			&entry.DeviceName,
			&entry.AlarmType,
			&entry.Severity,
			&entry.Message,
			&threshold,
			&currentValue,
			&entry.Unit,
			&gasType,
			&entry.Acknowledged,
			&ackedAt,
			&ackedBy,
			&entry.Timestamp,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alarm log entry: %w", err)
		}

		if threshold.Valid {
			entry.Threshold = &threshold.Float64
		}
		if currentValue.Valid {
			entry.CurrentValue = &currentValue.Float64
		}
		if gasType.Valid {
			entry.GasType = gasType.String
		}
		if ackedAt.Valid {
			entry.AckedAt = &ackedAt.Time
		}
		if ackedBy.Valid {
			entry.AckedBy = ackedBy.String
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alarm logs: %w", err)
	}
	return entries, nil
}

// Aggregate folds the filtered log into per-type, per-severity and
// per-device counts plus the acknowledged split.
func (r *AlarmLogRepository) Aggregate(ctx context.Context, filters models.AlarmLogFilters) (*models.AlarmLogStats, error) {
	where, args := buildWhere(filters)

	query := fmt.Sprintf(`
		SELECT alarm_type, severity, device_id, acknowledged
		FROM alarm_logs
		%s
	`, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate alarm logs: %w", err)
	}
	defer rows.Close()

	stats := &models.AlarmLogStats{
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
		ByDevice:   make(map[string]int),
	}
	for rows.Next() {
		var alarmType, severity, deviceID string
		var acknowledged bool
		if err := rows.Scan(&alarmType, &severity, &deviceID, &acknowledged); err != nil {
			return nil, fmt.Errorf("failed to scan alarm log row: %w", err)
		}
		stats.Total++
		stats.ByType[alarmType]++
		stats.BySeverity[severity]++
		stats.ByDevice[deviceID]++
		if acknowledged {
			stats.Acknowledged++
		} else {
			stats.Unacknowledged++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alarm logs: %w", err)
	}
	return stats, nil
}

// MarkAcknowledged mirrors an in-process acknowledgment into the durable
// log so the persisted history agrees with the live store.
func (r *AlarmLogRepository) MarkAcknowledged(ctx context.Context, alertID, who string, at time.Time) error {
	query := `
		UPDATE alarm_logs
		SET acknowledged = TRUE, acknowledged_at = $2, acknowledged_by = $3
		WHERE id = $1 AND acknowledged = FALSE
	`
	if _, err := r.db.ExecContext(ctx, query, alertID, at, who); err != nil {
		return fmt.Errorf("failed to mark alarm log entry acknowledged: %w", err)
	}
	return nil
}

// buildWhere assembles the WHERE clause shared by Query and Aggregate.
func buildWhere(filters models.AlarmLogFilters) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filters.DeviceID != "" {
		add("device_id = $%d", filters.DeviceID)
	}
	if filters.StartDate != nil {
		add("timestamp >= $%d", *filters.StartDate)
	}
	if filters.EndDate != nil {
		add("timestamp <= $%d", *filters.EndDate)
	}
	if filters.AlarmType != "" {
		add("alarm_type = $%d", filters.AlarmType)
	}
	if filters.Severity != "" {
		add("severity = $%d", filters.Severity)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
