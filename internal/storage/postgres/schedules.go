package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/docsync/agent/internal/docsync"
)

const scheduleColumns = `id, job_id, manufacturer, domain, product_lines,
folder_path, cron_expr, enabled, last_run, next_run, created_at`

// CreateSchedule inserts a schedule row.
func (s *Store) CreateSchedule(ctx context.Context, entry docsync.ScheduleEntry) error {
	query := `
INSERT INTO schedules (` + scheduleColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := s.db.Exec(ctx, query,
		entry.ID,
		entry.JobID,
		entry.Manufacturer,
		entry.Domain,
		entry.ProductLines,
		entry.FolderPath,
		entry.CronExpr,
		entry.Enabled,
		entry.LastRun,
		entry.NextRun,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// ListEnabled returns the enabled schedule entries.
func (s *Store) ListEnabled(ctx context.Context) ([]docsync.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE enabled ORDER BY created_at, id`
	return s.querySchedules(ctx, query)
}

// ListSchedules returns all schedule entries.
func (s *Store) ListSchedules(ctx context.Context) ([]docsync.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at, id`
	return s.querySchedules(ctx, query)
}

// DeleteSchedule removes a schedule row.
func (s *Store) DeleteSchedule(ctx context.Context, scheduleID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, scheduleID)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docsync.ErrNotFound
	}
	return nil
}

// MarkRun records the last fire time and the computed next fire time.
func (s *Store) MarkRun(ctx context.Context, scheduleID string, lastRun time.Time, nextRun *time.Time) error {
	query := `UPDATE schedules SET last_run = $2, next_run = $3 WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, scheduleID, lastRun, nextRun)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docsync.ErrNotFound
	}
	return nil
}

func (s *Store) querySchedules(ctx context.Context, query string, args ...any) ([]docsync.ScheduleEntry, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select schedules: %w", err)
	}
	defer rows.Close()

	var out []docsync.ScheduleEntry
	for rows.Next() {
		entry, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return out, nil
}

func scanSchedule(row pgx.Row) (docsync.ScheduleEntry, error) {
	var entry docsync.ScheduleEntry
	err := row.Scan(
		&entry.ID,
		&entry.JobID,
		&entry.Manufacturer,
		&entry.Domain,
		&entry.ProductLines,
		&entry.FolderPath,
		&entry.CronExpr,
		&entry.Enabled,
		&entry.LastRun,
		&entry.NextRun,
		&entry.CreatedAt,
	)
	return entry, err
}
