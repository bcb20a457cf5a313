package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/docsync/agent/internal/docsync"
)

const jobColumns = `id, manufacturer, domain, product_lines, folder_path,
weekly_recrawl, status, found, accepted, uploaded,
submitted_at, updated_at, started_at, finished_at, error_text`

// CreateJob inserts a job row.
func (s *Store) CreateJob(ctx context.Context, job docsync.Job) error {
	query := `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := s.db.Exec(ctx, query,
		job.ID,
		job.Manufacturer,
		job.Domain,
		job.ProductLines,
		job.FolderPath,
		job.WeeklyRecrawl,
		string(job.Status),
		job.Counters.Found,
		job.Counters.Accepted,
		job.Counters.Uploaded,
		job.Submitted,
		job.Updated,
		job.Started,
		job.Finished,
		job.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (docsync.Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return docsync.Job{}, docsync.ErrNotFound
	}
	if err != nil {
		return docsync.Job{}, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// ListJobs returns all jobs, newest submission first.
func (s *Store) ListJobs(ctx context.Context) ([]docsync.Job, error) {
	rows, err := s.db.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY submitted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	defer rows.Close()

	var out []docsync.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// UpdateJobStatus updates the status, error text, and counters for a job.
// The start timestamp is set on the first transition into crawling and the
// finish timestamp when the status is terminal.
func (s *Store) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status docsync.JobStatus,
	errText string,
	counters docsync.JobCounters,
) error {
	query := `
UPDATE jobs SET
	status = $2,
	error_text = $3,
	found = $4,
	accepted = $5,
	uploaded = $6,
	updated_at = NOW(),
	started_at = CASE WHEN $2 = 'crawling' AND started_at IS NULL THEN NOW() ELSE started_at END,
	finished_at = CASE WHEN $7 THEN NOW() ELSE finished_at END
WHERE id = $1`
	tag, err := s.db.Exec(ctx, query,
		jobID,
		string(status),
		errText,
		counters.Found,
		counters.Accepted,
		counters.Uploaded,
		status.IsTerminal(),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docsync.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (docsync.Job, error) {
	var (
		job    docsync.Job
		status string
	)
	err := row.Scan(
		&job.ID,
		&job.Manufacturer,
		&job.Domain,
		&job.ProductLines,
		&job.FolderPath,
		&job.WeeklyRecrawl,
		&status,
		&job.Counters.Found,
		&job.Counters.Accepted,
		&job.Counters.Uploaded,
		&job.Submitted,
		&job.Updated,
		&job.Started,
		&job.Finished,
		&job.ErrorText,
	)
	if err != nil {
		return docsync.Job{}, err
	}
	job.Status = docsync.JobStatus(status)
	return job, nil
}
