package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

var _ catalog.JobStore = (*Store)(nil)

// CreateJob inserts a job row.
func (s *Store) CreateJob(ctx context.Context, job catalog.Job) error {
	target, err := json.Marshal(job.Target)
	if err != nil {
		return fmt.Errorf("marshal job target: %w", err)
	}
	counters, err := json.Marshal(job.Counters)
	if err != nil {
		return fmt.Errorf("marshal job counters: %w", err)
	}
	query := `
		INSERT INTO jobs (id, target, status, error, counters, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.pool.Exec(ctx, query, job.ID, target, string(job.Status), job.Error, counters, job.Submitted); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus records a status transition for a job.
func (s *Store) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status catalog.JobStatus,
	errText string,
	documentID int64,
	counters catalog.JobCounters,
) error {
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal job counters: %w", err)
	}
	var docID *int64
	if documentID > 0 {
		docID = &documentID
	}
	now := time.Now().UTC()
	query := `
		UPDATE jobs
		SET status = $1,
			error = $2,
			document_id = COALESCE($3, document_id),
			counters = $4,
			started_at = CASE WHEN $5 AND started_at IS NULL THEN $7 ELSE started_at END,
			finished_at = CASE WHEN $6 THEN $7 ELSE finished_at END
		WHERE id = $8
	`
	res, err := s.pool.Exec(ctx, query,
		string(status),
		errText,
		docID,
		countersJSON,
		status == catalog.JobStatusRunning,
		status.IsTerminal(),
		now,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, catalog.ErrNotFound)
	}
	return nil
}

// GetJob retrieves a single job by its ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (catalog.Job, error) {
	query := `
		SELECT id, target, status, error, document_id, counters, submitted_at, started_at, finished_at
		FROM jobs
		WHERE id = $1
	`
	var (
		job      catalog.Job
		target   []byte
		status   string
		docID    *int64
		counters []byte
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&target,
		&status,
		&job.Error,
		&docID,
		&counters,
		&job.Submitted,
		&job.Started,
		&job.Finished,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Job{}, fmt.Errorf("job %s: %w", jobID, catalog.ErrNotFound)
		}
		return catalog.Job{}, fmt.Errorf("select job: %w", err)
	}
	job.Status = catalog.JobStatus(status)
	if docID != nil {
		job.DocumentID = *docID
	}
	if err := json.Unmarshal(target, &job.Target); err != nil {
		return catalog.Job{}, fmt.Errorf("decode job target: %w", err)
	}
	if err := json.Unmarshal(counters, &job.Counters); err != nil {
		return catalog.Job{}, fmt.Errorf("decode job counters: %w", err)
	}
	return job, nil
}
