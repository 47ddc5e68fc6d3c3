package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// JobStore provides an in-memory job tracker for development/testing.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]catalog.Job
	now  func() time.Time
}

var _ catalog.JobStore = (*JobStore)(nil)

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]catalog.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job catalog.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus records a status transition and its counters.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status catalog.JobStatus,
	errText string,
	documentID int64,
	counters catalog.JobCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, catalog.ErrNotFound)
	}
	job.Status = status
	job.Error = errText
	job.Counters = counters
	if documentID > 0 {
		job.DocumentID = documentID
	}
	now := s.now()
	if status == catalog.JobStatusRunning && job.Started == nil {
		job.Started = &now
	}
	if status.IsTerminal() {
		job.Finished = &now
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (catalog.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return catalog.Job{}, fmt.Errorf("job %s: %w", jobID, catalog.ErrNotFound)
	}
	return job, nil
}
