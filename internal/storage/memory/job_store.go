// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/docsync/agent/internal/docsync"
)

// JobStore provides an in-memory implementation for development/testing.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]docsync.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]docsync.Job)}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job docsync.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (docsync.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return docsync.Job{}, docsync.ErrNotFound
	}
	return job, nil
}

// ListJobs returns all jobs, newest submission first.
func (s *JobStore) ListJobs(_ context.Context) ([]docsync.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]docsync.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Submitted.Equal(out[j].Submitted) {
			return out[i].ID < out[j].ID
		}
		return out[i].Submitted.After(out[j].Submitted)
	})
	return out, nil
}

// UpdateJobStatus updates the status, error text, and counters for a job.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status docsync.JobStatus,
	errText string,
	counters docsync.JobCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return docsync.ErrNotFound
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	now := time.Now().UTC()
	job.Updated = now
	if status == docsync.JobStatusCrawling && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.IsTerminal() {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
