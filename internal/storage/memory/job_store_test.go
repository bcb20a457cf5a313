package memory

import (
	"context"
	"testing"
	"time"

	"github.com/docsync/agent/internal/docsync"
)

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	job := docsync.Job{ID: "job-1", Status: docsync.JobStatusPending}

	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.CreateJob(ctx, job); err == nil {
		t.Fatal("expected duplicate job error")
	}
	if err := store.UpdateJobStatus(ctx, job.ID, docsync.JobStatusCrawling, "", docsync.JobCounters{}); err != nil {
		t.Fatalf("UpdateJobStatus crawling error = %v", err)
	}

	err := store.UpdateJobStatus(
		ctx,
		job.ID,
		docsync.JobStatusCompleted,
		"",
		docsync.JobCounters{Found: 4, Accepted: 2, Uploaded: 2},
	)
	if err != nil {
		t.Fatalf("UpdateJobStatus completed error = %v", err)
	}
	final, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if final.Status != docsync.JobStatusCompleted || final.Started == nil || final.Finished == nil {
		t.Fatalf("expected timestamps set, got %+v", final)
	}
	if final.Counters.Uploaded != 2 {
		t.Fatalf("expected counters to persist, got %+v", final)
	}
}

func TestJobStoreNotFound(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()

	if _, err := store.GetJob(ctx, "missing"); err != docsync.ErrNotFound {
		t.Fatalf("GetJob() error = %v, want ErrNotFound", err)
	}
	err := store.UpdateJobStatus(ctx, "missing", docsync.JobStatusFailed, "boom", docsync.JobCounters{})
	if err != docsync.ErrNotFound {
		t.Fatalf("UpdateJobStatus() error = %v, want ErrNotFound", err)
	}
}

func TestJobStoreListNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"job-a", "job-b", "job-c"} {
		job := docsync.Job{ID: id, Submitted: base.Add(time.Duration(i) * time.Hour)}
		if err := store.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob(%s) error = %v", id, err)
		}
	}

	jobs, err := store.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(jobs) != 3 || jobs[0].ID != "job-c" || jobs[2].ID != "job-a" {
		t.Fatalf("expected newest-first order, got %+v", jobs)
	}
}
