package docsync

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStorageUnavailable marks uploader failures that affect the whole
// destination (auth, site or drive resolution), not a single file. A job
// hitting it fails instead of skipping the remaining uploads.
var ErrStorageUnavailable = errors.New("document storage unavailable")

// JobStore persists job metadata. The orchestrator owning a run is the only
// writer for that job, so a store update is always a consistent snapshot.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, counters JobCounters) error
}

// DocumentStore persists classified documents and their upload state.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc Document) error
	ListDocuments(ctx context.Context, jobID string) ([]Document, error)
	ListPendingUploads(ctx context.Context, jobID string) ([]Document, error)
	MarkUploaded(ctx context.Context, docID string, remoteID string, fileSize int64) error
}

// ScheduleStore persists recurring-crawl schedule entries.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, entry ScheduleEntry) error
	ListEnabled(ctx context.Context) ([]ScheduleEntry, error)
	ListSchedules(ctx context.Context) ([]ScheduleEntry, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error
	MarkRun(ctx context.Context, scheduleID string, lastRun time.Time, nextRun *time.Time) error
}

// SiteCrawler traverses a vendor site and returns discovered file candidates.
// Implementations must never visit more than maxPages pages and must honor
// ctx cancellation between page fetches.
type SiteCrawler interface {
	Crawl(ctx context.Context, seedURL string, scopeFilter []string, maxPages int) ([]Discovery, error)
}

// Uploader stores file bytes in the remote document library and returns the
// remote item id.
type Uploader interface {
	Upload(ctx context.Context, filename string, content []byte, folderPath string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job/document IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
