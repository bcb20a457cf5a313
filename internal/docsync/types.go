// Package docsync defines core types shared across subsystems.
package docsync

import "time"

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store. A job moves strictly
// pending -> crawling -> classifying -> uploading -> completed; failed and
// cancelled are reachable from any non-terminal state.
const (
	JobStatusPending     JobStatus = "pending"
	JobStatusCrawling    JobStatus = "crawling"
	JobStatusClassifying JobStatus = "classifying"
	JobStatusUploading   JobStatus = "uploading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// IsTerminal reports whether a job in this status will never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// JobCounters tracks per-phase progress. Counters are monotonically
// non-decreasing within a run.
type JobCounters struct {
	Found    int `json:"documents_found"`
	Accepted int `json:"documents_accepted"`
	Uploaded int `json:"documents_uploaded"`
}

// Job represents the metadata persisted for each submitted crawl request.
type Job struct {
	ID            string      `json:"id"`
	Manufacturer  string      `json:"manufacturer_name"`
	Domain        string      `json:"domain"`
	ProductLines  []string    `json:"product_lines"`
	FolderPath    string      `json:"folder_path"`
	WeeklyRecrawl bool        `json:"weekly_recrawl"`
	Status        JobStatus   `json:"status"`
	Counters      JobCounters `json:"counters"`
	Submitted     time.Time   `json:"submitted_at"`
	Updated       time.Time   `json:"updated_at"`
	Started       *time.Time  `json:"started_at,omitempty"`
	Finished      *time.Time  `json:"finished_at,omitempty"`
	ErrorText     string      `json:"error_text,omitempty"`
}

// Document is one classified (and possibly uploaded) file.
type Document struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	Filename     string    `json:"filename"`
	SourceURL    string    `json:"source_url"`
	FileSize     int64     `json:"file_size"`
	Accepted     bool      `json:"accepted"`
	Reason       string    `json:"classification_reason"`
	DocumentType string    `json:"document_type,omitempty"`
	Uploaded     bool      `json:"uploaded"`
	RemoteID     string    `json:"remote_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScheduleEntry drives recurring re-crawls. It carries the full job
// definition so firing never needs to reopen a past job.
type ScheduleEntry struct {
	ID           string     `json:"id"`
	JobID        string     `json:"job_id"`
	Manufacturer string     `json:"manufacturer_name"`
	Domain       string     `json:"domain"`
	ProductLines []string   `json:"product_lines"`
	FolderPath   string     `json:"folder_path"`
	CronExpr     string     `json:"cron_expression"`
	Enabled      bool       `json:"enabled"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Discovery is a candidate file URL found during a crawl, with the anchor
// text and page it was discovered on. Ephemeral; persisted only once
// classified into a Document.
type Discovery struct {
	URL        string
	AnchorText string
	SourcePage string
}
