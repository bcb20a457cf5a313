// Package orchestrator drives a crawl job through its lifecycle: crawling,
// classifying, uploading, and one of the terminal states. One Orchestrator
// run owns one job; nothing else writes that job's record while it runs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/docsync/agent/internal/classifier"
	"github.com/docsync/agent/internal/crawl"
	"github.com/docsync/agent/internal/docsync"
	"github.com/docsync/agent/internal/metrics"
)

const (
	defaultDownloadTimeout = 60 * time.Second
	defaultMaxFileSize     = 100 << 20

	// persistTimeout bounds status writes made after the job context is
	// already cancelled.
	persistTimeout = 10 * time.Second
)

// Prober decides whether a site needs the rendering browser. Satisfied by
// crawl.StaticCrawler.
type Prober interface {
	ProbeSeed(ctx context.Context, seedURL string) bool
}

// Config holds the per-run bounds.
type Config struct {
	MaxPages        int
	DownloadTimeout time.Duration
	MaxFileSize     int64
	UserAgent       string
}

func (c Config) downloadTimeout() time.Duration {
	if c.DownloadTimeout <= 0 {
		return defaultDownloadTimeout
	}
	return c.DownloadTimeout
}

func (c Config) maxFileSize() int64 {
	if c.MaxFileSize <= 0 {
		return defaultMaxFileSize
	}
	return c.MaxFileSize
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Jobs     docsync.JobStore
	Docs     docsync.DocumentStore
	Prober   Prober
	Static   docsync.SiteCrawler
	Browser  docsync.SiteCrawler
	Uploader docsync.Uploader
	IDs      docsync.IDGenerator
	Clock    docsync.Clock
	Client   *http.Client
	Logger   *zap.Logger
}

// Orchestrator runs jobs to completion.
type Orchestrator struct {
	cfg Config
	d   Deps
}

// New builds an Orchestrator.
func New(cfg Config, d Deps) *Orchestrator {
	metrics.Init()
	if d.Client == nil {
		d.Client = &http.Client{}
	}
	return &Orchestrator{cfg: cfg, d: d}
}

// Run executes one job. The caller's ctx is the cancellation token: it is
// checked at every phase boundary and before each per-item step, so a cancel
// lands within one item of work. Item-level failures are logged and skipped;
// phase-level failures end the job as failed. The returned error reflects
// why the job did not complete.
func (o *Orchestrator) Run(ctx context.Context, job docsync.Job) error {
	logger := o.d.Logger.With(
		zap.String("job_id", job.ID),
		zap.String("domain", job.Domain),
	)
	started := o.d.Clock.Now()
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	counters := docsync.JobCounters{}
	finish := func(status docsync.JobStatus, errText string) {
		if err := o.persistStatus(job.ID, status, errText, counters); err != nil {
			logger.Error("terminal status update failed",
				zap.String("status", string(status)), zap.Error(err))
		}
		metrics.ObserveJob(string(status), o.d.Clock.Now().Sub(started))
		logger.Info("job finished",
			zap.String("status", string(status)),
			zap.Int("found", counters.Found),
			zap.Int("accepted", counters.Accepted),
			zap.Int("uploaded", counters.Uploaded),
		)
	}

	if err := ctx.Err(); err != nil {
		finish(docsync.JobStatusCancelled, "")
		return err
	}
	if err := o.persistStatus(job.ID, docsync.JobStatusCrawling, "", counters); err != nil {
		return fmt.Errorf("mark crawling: %w", err)
	}

	seedURL := crawl.EnsureScheme(job.Domain)
	crawler := o.d.Static
	if o.d.Prober.ProbeSeed(ctx, seedURL) {
		logger.Info("seed needs rendering, using browser crawler")
		crawler = o.d.Browser
	}
	if err := ctx.Err(); err != nil {
		finish(docsync.JobStatusCancelled, "")
		return err
	}

	discoveries, err := crawler.Crawl(ctx, seedURL, job.ProductLines, o.cfg.MaxPages)
	counters.Found = len(discoveries)
	if ctxErr := ctx.Err(); ctxErr != nil {
		finish(docsync.JobStatusCancelled, "")
		return ctxErr
	}
	if err != nil {
		finish(docsync.JobStatusFailed, err.Error())
		return fmt.Errorf("crawl: %w", err)
	}

	if err := o.persistStatus(job.ID, docsync.JobStatusClassifying, "", counters); err != nil {
		finish(docsync.JobStatusFailed, err.Error())
		return fmt.Errorf("mark classifying: %w", err)
	}
	for _, d := range discoveries {
		if err := ctx.Err(); err != nil {
			finish(docsync.JobStatusCancelled, "")
			return err
		}
		if err := o.classifyOne(ctx, job, d, &counters); err != nil {
			logger.Warn("candidate skipped",
				zap.String("url", d.URL), zap.Error(err))
		}
	}

	if err := o.persistStatus(job.ID, docsync.JobStatusUploading, "", counters); err != nil {
		finish(docsync.JobStatusFailed, err.Error())
		return fmt.Errorf("mark uploading: %w", err)
	}
	pending, err := o.d.Docs.ListPendingUploads(ctx, job.ID)
	if err != nil {
		finish(docsync.JobStatusFailed, err.Error())
		return fmt.Errorf("list pending uploads: %w", err)
	}
	for _, doc := range pending {
		if err := ctx.Err(); err != nil {
			finish(docsync.JobStatusCancelled, "")
			return err
		}
		if err := o.uploadOne(ctx, job, doc); err != nil {
			if errors.Is(err, docsync.ErrStorageUnavailable) {
				finish(docsync.JobStatusFailed, err.Error())
				return fmt.Errorf("upload: %w", err)
			}
			metrics.ObserveUploadFailure()
			logger.Warn("upload skipped",
				zap.String("url", doc.SourceURL), zap.Error(err))
			continue
		}
		counters.Uploaded++
		metrics.ObserveUploaded(job.Domain)
		if err := o.persistStatus(job.ID, docsync.JobStatusUploading, "", counters); err != nil {
			logger.Warn("progress update failed", zap.Error(err))
		}
	}

	finish(docsync.JobStatusCompleted, "")
	return nil
}

// classifyOne classifies one discovered candidate and persists the verdict.
func (o *Orchestrator) classifyOne(
	ctx context.Context,
	job docsync.Job,
	d docsync.Discovery,
	counters *docsync.JobCounters,
) error {
	filename := crawl.FilenameFromURL(d.URL)
	result := classifier.Classify(filename, d.URL)

	id, err := o.d.IDs.NewID()
	if err != nil {
		return fmt.Errorf("new document id: %w", err)
	}
	doc := docsync.Document{
		ID:           id,
		JobID:        job.ID,
		Filename:     filename,
		SourceURL:    d.URL,
		Accepted:     result.Accepted,
		Reason:       result.Reason,
		DocumentType: result.DocumentType,
		CreatedAt:    o.d.Clock.Now(),
	}
	if err := o.d.Docs.CreateDocument(ctx, doc); err != nil {
		return fmt.Errorf("persist document: %w", err)
	}
	if result.Accepted {
		counters.Accepted++
		metrics.ObserveAccepted(job.Domain)
	}
	return nil
}

// uploadOne downloads one accepted document and pushes it to the document
// library.
func (o *Orchestrator) uploadOne(ctx context.Context, job docsync.Job, doc docsync.Document) error {
	content, err := o.download(ctx, doc.SourceURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	remoteID, err := o.d.Uploader.Upload(ctx, doc.Filename, content, job.FolderPath)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if err := o.d.Docs.MarkUploaded(ctx, doc.ID, remoteID, int64(len(content))); err != nil {
		return fmt.Errorf("mark uploaded: %w", err)
	}
	return nil
}

// download fetches the file bytes with a per-file timeout and size cap.
func (o *Orchestrator) download(ctx context.Context, rawURL string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, o.cfg.downloadTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if o.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", o.cfg.UserAgent)
	}
	resp, err := o.d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	limit := o.cfg.maxFileSize()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d byte limit", limit)
	}
	return data, nil
}

// persistStatus writes the job status on a fresh context so updates survive
// cancellation of the job context.
func (o *Orchestrator) persistStatus(
	jobID string,
	status docsync.JobStatus,
	errText string,
	counters docsync.JobCounters,
) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return o.d.Jobs.UpdateJobStatus(ctx, jobID, status, errText, counters)
}
