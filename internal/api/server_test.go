package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docsync/agent/internal/docsync"
	"github.com/docsync/agent/internal/storage/memory"
)

func TestServer_SubmitJob_Succeeds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.ids.ids = []string{"job-abc"}

	rec := f.do(http.MethodPost, "/v1/jobs",
		`{"manufacturer_name":"Acme Valves","domain":"acme.example.com","product_lines":["Series X"],"folder_path":"Acme/Valves"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "job-abc")

	job, err := f.jobs.GetJob(context.Background(), "job-abc")
	require.NoError(t, err)
	require.Equal(t, docsync.JobStatusPending, job.Status)
	require.Equal(t, "Acme Valves", job.Manufacturer)
	require.Equal(t, "acme.example.com", job.Domain)
	require.Equal(t, []string{"Series X"}, job.ProductLines)
	require.Equal(t, "Acme/Valves", job.FolderPath)

	select {
	case got := <-f.runner.started:
		require.Equal(t, "job-abc", got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not invoked")
	}
}

func TestServer_SubmitJob_InvalidJSON(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(http.MethodPost, "/v1/jobs", "{invalid")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SubmitJob_MissingFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := f.do(http.MethodPost, "/v1/jobs", `{"domain":"acme.example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "manufacturer_name")

	rec = f.do(http.MethodPost, "/v1/jobs", `{"manufacturer_name":"Acme"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "domain")
}

func TestServer_SubmitJob_WeeklyRecrawlCreatesSchedule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.ids.ids = []string{"job-weekly", "sched-1"}

	rec := f.do(http.MethodPost, "/v1/jobs",
		`{"manufacturer_name":"Acme","domain":"acme.example.com","weekly_recrawl":true}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "sched-1")

	entries, err := f.schedules.ListEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "job-weekly", entries[0].JobID)
	require.Equal(t, "0 0 * * 0", entries[0].CronExpr)

	require.Equal(t, []string{"sched-1"}, f.registrar.registered())
}

func TestServer_GetJob_ReturnsJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, docsync.Job{ID: "job-1", Status: docsync.JobStatusCompleted})

	rec := f.do(http.MethodGet, "/v1/jobs/job-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "completed")
}

func TestServer_GetJob_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(http.MethodGet, "/v1/jobs/missing", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, docsync.Job{ID: "job-1", Status: docsync.JobStatusPending})
	f.seedJob(t, docsync.Job{ID: "job-2", Status: docsync.JobStatusCompleted})

	rec := f.do(http.MethodGet, "/v1/jobs", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "job-1")
	require.Contains(t, rec.Body.String(), "job-2")
}

func TestServer_ListDocuments(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, docsync.Job{ID: "job-1", Status: docsync.JobStatusCompleted})
	err := f.docs.CreateDocument(context.Background(), docsync.Document{
		ID:       "doc-1",
		JobID:    "job-1",
		Filename: "valve-data-sheet.pdf",
		Accepted: true,
	})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/v1/jobs/job-1/documents", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "valve-data-sheet.pdf")

	rec = f.do(http.MethodGet, "/v1/jobs/missing/documents", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CancelJob_RunningJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	job := docsync.Job{ID: "job-run", Status: docsync.JobStatusCrawling}
	f.seedJob(t, job)

	f.runner.block = true
	f.server.LaunchJob(job)
	select {
	case <-f.runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not start")
	}

	rec := f.do(http.MethodPost, "/v1/jobs/job-run/cancel", "")

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "cancelling")
	select {
	case <-f.runner.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("run context was not cancelled")
	}
}

func TestServer_CancelJob_NotRunningSettlesRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, docsync.Job{ID: "job-stale", Status: docsync.JobStatusPending})

	rec := f.do(http.MethodPost, "/v1/jobs/job-stale/cancel", "")

	require.Equal(t, http.StatusOK, rec.Code)
	job, err := f.jobs.GetJob(context.Background(), "job-stale")
	require.NoError(t, err)
	require.Equal(t, docsync.JobStatusCancelled, job.Status)
}

func TestServer_CancelJob_TerminalConflict(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, docsync.Job{ID: "job-done", Status: docsync.JobStatusCompleted})

	rec := f.do(http.MethodPost, "/v1/jobs/job-done/cancel", "")

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_DeleteSchedule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.schedules.CreateSchedule(context.Background(), docsync.ScheduleEntry{
		ID: "sched-1", JobID: "job-1", CronExpr: "0 0 * * 0", Enabled: true,
	})
	require.NoError(t, err)

	rec := f.do(http.MethodDelete, "/v1/schedules/sched-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"sched-1"}, f.registrar.removed())

	rec = f.do(http.MethodDelete, "/v1/schedules/sched-1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListSchedules(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.schedules.CreateSchedule(context.Background(), docsync.ScheduleEntry{
		ID: "sched-1", JobID: "job-1", CronExpr: "0 0 * * 0", Enabled: true,
	})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/v1/schedules", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sched-1")
}

func TestServer_Stats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, docsync.Job{
		ID:       "job-1",
		Status:   docsync.JobStatusCompleted,
		Counters: docsync.JobCounters{Found: 5, Accepted: 3, Uploaded: 3},
	})
	f.seedJob(t, docsync.Job{
		ID:       "job-2",
		Status:   docsync.JobStatusFailed,
		Counters: docsync.JobCounters{Found: 2},
	})
	err := f.schedules.CreateSchedule(context.Background(), docsync.ScheduleEntry{
		ID: "sched-1", CronExpr: "0 0 * * 0", Enabled: true,
	})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/v1/stats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 2, got.TotalJobs)
	require.Equal(t, 1, got.JobsByStatus["completed"])
	require.Equal(t, 1, got.JobsByStatus["failed"])
	require.Equal(t, 7, got.DocumentsFound)
	require.Equal(t, 3, got.DocumentsAccepted)
	require.Equal(t, 3, got.DocumentsUploaded)
	require.Equal(t, 1, got.ActiveSchedules)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
}

// --- helpers/fakes ---

type fixture struct {
	server    *Server
	jobs      *memory.JobStore
	docs      *memory.DocumentStore
	schedules *memory.ScheduleStore
	runner    *runnerStub
	registrar *registrarStub
	ids       *idStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		jobs:      memory.NewJobStore(),
		docs:      memory.NewDocumentStore(),
		schedules: memory.NewScheduleStore(),
		runner:    newRunnerStub(),
		registrar: &registrarStub{},
		ids:       &idStub{},
	}
	f.server = NewServer(
		f.jobs,
		f.docs,
		f.schedules,
		f.registrar,
		f.runner,
		f.ids,
		&clockStub{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		zap.NewNop(),
	)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedJob(t *testing.T, job docsync.Job) {
	t.Helper()
	if err := f.jobs.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
}

type runnerStub struct {
	started   chan docsync.Job
	cancelled chan struct{}
	block     bool
}

func newRunnerStub() *runnerStub {
	return &runnerStub{
		started:   make(chan docsync.Job, 8),
		cancelled: make(chan struct{}, 8),
	}
}

func (r *runnerStub) Run(ctx context.Context, job docsync.Job) error {
	r.started <- job
	if r.block {
		<-ctx.Done()
		r.cancelled <- struct{}{}
		return ctx.Err()
	}
	return nil
}

type registrarStub struct {
	mu      sync.Mutex
	regs    []string
	removes []string
}

func (r *registrarStub) Register(entry docsync.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, entry.ID)
	return nil
}

func (r *registrarStub) Remove(scheduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removes = append(r.removes, scheduleID)
}

func (r *registrarStub) registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.regs...)
}

func (r *registrarStub) removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removes...)
}

type idStub struct {
	mu  sync.Mutex
	ids []string
	n   int
}

func (g *idStub) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) > 0 {
		id := g.ids[0]
		g.ids = g.ids[1:]
		return id, nil
	}
	g.n++
	return "id-" + string(rune('a'+g.n-1)), nil
}

type clockStub struct {
	now time.Time
}

func (c *clockStub) Now() time.Time {
	return c.now
}
