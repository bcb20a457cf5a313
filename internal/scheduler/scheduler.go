// Package scheduler fires recurring re-crawls from persisted schedule
// entries.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/docsync/agent/internal/docsync"
)

// fireTimeout bounds the store writes done when a schedule fires.
const fireTimeout = 30 * time.Second

// LaunchFunc starts the crawl for a freshly created job. The scheduler only
// creates the job record; running it belongs to the caller.
type LaunchFunc func(job docsync.Job)

// Scheduler wraps a cron runner over the schedule store. Each enabled entry
// is registered under its cron expression; every fire creates a brand-new
// job from the entry's stored definition.
type Scheduler struct {
	cron   *cron.Cron
	store  docsync.ScheduleStore
	jobs   docsync.JobStore
	ids    docsync.IDGenerator
	clock  docsync.Clock
	launch LaunchFunc
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New builds a stopped Scheduler. Call Reload to register persisted entries
// and Start to begin firing.
func New(
	store docsync.ScheduleStore,
	jobs docsync.JobStore,
	ids docsync.IDGenerator,
	clock docsync.Clock,
	launch LaunchFunc,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		store:   store,
		jobs:    jobs,
		ids:     ids,
		clock:   clock,
		launch:  launch,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins running registered schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron runner and waits for in-flight fires to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Reload drops every registered schedule and re-registers the enabled
// entries from the store.
func (s *Scheduler) Reload(ctx context.Context) error {
	enabled, err := s.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled schedules: %w", err)
	}

	s.mu.Lock()
	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, entry := range enabled {
		if err := s.Register(entry); err != nil {
			s.logger.Error("schedule registration failed",
				zap.String("schedule_id", entry.ID),
				zap.String("cron", entry.CronExpr),
				zap.Error(err),
			)
		}
	}
	s.logger.Info("schedules reloaded", zap.Int("registered", s.Len()))
	return nil
}

// Register adds one entry to the cron runner.
func (s *Scheduler) Register(entry docsync.ScheduleEntry) error {
	entryID, err := s.cron.AddFunc(entry.CronExpr, func() { s.fire(entry) })
	if err != nil {
		return fmt.Errorf("register schedule %s (%q): %w", entry.ID, entry.CronExpr, err)
	}
	s.mu.Lock()
	s.entries[entry.ID] = entryID
	s.mu.Unlock()
	return nil
}

// Remove deregisters a schedule from the runner. The store record is the
// caller's to delete.
func (s *Scheduler) Remove(scheduleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, scheduleID)
	}
}

// Len reports the number of registered schedules.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fire creates a fresh job from the entry's stored definition and hands it
// to the launcher. A past job is never reopened.
func (s *Scheduler) fire(entry docsync.ScheduleEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	jobID, err := s.ids.NewID()
	if err != nil {
		s.logger.Error("job id generation failed",
			zap.String("schedule_id", entry.ID), zap.Error(err))
		return
	}
	now := s.clock.Now()
	job := docsync.Job{
		ID:            jobID,
		Manufacturer:  entry.Manufacturer,
		Domain:        entry.Domain,
		ProductLines:  entry.ProductLines,
		FolderPath:    entry.FolderPath,
		WeeklyRecrawl: true,
		Status:        docsync.JobStatusPending,
		Submitted:     now,
		Updated:       now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		s.logger.Error("scheduled job creation failed",
			zap.String("schedule_id", entry.ID), zap.Error(err))
		return
	}

	var nextRun *time.Time
	if schedule, err := cron.ParseStandard(entry.CronExpr); err == nil {
		next := schedule.Next(now)
		nextRun = &next
	}
	if err := s.store.MarkRun(ctx, entry.ID, now, nextRun); err != nil {
		s.logger.Warn("schedule run bookkeeping failed",
			zap.String("schedule_id", entry.ID), zap.Error(err))
	}

	s.logger.Info("schedule fired",
		zap.String("schedule_id", entry.ID),
		zap.String("job_id", jobID),
		zap.String("domain", entry.Domain),
	)
	s.launch(job)
}
