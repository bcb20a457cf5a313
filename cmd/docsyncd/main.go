// Package main wires together the document sync service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/docsync/agent/internal/api"
	"github.com/docsync/agent/internal/clock/system"
	"github.com/docsync/agent/internal/config"
	"github.com/docsync/agent/internal/crawl"
	"github.com/docsync/agent/internal/docsync"
	"github.com/docsync/agent/internal/id/uuid"
	"github.com/docsync/agent/internal/logging"
	"github.com/docsync/agent/internal/orchestrator"
	"github.com/docsync/agent/internal/prochost"
	"github.com/docsync/agent/internal/scheduler"
	"github.com/docsync/agent/internal/sharepoint"
	"github.com/docsync/agent/internal/storage/memory"
	"github.com/docsync/agent/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	runJobID := flag.String("run-job", "", "Run a single job by id and exit (child mode)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs, docs, schedules, closeStores, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer closeStores()

	clock := system.New()
	idGen := uuid.New()

	crawlCfg := crawl.Config{
		UserAgent:       cfg.Crawler.UserAgent,
		Timeout:         cfg.Crawler.Timeout(),
		Delay:           cfg.Crawler.Delay(),
		TopLinksPerPage: cfg.Crawler.TopLinksPerPage,
		SettleDelay:     cfg.Browser.SettleDelay(),
		BrowserPath:     cfg.Browser.Path,
	}
	static := crawl.NewStatic(crawlCfg, logger.Named("crawl.static"))
	browser := crawl.NewBrowser(crawlCfg, logger.Named("crawl.browser"))

	uploader := sharepoint.New(sharepoint.Config{
		TenantID:     cfg.SharePoint.TenantID,
		ClientID:     cfg.SharePoint.ClientID,
		ClientSecret: cfg.SharePoint.ClientSecret,
		SiteURL:      cfg.SharePoint.SiteURL,
	}, nil, clock, logger.Named("sharepoint"))

	orch := orchestrator.New(orchestrator.Config{
		MaxPages:        cfg.Crawler.MaxPagesDefault,
		DownloadTimeout: cfg.Crawler.DownloadTimeout(),
		MaxFileSize:     cfg.Crawler.MaxFileSize(),
		UserAgent:       cfg.Crawler.UserAgent,
	}, orchestrator.Deps{
		Jobs:     jobs,
		Docs:     docs,
		Prober:   static,
		Static:   static,
		Browser:  browser,
		Uploader: uploader,
		IDs:      idGen,
		Clock:    clock,
		Logger:   logger.Named("orchestrator"),
	})

	if *runJobID != "" {
		if err := runSingleJob(ctx, jobs, orch, *runJobID); err != nil {
			logger.Error("job run failed", zap.String("job_id", *runJobID), zap.Error(err))
			os.Exit(1)
		}
		return
	}

	runner := buildRunner(cfg, *cfgPath, orch, logger)

	// The scheduler launches fired jobs through the API server so cancels
	// work uniformly. The server is built before the cron loop starts, so no
	// entry can fire into a nil server.
	var server *api.Server
	var sched *scheduler.Scheduler
	var registrar api.ScheduleRegistrar = noopRegistrar{}
	if !cfg.Host.SchedulerDisabled {
		sched = scheduler.New(schedules, jobs, idGen, clock, func(job docsync.Job) {
			server.LaunchJob(job)
		}, logger.Named("scheduler"))
		registrar = sched
	}
	server = api.NewServer(jobs, docs, schedules, registrar, runner, idGen, clock, logger)
	if sched != nil {
		if err := sched.Reload(ctx); err != nil {
			logger.Warn("schedule reload failed", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildStores selects the persistence backend. Postgres gets migrated on
// startup; memory needs no setup.
func buildStores(ctx context.Context, cfg config.Config) (
	docsync.JobStore, docsync.DocumentStore, docsync.ScheduleStore, func(), error,
) {
	switch cfg.Storage.Backend {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxConns),
			MinConns: int32(cfg.DB.MinConns),
		})
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return store, store, store, store.Close, nil
	default:
		return memory.NewJobStore(), memory.NewDocumentStore(), memory.NewScheduleStore(), func() {}, nil
	}
}

// buildRunner returns the in-process orchestrator unless a child binary is
// configured, in which case each job runs as a supervised subprocess.
// Subprocess mode requires the postgres backend so parent and child share
// job state.
func buildRunner(cfg config.Config, cfgPath string, orch *orchestrator.Orchestrator, logger *zap.Logger) api.Runner {
	if cfg.Host.Binary == "" || cfg.Storage.Backend != "postgres" {
		if cfg.Host.Binary != "" {
			logger.Warn("host.binary ignored: subprocess mode requires the postgres backend")
		}
		return api.RunnerFunc(orch.Run)
	}
	host := prochost.New(logger.Named("prochost"), cfg.Host.GracePeriod())
	return api.RunnerFunc(func(ctx context.Context, job docsync.Job) error {
		args := []string{"-run-job", job.ID}
		if cfgPath != "" {
			args = append(args, "-config", cfgPath)
		}
		return host.Run(ctx, cfg.Host.Binary, args, nil)
	})
}

// runSingleJob loads one job record and drives it to a terminal state.
func runSingleJob(ctx context.Context, jobs docsync.JobStore, orch *orchestrator.Orchestrator, jobID string) error {
	job, err := jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s already %s", jobID, job.Status)
	}
	return orch.Run(ctx, job)
}

type noopRegistrar struct{}

func (noopRegistrar) Register(docsync.ScheduleEntry) error { return nil }
func (noopRegistrar) Remove(string)                        {}
