// Package prochost runs crawl jobs in a child process so a crashing browser
// cannot take the service down with it.
package prochost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// defaultGracePeriod is how long a terminated child gets to exit before it
// is killed.
const defaultGracePeriod = 10 * time.Second

// Host supervises one child process per Run call. The child is placed in
// its own process group; cancellation signals the whole group, catching any
// browser processes the child spawned.
type Host struct {
	logger      *zap.Logger
	gracePeriod time.Duration
}

// New builds a Host. gracePeriod zero selects the default.
func New(logger *zap.Logger, gracePeriod time.Duration) *Host {
	if gracePeriod <= 0 {
		gracePeriod = defaultGracePeriod
	}
	return &Host{logger: logger, gracePeriod: gracePeriod}
}

// Run starts name with args and waits for it to exit. The parent environment
// is passed through with extraEnv appended. On ctx cancellation the process
// group receives SIGTERM, then SIGKILL after the grace period. Returns the
// child's exit error, or ctx's error when cancelled.
func (h *Host) Run(ctx context.Context, name string, args []string, extraEnv []string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	pgid := cmd.Process.Pid
	h.logger.Info("child started", zap.String("cmd", name), zap.Int("pid", pgid))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		h.logExit(name, err)
		return err

	case <-ctx.Done():
		h.logger.Info("terminating child process group", zap.Int("pgid", pgid))
		if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
			h.logger.Warn("sigterm failed", zap.Int("pgid", pgid), zap.Error(err))
		}
		select {
		case err := <-done:
			h.logExit(name, err)
		case <-time.After(h.gracePeriod):
			h.logger.Warn("grace period elapsed, killing child", zap.Int("pgid", pgid))
			if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
				h.logger.Warn("sigkill failed", zap.Int("pgid", pgid), zap.Error(err))
			}
			<-done
		}
		return ctx.Err()
	}
}

func (h *Host) logExit(name string, err error) {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		h.logger.Info("child exited", zap.String("cmd", name), zap.Int("code", 0))
	case errors.As(err, &exitErr):
		h.logger.Warn("child exited",
			zap.String("cmd", name), zap.Int("code", exitErr.ExitCode()))
	default:
		h.logger.Error("child wait failed", zap.String("cmd", name), zap.Error(err))
	}
}
