package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"signal_bot/pkg/logger"
)

// коды выхода бота, после которых перезапуск бессмыслен
const (
	exitOK     = 0
	exitConfig = 2
)

type options struct {
	Binary     string        `mapstructure:"binary"`
	Args       []string      `mapstructure:"args"`
	MinBackoff time.Duration `mapstructure:"min_backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
	// процесс, проживший дольше StableAfter, сбрасывает backoff
	StableAfter time.Duration `mapstructure:"stable_after"`
	MaxRestarts int           `mapstructure:"max_restarts"` // 0: без ограничения
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// runFunc запускает один экземпляр и возвращает его код выхода.
type runFunc func(ctx context.Context) (int, error)

type supervisor struct {
	opts  options
	run   runFunc
	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time
}

func newSupervisor(opts options, run runFunc) *supervisor {
	return &supervisor{opts: opts, run: run, sleep: sleepCtx, now: time.Now}
}

// loop перезапускает бота, пока он падает. Возвращает код выхода для самого supervisor.
func (s *supervisor) loop(ctx context.Context) int {
	backoff := s.opts.MinBackoff
	restarts := 0

	for {
		started := s.now()
		code, err := s.run(ctx)
		lived := s.now().Sub(started)

		if ctx.Err() != nil {
			logger.Info("supervisor stopped, child exit code %d", code)
			return exitOK
		}
		if err != nil {
			logger.Error("start %s: %v", s.opts.Binary, err)
			return 1
		}
		switch code {
		case exitOK:
			logger.Info("child exited cleanly")
			return exitOK
		case exitConfig:
			logger.Error("child rejected its config, not restarting")
			return exitConfig
		}

		if lived >= s.opts.StableAfter {
			backoff = s.opts.MinBackoff
		}
		restarts++
		if s.opts.MaxRestarts > 0 && restarts > s.opts.MaxRestarts {
			logger.Error("child failed %d times, giving up", restarts)
			return code
		}

		logger.Error("child exited with code %d after %s, restart #%d in %s", code, lived.Round(time.Millisecond), restarts, backoff)
		if !s.sleep(ctx, backoff) {
			return exitOK
		}
		backoff = nextBackoff(backoff, s.opts.MaxBackoff)
	}
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	next := cur * 2
	if next > limit || next <= 0 {
		return limit
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// execRun запускает бинарник бота; при отмене ctx шлёт SIGTERM и ждёт StopTimeout.
func execRun(opts options) runFunc {
	return func(ctx context.Context) (int, error) {
		cmd := exec.CommandContext(ctx, opts.Binary, opts.Args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = os.Environ()
		cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
		cmd.WaitDelay = opts.StopTimeout

		if err := cmd.Start(); err != nil {
			return -1, err
		}
		logger.Info("child started pid=%d", cmd.Process.Pid)

		err := cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			return exitOK, nil
		case errors.As(err, &exitErr):
			return exitErr.ExitCode(), nil
		case ctx.Err() != nil:
			return -1, nil
		}
		return -1, err
	}
}
