package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/pkg/logger"
)

type script struct {
	codes  []int
	calls  int
	lived  time.Duration
	clock  time.Time
	sleeps []time.Duration
}

func (s *script) run(context.Context) (int, error) {
	code := s.codes[s.calls]
	s.calls++
	s.clock = s.clock.Add(s.lived)
	return code, nil
}

func testSupervisor(t *testing.T, sc *script, opts options) *supervisor {
	t.Helper()
	_, _, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	s := newSupervisor(opts, sc.run)
	s.now = func() time.Time { return sc.clock }
	s.sleep = func(_ context.Context, d time.Duration) bool {
		sc.sleeps = append(sc.sleeps, d)
		return true
	}
	return s
}

func baseOptions() options {
	return options{
		Binary:      "bot",
		MinBackoff:  time.Second,
		MaxBackoff:  4 * time.Second,
		StableAfter: time.Minute,
	}
}

func TestLoop_RestartsWithBackoff(t *testing.T) {
	sc := &script{codes: []int{1, 1, 1, 1, 0}, lived: time.Second}
	code := testSupervisor(t, sc, baseOptions()).loop(context.Background())

	assert.Equal(t, exitOK, code)
	assert.Equal(t, 5, sc.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}, sc.sleeps)
}

func TestLoop_StableRunResetsBackoff(t *testing.T) {
	sc := &script{codes: []int{1, 1, 1, 0}, lived: 2 * time.Minute}
	testSupervisor(t, sc, baseOptions()).loop(context.Background())

	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, sc.sleeps)
}

func TestLoop_ConfigErrorNotRestarted(t *testing.T) {
	sc := &script{codes: []int{exitConfig}}
	code := testSupervisor(t, sc, baseOptions()).loop(context.Background())

	assert.Equal(t, exitConfig, code)
	assert.Equal(t, 1, sc.calls)
	assert.Empty(t, sc.sleeps)
}

func TestLoop_MaxRestarts(t *testing.T) {
	opts := baseOptions()
	opts.MaxRestarts = 2
	sc := &script{codes: []int{1, 1, 1, 1}}
	code := testSupervisor(t, sc, opts).loop(context.Background())

	assert.Equal(t, 1, code)
	assert.Equal(t, 3, sc.calls)
}

func TestLoop_StartError(t *testing.T) {
	s := testSupervisor(t, &script{}, baseOptions())
	s.run = func(context.Context) (int, error) { return -1, errors.New("no such file") }

	assert.Equal(t, 1, s.loop(context.Background()))
}

func TestLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := testSupervisor(t, &script{}, baseOptions())
	s.run = func(context.Context) (int, error) {
		cancel()
		return -1, nil
	}

	assert.Equal(t, exitOK, s.loop(ctx))
}

func TestLoadOptions(t *testing.T) {
	t.Setenv("SIGNAL_BOT_SUPERVISE_MAX_BACKOFF", "30s")

	opts, err := loadOptions([]string{"/usr/local/bin/bot", "-v"})
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/bot", opts.Binary)
	assert.Equal(t, []string{"-v"}, opts.Args)
	assert.Equal(t, time.Second, opts.MinBackoff)
	assert.Equal(t, 30*time.Second, opts.MaxBackoff)

	t.Setenv("SIGNAL_BOT_SUPERVISE_MIN_BACKOFF", "1m")
	_, err = loadOptions(nil)
	assert.Error(t, err)
}

func TestExecRun(t *testing.T) {
	run := execRun(options{Binary: "sh", Args: []string{"-c", "exit 3"}, StopTimeout: time.Second})
	code, err := run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	run = execRun(options{Binary: "/definitely/not/here"})
	_, err = run(context.Background())
	assert.Error(t, err)
}
