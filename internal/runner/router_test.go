package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"signal_bot/internal/models"
)

type fakeReporter struct {
	mu      sync.Mutex
	chatIDs []int64
	states  []models.SchedulerState
}

func (f *fakeReporter) ReplyStatus(_ context.Context, chatID int64, st models.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatIDs = append(f.chatIDs, chatID)
	f.states = append(f.states, st.State)
	return nil
}

func TestRouter_Commands(t *testing.T) {
	h := startScheduler(t, &fakeAdapter{}, testOptions())
	rep := &fakeReporter{}
	r := NewRouter(h.s, rep, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, r.OnCommand(ctx, 42, "/status"))
	require.NoError(t, r.OnCommand(ctx, 42, "/start@signal_bot"))
	h.waitState(models.StateArmed)
	require.NoError(t, r.OnCommand(ctx, 7, "/STATUS please"))
	require.NoError(t, r.OnCommand(ctx, 42, "/stop"))
	h.waitState(models.StatePaused)

	// неизвестная команда не ошибка
	require.NoError(t, r.OnCommand(ctx, 42, "/positions"))

	rep.mu.Lock()
	defer rep.mu.Unlock()
	assert.Equal(t, []int64{42, 7}, rep.chatIDs)
	assert.Equal(t, []models.SchedulerState{models.StatePaused, models.StateArmed}, rep.states)
}

func TestRouter_Signal(t *testing.T) {
	h := startScheduler(t, &fakeAdapter{}, testOptions())
	h.start()
	r := NewRouter(h.s, nil, zaptest.NewLogger(t))

	at := time.Now().Add(2 * time.Hour).UTC()
	entry, err := models.NewClockTime(at.Hour(), at.Minute(), 0, false)
	require.NoError(t, err)
	require.NoError(t, r.OnSignal(context.Background(), models.Signal{
		Pair:      "EURUSD",
		Direction: models.DirectionSell,
		EntryTime: &entry,
	}))

	require.Eventually(t, func() bool { return len(h.status().Chains) == 1 }, time.Second, 5*time.Millisecond)

	// без reporter STATUS просто логируется
	require.NoError(t, r.OnCommand(context.Background(), 42, "/status"))
}

func TestRouter_StoppedScheduler(t *testing.T) {
	s := NewScheduler(&fakeAdapter{}, testOptions(), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	cancel()
	<-s.Done()

	r := NewRouter(s, &fakeReporter{}, zaptest.NewLogger(t))
	assert.ErrorIs(t, r.OnCommand(context.Background(), 1, "/status"), ErrNotRunning)
	assert.ErrorIs(t, r.OnCommand(context.Background(), 1, "/start"), ErrNotRunning)
}
