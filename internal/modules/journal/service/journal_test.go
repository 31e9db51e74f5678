package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"
)

func event(i int) models.Event {
	return models.Event{
		Kind:     models.EventOrder,
		Severity: models.SeverityInfo,
		Message:  "order " + string(rune('a'+i)),
		At:       time.Date(2026, 10, 14, 10, 0, i, 0, time.UTC),
		Order: &models.TradeOrder{
			ID:      "o" + string(rune('a'+i)),
			ChainID: "c1",
			Level:   i,
			Pair:    "EURUSD",
			Status:  models.OrderResultLost,
		},
	}
}

// проверки, общие для всех драйверов
func exerciseJournal(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()

	got, err := j.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	for i := 0; i < 4; i++ {
		require.NoError(t, j.Append(ctx, event(i)))
	}

	got, err = j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "order d", got[0].Message)
	assert.Equal(t, "order c", got[1].Message)
	require.NotNil(t, got[0].Order)
	assert.Equal(t, 3, got[0].Order.Level)
	assert.Equal(t, models.OrderResultLost, got[0].Order.Status)
	assert.True(t, event(3).At.Equal(got[0].At))

	got, err = j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestFileJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "journal.jsonl")
	j, err := NewFileJournal(path)
	require.NoError(t, err)

	exerciseJournal(t, j)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	assert.Error(t, j.Append(context.Background(), event(0)))

	// после перезапуска история на месте
	j, err = NewFileJournal(path)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestFileJournal_SkipsBrokenLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := NewFileJournal(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(context.Background(), event(0)))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"kind\":\"ord\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "order a", got[0].Message)
}

func TestSQLiteJournal(t *testing.T) {
	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)

	j, err := NewSQLiteJournal(context.Background(), conn)
	require.NoError(t, err)
	defer j.Close()

	exerciseJournal(t, j)

	// миграция идемпотентна
	_, err = NewSQLiteJournal(context.Background(), conn)
	require.NoError(t, err)

	var status string
	require.NoError(t, conn.QueryRow(`SELECT status FROM journal_events WHERE order_id = 'ob'`).Scan(&status))
	assert.Equal(t, string(models.OrderResultLost), status)
}

type memJournal struct {
	mu     sync.Mutex
	events []models.Event
	gate   chan struct{}
	err    error
}

func (m *memJournal) Append(_ context.Context, ev models.Event) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func (m *memJournal) Recent(context.Context, int) ([]models.Event, error) { return nil, nil }
func (m *memJournal) Close() error                                        { return nil }

func (m *memJournal) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestWriter_DrainsOnStop(t *testing.T) {
	mem := &memJournal{}
	w := NewWriter(mem, 16, zaptest.NewLogger(t))
	w.Start()

	for i := 0; i < 5; i++ {
		w.Publish(event(i))
	}
	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 5, mem.len())

	// после остановки Publish молча игнорируется
	w.Publish(event(9))
	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 5, mem.len())
}

func TestWriter_DropsWhenFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	mem := &memJournal{gate: make(chan struct{})}
	w := NewWriter(mem, 2, zap.New(core))

	// без Start буфер не разбирается
	for i := 0; i < 4; i++ {
		w.Publish(event(i))
	}
	assert.Equal(t, 2, logs.FilterMessage("journal buffer full, event dropped").Len())

	close(mem.gate)
	w.Start()
	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 2, mem.len())
}

func TestWriter_LogsAppendErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	mem := &memJournal{err: errors.New("disk full")}
	w := NewWriter(mem, 4, zap.New(core))
	w.Start()

	w.Publish(event(0))
	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("journal append failed").Len())
}

func TestNop(t *testing.T) {
	var j Journal = Nop{}
	require.NoError(t, j.Append(context.Background(), event(0)))
	got, err := j.Recent(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
