package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal_bot/internal/models"
)

const appendTimeout = 5 * time.Second

// Writer: асинхронная обёртка над Journal для планировщика.
// Publish никогда не блокирует: при полном буфере событие теряется с warning.
type Writer struct {
	journal Journal
	log     *zap.Logger

	events  chan models.Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	start   sync.Once
}

func NewWriter(j Journal, buffer int, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Writer{
		journal: j,
		log:     log,
		events:  make(chan models.Event, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (w *Writer) Publish(ev models.Event) {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.events <- ev:
	default:
		w.log.Warn("journal buffer full, event dropped",
			zap.String("kind", string(ev.Kind)),
			zap.String("message", ev.Message),
		)
	}
}

// Start запускает фоновую запись.
func (w *Writer) Start() {
	w.start.Do(func() { go w.loop() })
}

// Stop дописывает то, что уже в буфере, и ждёт завершения.
func (w *Writer) Stop(ctx context.Context) error {
	w.once.Do(func() { close(w.done) })
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer close(w.stopped)
	for {
		select {
		case ev := <-w.events:
			w.write(ev)
		case <-w.done:
			for {
				select {
				case ev := <-w.events:
					w.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(ev models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := w.journal.Append(ctx, ev); err != nil {
		w.log.Error("journal append failed", zap.Error(err))
	}
}
