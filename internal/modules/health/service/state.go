package service

import (
	"sync/atomic"
	"time"

	"signal_bot/internal/models"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastEventUnix atomic.Int64 // unix, секунды
	lastEventKind atomic.Value // models.EventKind
	errors        atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	s.lastEventKind.Store(models.EventKind(""))
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// Publish делает State приёмником событий планировщика.
func (s *State) Publish(ev models.Event) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	s.lastEventUnix.Store(at.Unix())
	s.lastEventKind.Store(ev.Kind)
	if ev.Severity == models.SeverityError {
		s.errors.Add(1)
	}
}

func (s *State) LastEvent() (time.Time, models.EventKind) {
	u := s.lastEventUnix.Load()
	kind := s.lastEventKind.Load().(models.EventKind)
	if u == 0 {
		return time.Time{}, kind
	}
	return time.Unix(u, 0), kind
}

func (s *State) Errors() int64 { return s.errors.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
