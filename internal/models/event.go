package models

import "time"

type EventKind string

const (
	EventTransition EventKind = "transition"
	EventOrder      EventKind = "order"
	EventAdapter    EventKind = "adapter"
	EventSignal     EventKind = "signal"
	EventCommand    EventKind = "command"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warning"
	SeverityError Severity = "error"
)

// Event: запись в журнал / уведомление оператору.
type Event struct {
	Kind     EventKind      `json:"kind"`
	Severity Severity       `json:"severity"`
	From     SchedulerState `json:"from,omitempty"`
	To       SchedulerState `json:"to,omitempty"`
	Order    *TradeOrder    `json:"order,omitempty"`
	Message  string         `json:"message"`
	At       time.Time      `json:"at"`
}
