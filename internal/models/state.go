package models

import "time"

type SchedulerState string

const (
	StatePaused         SchedulerState = "PAUSED"
	StateVerifying      SchedulerState = "VERIFYING"
	StateArmed          SchedulerState = "ARMED"
	StateDispatching    SchedulerState = "DISPATCHING"
	StateAwaitingResult SchedulerState = "AWAITING_RESULT"
	StateCooldown       SchedulerState = "COOLDOWN"
)

// Running: всё кроме PAUSED.
func (s SchedulerState) Running() bool { return s != StatePaused && s != "" }

type ChainSummary struct {
	ChainID         string      `json:"chain_id"`
	Pair            string      `json:"pair"`
	Direction       Direction   `json:"direction"`
	Level           int         `json:"level"`
	Status          OrderStatus `json:"status"`
	NextFireAt      time.Time   `json:"next_fire_at"`
	RemainingLevels int         `json:"remaining_levels"`
}

// Status: снимок для команды STATUS и /status в health.
type Status struct {
	State        SchedulerState `json:"state"`
	VerifyRetry  int            `json:"verify_retry"`
	Chains       []ChainSummary `json:"chains"`
	LastOutcomes []TradeOrder   `json:"last_outcomes"`
	At           time.Time      `json:"at"`
}
