package service

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Методы моста к агенту автоматизации.
const (
	methodVerifyDashboard = "verify_dashboard"
	methodPlaceTrade      = "place_trade"
	methodReadLastResult  = "read_last_result"
)

var ErrBridgeClosed = errors.New("executor bridge closed")

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type placeParams struct {
	Pair      string `json:"pair"`
	Direction string `json:"direction"`
	Timeframe string `json:"timeframe,omitempty"`
	Level     int    `json:"level"`
}

type readParams struct {
	TimeoutMS int64 `json:"timeout_ms"`
}

type verifyResult struct {
	State string `json:"state"`
}

type placeResult struct {
	Placement string `json:"placement"`
	Reason    string `json:"reason,omitempty"`
}

type readResult struct {
	Result string `json:"result"`
}

// RemoteError: агент ответил полем error.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.Method, e.Message)
}
