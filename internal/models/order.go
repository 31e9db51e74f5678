package models

import "time"

type OrderStatus string

const (
	OrderPending       OrderStatus = "PENDING"
	OrderFiring        OrderStatus = "FIRING"
	OrderExecuted      OrderStatus = "EXECUTED"
	OrderFailed        OrderStatus = "FAILED"
	OrderResultWon     OrderStatus = "RESULT_WON"
	OrderResultLost    OrderStatus = "RESULT_LOST"
	OrderResultUnknown OrderStatus = "RESULT_UNKNOWN"
)

// Terminal: для ордера больше не будет переходов.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFailed, OrderResultWon, OrderResultLost, OrderResultUnknown:
		return true
	}
	return false
}

// TradeOrder: один уровень цепочки, уровень 0 базовая сделка.
type TradeOrder struct {
	ID        string      `json:"id"`
	ChainID   string      `json:"chain_id"`
	ChainSeq  uint64      `json:"chain_seq"`
	Level     int         `json:"level"`
	Pair      string      `json:"pair"`
	Direction Direction   `json:"direction"`
	Timeframe Timeframe   `json:"timeframe"`
	FireAt    time.Time   `json:"fire_at"`
	Status    OrderStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TradeRequest: то, что уходит в адаптер исполнения.
type TradeRequest struct {
	Pair      string    `json:"pair"`
	Direction Direction `json:"direction"`
	Timeframe Timeframe `json:"timeframe,omitempty"`
	Level     int       `json:"level"`
}

type DashboardState string

const (
	DashboardReady    DashboardState = "READY"
	DashboardNotReady DashboardState = "NOT_READY"
)

type Placement string

const (
	PlacementPlaced   Placement = "PLACED"
	PlacementRejected Placement = "REJECTED"
)

type TradeResult string

const (
	ResultWon     TradeResult = "WON"
	ResultLost    TradeResult = "LOST"
	ResultUnknown TradeResult = "UNKNOWN"
)

func (r TradeResult) OrderStatus() OrderStatus {
	switch r {
	case ResultWon:
		return OrderResultWon
	case ResultLost:
		return OrderResultLost
	}
	return OrderResultUnknown
}
