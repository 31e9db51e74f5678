package service

import (
	"context"
	"time"

	"github.com/bytedance/sonic"

	"signal_bot/internal/models"
)

// Journal: append-only история событий планировщика.
type Journal interface {
	Append(ctx context.Context, ev models.Event) error
	// Recent возвращает последние limit событий, новые первыми.
	Recent(ctx context.Context, limit int) ([]models.Event, error)
	Close() error
}

// record: плоская строка для табличных драйверов.
type record struct {
	At       time.Time
	Kind     string
	Severity string
	OrderID  string
	ChainID  string
	Status   string
	Message  string
	Payload  []byte
}

func toRecord(ev models.Event) (record, error) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return record{}, err
	}
	r := record{
		At:       ev.At.UTC(),
		Kind:     string(ev.Kind),
		Severity: string(ev.Severity),
		Message:  ev.Message,
		Payload:  payload,
	}
	if ev.Order != nil {
		r.OrderID = ev.Order.ID
		r.ChainID = ev.Order.ChainID
		r.Status = string(ev.Order.Status)
	}
	return r, nil
}

func fromPayload(payload []byte) (models.Event, error) {
	var ev models.Event
	err := sonic.Unmarshal(payload, &ev)
	return ev, err
}

// Nop: журнал выключен.
type Nop struct{}

func (Nop) Append(context.Context, models.Event) error          { return nil }
func (Nop) Recent(context.Context, int) ([]models.Event, error) { return nil, nil }
func (Nop) Close() error                                        { return nil }
