package service

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/pkg/tracing"
)

// Adapter: возможности бэкенда исполнения, которые нужны планировщику.
// Ретраи и политика проверки живут в планировщике, не здесь.
type Adapter interface {
	// VerifyDashboard идемпотентен и ничего не меняет.
	VerifyDashboard(ctx context.Context) (models.DashboardState, error)
	// PlaceTrade ставит одну сделку. REJECTED: однозначный отказ.
	PlaceTrade(ctx context.Context, req models.TradeRequest) (models.Placement, error)
	// ReadLastResult ждёт не дольше timeout итог последней сделки.
	ReadLastResult(ctx context.Context, timeout time.Duration) (models.TradeResult, error)
}

// Traced оборачивает Adapter: span на каждый вызов и строка в лог с результатом.
type Traced struct {
	next Adapter
	log  *zap.Logger
}

var _ Adapter = (*Traced)(nil)

func NewTraced(next Adapter, log *zap.Logger) *Traced {
	if log == nil {
		log = zap.NewNop()
	}
	return &Traced{next: next, log: log}
}

func (t *Traced) VerifyDashboard(ctx context.Context) (models.DashboardState, error) {
	span, ctx := tracing.StartSpan(ctx, "executor.verify_dashboard", nil)
	start := time.Now()

	st, err := t.next.VerifyDashboard(ctx)

	span.SetTag("state", string(st))
	tracing.Finish(span, err)
	t.done("verify_dashboard", start, err, st != models.DashboardReady, zap.String("state", string(st)))
	return st, err
}

func (t *Traced) PlaceTrade(ctx context.Context, req models.TradeRequest) (models.Placement, error) {
	span, ctx := tracing.StartSpan(ctx, "executor.place_trade", opentracing.Tags{
		"pair":      req.Pair,
		"direction": string(req.Direction),
		"level":     req.Level,
	})
	start := time.Now()

	p, err := t.next.PlaceTrade(ctx, req)

	span.SetTag("placement", string(p))
	tracing.Finish(span, err)
	t.done("place_trade", start, err, p != models.PlacementPlaced,
		zap.String("pair", req.Pair),
		zap.String("direction", string(req.Direction)),
		zap.Int("level", req.Level),
		zap.String("placement", string(p)),
	)
	return p, err
}

func (t *Traced) ReadLastResult(ctx context.Context, timeout time.Duration) (models.TradeResult, error) {
	span, ctx := tracing.StartSpan(ctx, "executor.read_last_result", opentracing.Tags{
		"timeout_ms": timeout.Milliseconds(),
	})
	start := time.Now()

	r, err := t.next.ReadLastResult(ctx, timeout)

	span.SetTag("result", string(r))
	tracing.Finish(span, err)
	t.done("read_last_result", start, err, r == models.ResultUnknown, zap.String("result", string(r)))
	return r, err
}

func (t *Traced) done(op string, start time.Time, err error, negative bool, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Duration("took", time.Since(start)))
	switch {
	case err != nil:
		t.log.Warn("adapter call failed", append(fields, zap.Error(err))...)
	case negative:
		t.log.Warn("adapter call", fields...)
	default:
		t.log.Info("adapter call", fields...)
	}
}
