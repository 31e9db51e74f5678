package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal_bot/internal/models"
)

type DryRunConfig struct {
	WinRate float64
	Latency time.Duration
	Seed    int64
}

// DryRunAdapter ничего не торгует: дашборд всегда готов, сделка всегда принята,
// исход случайный с вероятностью выигрыша WinRate.
type DryRunAdapter struct {
	cfg DryRunConfig
	log *zap.Logger

	mu      sync.Mutex
	rnd     *rand.Rand
	pending bool
}

var _ Adapter = (*DryRunAdapter)(nil)

func NewDryRunAdapter(cfg DryRunConfig, log *zap.Logger) *DryRunAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DryRunAdapter{
		cfg: cfg,
		log: log,
		rnd: rand.New(rand.NewSource(seed)),
	}
}

func (d *DryRunAdapter) VerifyDashboard(ctx context.Context) (models.DashboardState, error) {
	if err := d.sleep(ctx, d.cfg.Latency); err != nil {
		return models.DashboardNotReady, err
	}
	return models.DashboardReady, nil
}

func (d *DryRunAdapter) PlaceTrade(ctx context.Context, req models.TradeRequest) (models.Placement, error) {
	if err := d.sleep(ctx, d.cfg.Latency); err != nil {
		return models.PlacementRejected, err
	}
	d.mu.Lock()
	d.pending = true
	d.mu.Unlock()
	d.log.Info("dry run: trade placed",
		zap.String("pair", req.Pair),
		zap.String("direction", string(req.Direction)),
		zap.Int("level", req.Level),
	)
	return models.PlacementPlaced, nil
}

func (d *DryRunAdapter) ReadLastResult(ctx context.Context, timeout time.Duration) (models.TradeResult, error) {
	wait := d.cfg.Latency
	if timeout < wait {
		wait = timeout
	}
	if err := d.sleep(ctx, wait); err != nil {
		return models.ResultUnknown, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.pending {
		return models.ResultUnknown, nil
	}
	d.pending = false
	if d.rnd.Float64() < d.cfg.WinRate {
		return models.ResultWon, nil
	}
	return models.ResultLost, nil
}

func (d *DryRunAdapter) sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
