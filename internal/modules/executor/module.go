package executor

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/executor/service"
)

// BridgeState нужен health: есть ли сейчас соединение с агентом.
type BridgeState interface {
	Connected() bool
}

type Out struct {
	fx.Out

	Adapter service.Adapter
	Bridge  BridgeState
}

func NewAdapter(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) Out {
	l := log.Named("executor")

	switch cfg.Executor.Mode {
	case config.ExecutorDryRun:
		l.Warn("dry run: trades are simulated")
		dry := service.NewDryRunAdapter(service.DryRunConfig{
			WinRate: cfg.Executor.DryRun.WinRate,
			Latency: cfg.Executor.DryRun.Latency,
			Seed:    cfg.Executor.DryRun.Seed,
		}, l)
		return Out{Adapter: service.NewTraced(dry, l), Bridge: alwaysConnected{}}
	}

	ws := service.NewWSAdapter(service.WSConfig{
		URL:         cfg.Executor.WSURL,
		DialTimeout: cfg.Executor.DialTimeout,
		CallTimeout: cfg.Executor.CallTimeout,
	}, l)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return ws.Close()
		},
	})
	return Out{Adapter: service.NewTraced(ws, l), Bridge: ws}
}

type alwaysConnected struct{}

func (alwaysConnected) Connected() bool { return true }

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			NewAdapter,
		),
	)
}
