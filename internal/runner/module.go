package runner

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/executor/service"
	health "signal_bot/internal/modules/health/service"
)

// SinkGroup: fx value group, куда модули кладут свои EventSink.
const SinkGroup = `group:"event_sinks"`

func NewOptions(cfg *config.Config) Options {
	return Options{
		VerifyRetries:    cfg.Verify.MaxRetries,
		VerifyWait:       cfg.Verify.RetryWait,
		Tolerance:        cfg.Schedule.Tolerance,
		PollInterval:     cfg.Schedule.PollInterval,
		VerifyLead:       cfg.Schedule.VerifyLead,
		VerifyMaxAge:     cfg.Schedule.VerifyMaxAge,
		CallTimeout:      cfg.Executor.CallTimeout,
		ResultGrace:      cfg.Schedule.ResultGrace,
		Cooldown:         cfg.Schedule.Cooldown,
		MaxMartingale:    cfg.Schedule.MaxMartingale,
		DefaultTimeframe: cfg.DefaultTimeframe(),
		DefaultOffset:    cfg.Schedule.DefaultOffset,
		SourceOffsets:    cfg.Schedule.SourceOffsets,
		History:          cfg.Status.History,
	}
}

type SchedulerParams struct {
	fx.In

	Adapter service.Adapter
	Options Options
	Log     *zap.Logger
	Sinks   []EventSink `group:"event_sinks"`
}

func ProvideScheduler(p SchedulerParams) *Scheduler {
	return NewScheduler(p.Adapter, p.Options, p.Log.Named("scheduler"), p.Sinks...)
}

func ProvideRouter(s *Scheduler, reporter StatusReporter, log *zap.Logger) *Router {
	return NewRouter(s, reporter, log.Named("router"))
}

// RunScheduler запускает цикл на время жизни приложения. Ненулевая ошибка
// цикла (паника) завершает процесс с кодом 1, перезапуск делает supervisor.
func RunScheduler(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	s *Scheduler,
	cfg *config.Config,
	state *health.State,
	log *zap.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				err := s.Run(ctx)
				state.SetReady(false)
				if err != nil {
					log.Error("scheduler terminated", zap.Error(err))
					_ = sd.Shutdown(fx.ExitCode(1))
				}
			}()

			if cfg.Schedule.AutoStart {
				if err := s.SubmitCommand(ctx, models.CommandStart); err != nil {
					return err
				}
			}
			state.SetReady(true)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-s.Done():
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewOptions,
			ProvideScheduler,
			ProvideRouter,
		),
		fx.Invoke(RunScheduler),
	)
}
