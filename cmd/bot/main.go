package main

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/executor"
	"signal_bot/internal/modules/health"
	"signal_bot/internal/modules/journal"
	telegram "signal_bot/internal/modules/telegram_bot"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"
)

func main() {
	// конфиг читаем до fx: невалидный конфиг не должен ничего запускать
	cfg, err := config.NewConfig()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger.SetServiceName(cfg.Tracing.ServiceName)
	log, level, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	cfg.WatchLogLevel(func(text string) { logger.SetLevel(level, text) })

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(tracing.Config{
			ServiceName: cfg.Tracing.ServiceName,
			Host:        cfg.Tracing.Host,
			Port:        cfg.Tracing.Port,
		})
		if err != nil {
			logger.Error("tracing disabled: %v", err)
		} else {
			defer closer()
		}
	}

	app := fx.New(appOptions(cfg, log))
	if err := app.Err(); err != nil {
		log.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("signal bot starting, executor=%s journal=%s", cfg.Executor.Mode, cfg.Journal.Driver)
	app.Run()
}

// appOptions собирает граф приложения; вынесено для проверки графа в тестах.
func appOptions(cfg *config.Config, log *zap.Logger) fx.Option {
	return fx.Options(
		fx.Supply(log),
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		config.Module(cfg),
		executor.Module(),
		journal.Module(cfg.Journal.Driver),
		health.Module(),
		runner.Module(),
		telegram.Module(),
	)
}
