package journal

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/journal/service"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/runner"
	"signal_bot/pkg/db"
)

func newFile(lc fx.Lifecycle, cfg *config.Config) (service.Journal, error) {
	j, err := service.NewFileJournal(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(j.Close))
	return j, nil
}

func newSQLite(lc fx.Lifecycle, ctx context.Context, cfg *config.Config) (service.Journal, error) {
	conn, err := db.OpenSQLite(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	j, err := service.NewSQLiteJournal(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	lc.Append(fx.StopHook(j.Close))
	return j, nil
}

func newPostgres(ctx context.Context, tx db.TxManager) (service.Journal, error) {
	return service.NewPgJournal(ctx, tx)
}

// NewWriter: sink планировщика; пишет в фоне, на остановке дописывает буфер.
func NewWriter(lc fx.Lifecycle, j service.Journal, cfg *config.Config, log *zap.Logger) *service.Writer {
	w := service.NewWriter(j, cfg.Journal.Buffer, log.Named("journal"))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.Start()
			return nil
		},
		OnStop: w.Stop,
	})
	return w
}

// Module выбирает драйвер по journal.driver.
func Module(driver string) fx.Option {
	var backend fx.Option
	switch driver {
	case config.JournalJSONL:
		backend = fx.Provide(newFile)
	case config.JournalSQLite:
		backend = fx.Provide(newSQLite)
	case config.JournalPostgres:
		backend = fx.Options(postgres.Module(), fx.Provide(newPostgres))
	default:
		backend = fx.Provide(func() service.Journal { return service.Nop{} })
	}

	return fx.Module("journal",
		backend,
		fx.Provide(
			NewWriter,
			fx.Annotate(
				func(w *service.Writer) runner.EventSink { return w },
				fx.ResultTags(runner.SinkGroup),
			),
		),
	)
}
