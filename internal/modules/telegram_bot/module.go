package telegram

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/telegram_bot/service"
	"signal_bot/internal/runner"
	"signal_bot/internal/signal"
)

func NewParser(cfg *config.Config, log *zap.Logger) *signal.Parser {
	return signal.New(
		signal.WithDefaultMartingaleInterval(cfg.Parser.DefaultMartingaleInterval),
		signal.WithLogger(log.Named("parser")),
	)
}

func NewChannel(cfg *config.Config, bot service.Bot, parser *signal.Parser, log *zap.Logger) (*service.Channel, error) {
	id, username := cfg.SourceChat()
	return service.NewChannel(bot, service.ChannelConfig{
		SourceID:       id,
		SourceUsername: username,
		PollTimeout:    cfg.Telegram.PollTimeout,
	}, parser, log.Named("channel"))
}

func NewNotifier(cfg *config.Config, bot service.Bot, log *zap.Logger) *service.Notifier {
	return service.NewNotifier(bot, service.NotifierConfig{
		ChatID: cfg.Telegram.NotifyChatID,
		Every:  cfg.Telegram.NotifyEvery,
		Burst:  cfg.Telegram.NotifyBurst,
	}, log.Named("notifier"))
}

// Run подписывает роутер на канал и крутит long polling и очередь уведомлений.
func Run(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	ch *service.Channel,
	n *service.Notifier,
	router *runner.Router,
	log *zap.Logger,
) error {
	if err := ch.Subscribe(router.OnSignal, router.OnCommand); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go n.Run(ctx)
			go func() {
				if err := ch.Start(ctx); err != nil {
					log.Error("telegram channel stopped", zap.Error(err))
					_ = sd.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return nil
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			fx.Annotate(service.NewBot, fx.As(new(service.Bot))),
			NewParser,
			NewChannel,
			NewNotifier,
			func(n *service.Notifier) runner.StatusReporter { return n },
			fx.Annotate(
				func(n *service.Notifier) runner.EventSink { return n },
				fx.ResultTags(runner.SinkGroup),
			),
		),
		fx.Invoke(Run),
	)
}
