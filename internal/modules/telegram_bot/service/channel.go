package service

import (
	"context"
	"errors"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/internal/signal"
)

var (
	ErrSourceUnresolved  = errors.New("telegram: source chat not resolved")
	ErrNotSubscribed     = errors.New("telegram: no subscriber")
	ErrAlreadySubscribed = errors.New("telegram: already subscribed")
	ErrUpdatesClosed     = errors.New("telegram: update stream closed")
)

type (
	SignalFunc  func(ctx context.Context, sig models.Signal) error
	CommandFunc func(ctx context.Context, chatID int64, text string) error
)

type ChannelConfig struct {
	SourceID       int64
	SourceUsername string
	PollTimeout    int
}

// Channel слушает один чат с сигналами и раздаёт сообщения подписчику.
type Channel struct {
	bot    Bot
	parser *signal.Parser
	log    *zap.Logger
	cfg    ChannelConfig

	sourceID    int64
	sourceTitle string

	mu        sync.Mutex
	onSignal  SignalFunc
	onCommand CommandFunc
	running   bool
}

// NewChannel резолвит источник сразу: без него канал не создаётся.
func NewChannel(bot Bot, cfg ChannelConfig, parser *signal.Parser, log *zap.Logger) (*Channel, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if parser == nil {
		parser = signal.New(signal.WithLogger(log))
	}
	if cfg.SourceID == 0 && cfg.SourceUsername == "" {
		return nil, ErrSourceUnresolved
	}

	chat, err := resolveChat(bot, cfg.SourceID, cfg.SourceUsername)
	if err != nil {
		return nil, err
	}
	c := &Channel{
		bot:         bot,
		parser:      parser,
		log:         log,
		cfg:         cfg,
		sourceID:    chat.ID,
		sourceTitle: chatTitle(chat),
	}
	log.Info("signal source resolved",
		zap.Int64("chat_id", chat.ID),
		zap.String("title", c.sourceTitle),
		zap.String("type", chat.Type),
	)
	return c, nil
}

func (c *Channel) SourceID() int64 { return c.sourceID }

// Subscribe регистрирует единственного получателя сигналов и команд.
func (c *Channel) Subscribe(onSignal SignalFunc, onCommand CommandFunc) error {
	if onSignal == nil || onCommand == nil {
		return errors.New("telegram: nil callback")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onSignal != nil {
		return ErrAlreadySubscribed
	}
	c.onSignal, c.onCommand = onSignal, onCommand
	return nil
}

// Start long-poll'ит обновления до отмены ctx. Закрытие потока: ошибка.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.onSignal == nil {
		c.mu.Unlock()
		return ErrNotSubscribed
	}
	if c.running {
		c.mu.Unlock()
		return errors.New("telegram: channel already started")
	}
	c.running = true
	c.mu.Unlock()

	u := tgbot.NewUpdate(0)
	u.Timeout = c.cfg.PollTimeout
	if u.Timeout <= 0 {
		u.Timeout = 30
	}
	u.AllowedUpdates = []string{"message", "channel_post"}

	updates := c.bot.GetUpdatesChan(u)
	c.log.Info("listening for signals", zap.Int64("chat_id", c.sourceID))

	return c.consume(ctx, updates)
}

func (c *Channel) consume(ctx context.Context, updates tgbot.UpdatesChannel) error {
	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrUpdatesClosed
			}
			c.handleUpdate(ctx, upd)
		}
	}
}

func (c *Channel) handleUpdate(ctx context.Context, upd tgbot.Update) {
	msg := messageOf(upd)
	if msg == nil || msg.Chat == nil {
		return
	}
	text := textOf(msg)
	if text == "" {
		return
	}
	chatID := msg.Chat.ID

	// всё, кроме резолвнутого источника, игнорируем: и сигналы, и команды
	if chatID != c.sourceID {
		c.log.Debug("message from foreign chat dropped", zap.Int64("chat_id", chatID))
		return
	}

	if models.IsCommandText(text) {
		if err := c.onCommand(ctx, chatID, text); err != nil {
			c.log.Error("command handler failed", zap.String("text", text), zap.Error(err))
		}
		return
	}

	sig := c.parser.Parse(text)
	if !sig.Actionable() {
		c.log.Info("message is not a signal",
			zap.Strings("fields", sig.Fields()),
			zap.String("text", shorten(text, 80)),
		)
		return
	}
	c.log.Info("signal parsed",
		zap.Stringer("signal", sig),
		zap.String("source", sig.Source),
		zap.Int("message_id", msg.MessageID),
	)
	if err := c.onSignal(ctx, sig); err != nil {
		c.log.Error("signal handler failed", zap.Stringer("signal", sig), zap.Error(err))
	}
}
