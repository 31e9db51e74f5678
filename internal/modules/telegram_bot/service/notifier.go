package service

import (
	"context"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"signal_bot/internal/models"
)

const notifyQueue = 64

type NotifierConfig struct {
	ChatID int64
	Every  time.Duration
	Burst  int
}

type outgoing struct {
	chatID int64
	text   string
}

// Notifier пересылает события оператору с ограничением частоты.
// Publish не блокирует: при переполнении очереди сообщение теряется.
type Notifier struct {
	bot     Sender
	chatID  int64
	limiter *rate.Limiter
	queue   chan outgoing
	log     *zap.Logger
}

func NewNotifier(bot Sender, cfg NotifierConfig, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.Every > 0 {
		limit = rate.Every(cfg.Every)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Notifier{
		bot:     bot,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(limit, burst),
		queue:   make(chan outgoing, notifyQueue),
		log:     log,
	}
}

func (n *Notifier) Publish(ev models.Event) {
	if n.chatID == 0 {
		return
	}
	text := formatEvent(ev)
	if text == "" {
		return
	}
	select {
	case n.queue <- outgoing{chatID: n.chatID, text: text}:
	default:
		n.log.Warn("notify queue full, event dropped", zap.String("kind", string(ev.Kind)))
	}
}

// ReplyStatus отвечает в чат, откуда пришла команда, иначе в чат оператора.
func (n *Notifier) ReplyStatus(ctx context.Context, chatID int64, st models.Status) error {
	if chatID == 0 {
		chatID = n.chatID
	}
	if chatID == 0 {
		return nil
	}
	return n.send(ctx, outgoing{chatID: chatID, text: formatStatus(st)})
}

// Run отправляет очередь до отмены ctx.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-n.queue:
			if err := n.send(ctx, m); err != nil && ctx.Err() == nil {
				n.log.Error("notify failed", zap.Int64("chat_id", m.chatID), zap.Error(err))
			}
		}
	}
}

func (n *Notifier) send(ctx context.Context, m outgoing) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbot.NewMessage(m.chatID, m.text)
	msg.ParseMode = tgbot.ModeMarkdown
	msg.DisableWebPagePreview = true
	_, err := n.bot.Send(msg)
	return err
}
