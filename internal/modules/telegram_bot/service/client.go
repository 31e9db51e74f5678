package service

import (
	"github.com/pkg/errors"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"signal_bot/internal/modules/config"
)

// Bot: то, что нужно каналу и нотификатору от *tgbot.BotAPI.
type Bot interface {
	GetChat(config tgbot.ChatInfoConfig) (tgbot.Chat, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// Sender: только отправка, для нотификатора.
type Sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

func NewBot(cfg *config.Config) (*tgbot.BotAPI, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram connect")
	}
	b.Debug = cfg.Telegram.Debug
	return b, nil
}

// resolveChat ищет чат по id или @username и возвращает его.
func resolveChat(bot Bot, id int64, username string) (tgbot.Chat, error) {
	req := tgbot.ChatInfoConfig{ChatConfig: tgbot.ChatConfig{ChatID: id, SuperGroupUsername: username}}
	chat, err := bot.GetChat(req)
	if err != nil {
		return tgbot.Chat{}, errors.Wrapf(ErrSourceUnresolved, "%s: %v", chatRef(id, username), err)
	}
	if chat.ID == 0 {
		return tgbot.Chat{}, errors.Wrapf(ErrSourceUnresolved, "%s: empty chat", chatRef(id, username))
	}
	return chat, nil
}
