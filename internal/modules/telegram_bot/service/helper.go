package service

import (
	"strconv"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func chatRef(id int64, username string) string {
	if username != "" {
		return username
	}
	return strconv.FormatInt(id, 10)
}

// messageOf: сигналы приходят и обычными сообщениями, и постами канала.
func messageOf(u tgbot.Update) *tgbot.Message {
	switch {
	case u.Message != nil:
		return u.Message
	case u.ChannelPost != nil:
		return u.ChannelPost
	}
	return nil
}

// textOf: у постов с картинкой текст лежит в подписи.
func textOf(m *tgbot.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

func chatTitle(c tgbot.Chat) string {
	if c.Title != "" {
		return c.Title
	}
	if c.UserName != "" {
		return "@" + c.UserName
	}
	return strconv.FormatInt(c.ID, 10)
}

func escape(s string) string {
	return tgbot.EscapeText(tgbot.ModeMarkdown, s)
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
