package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"signal_bot/internal/models"
)

func orderEvent(st models.OrderStatus, reason string) models.Event {
	return models.Event{
		Kind:     models.EventOrder,
		Severity: models.SeverityInfo,
		Order: &models.TradeOrder{
			Pair:      "EURUSD",
			Direction: models.DirectionBuy,
			Level:     1,
			Status:    st,
			Reason:    reason,
		},
	}
}

func TestNotifier_PublishFiltersAndSends(t *testing.T) {
	bot := newFakeBot()
	n := NewNotifier(bot, NotifierConfig{ChatID: operatorChat}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Publish(orderEvent(models.OrderPending, ""))
	n.Publish(models.Event{Kind: models.EventAdapter, Severity: models.SeverityInfo, Message: "verify_dashboard: READY"})
	n.Publish(orderEvent(models.OrderResultWon, ""))
	n.Publish(models.Event{Kind: models.EventTransition, From: models.StateArmed, To: models.StatePaused, Message: "stop command"})

	require.Eventually(t, func() bool { return len(bot.messages()) == 2 }, 2*time.Second, 5*time.Millisecond)

	msgs := bot.messages()
	assert.Equal(t, operatorChat, msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "RESULT_WON")
	assert.Contains(t, msgs[1].Text, "PAUSED")
	assert.Equal(t, "Markdown", msgs[1].ParseMode)
}

func TestNotifier_NoChatIsSilent(t *testing.T) {
	bot := newFakeBot()
	n := NewNotifier(bot, NotifierConfig{}, zaptest.NewLogger(t))

	n.Publish(orderEvent(models.OrderFailed, "late"))
	require.NoError(t, n.ReplyStatus(context.Background(), 0, models.Status{State: models.StatePaused}))
	assert.Empty(t, bot.messages())
}

func TestNotifier_QueueFullDrops(t *testing.T) {
	n := NewNotifier(newFakeBot(), NotifierConfig{ChatID: operatorChat}, zaptest.NewLogger(t))

	// Run не запущен: очередь заполняется, Publish не блокируется
	for i := 0; i < notifyQueue+10; i++ {
		n.Publish(orderEvent(models.OrderFailed, "late"))
	}
	assert.Len(t, n.queue, notifyQueue)
}

func TestNotifier_ReplyStatus(t *testing.T) {
	bot := newFakeBot()
	n := NewNotifier(bot, NotifierConfig{ChatID: operatorChat, Every: time.Millisecond, Burst: 1}, zaptest.NewLogger(t))

	st := models.Status{
		State: models.StateArmed,
		Chains: []models.ChainSummary{{
			Pair:            "EURUSD",
			Direction:       models.DirectionSell,
			Status:          models.OrderPending,
			NextFireAt:      time.Date(2026, 10, 14, 14, 5, 0, 0, time.UTC),
			RemainingLevels: 2,
		}},
		LastOutcomes: []models.TradeOrder{{Pair: "GBPUSD", Status: models.OrderResultLost}},
	}
	require.NoError(t, n.ReplyStatus(context.Background(), sourceChat, st))

	msgs := bot.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, sourceChat, msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "ARMED")
	assert.Contains(t, msgs[0].Text, "14:05:00")
	assert.Contains(t, msgs[0].Text, "GBPUSD")
	assert.Contains(t, msgs[0].Text, "❌")
}

func TestFormatEvent(t *testing.T) {
	assert.Empty(t, formatEvent(orderEvent(models.OrderExecuted, "")))
	assert.Contains(t, formatEvent(orderEvent(models.OrderFailed, "late by 7s")), "late by 7s")
	assert.Contains(t, formatEvent(models.Event{Kind: models.EventAdapter, Severity: models.SeverityError, Message: "dial failed"}), "dial failed")
	assert.Empty(t, formatEvent(models.Event{Kind: models.EventSignal, Message: "ignored"}))
}
