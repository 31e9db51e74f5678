package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"signal_bot/internal/models"
)

func clock(t *testing.T, s string) models.ClockTime {
	t.Helper()
	c, err := parseClock(s)
	require.NoError(t, err)
	return c
}

func clockStrings(ts []models.ClockTime) []string {
	out := make([]string, 0, len(ts))
	for _, c := range ts {
		out = append(out, c.String())
	}
	return out
}

func TestParse_EndToEnd(t *testing.T) {
	sig := Parse("Pair: EURUSD\nBUY\nEntry Time: 14:05:00\nExpiration: M1")

	require.True(t, sig.Actionable())
	assert.Equal(t, "EURUSD", sig.Pair)
	assert.Equal(t, models.DirectionBuy, sig.Direction)
	require.NotNil(t, sig.EntryTime)
	assert.Equal(t, "14:05:00", sig.EntryTime.String())
	assert.Equal(t, models.TimeframeM1, sig.Timeframe)
	assert.Empty(t, sig.MartingaleTimes)
	assert.Empty(t, sig.Source)
}

func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"hello world",
		"Entry Time: 99:99",
		"Pair:",
		"Level 1: 25:61",
		"💱 🔼 🔽",
		"\x00\xff\xfe",
		"PROTECTION PROTECTION PROTECTION",
		"Expiration:",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = Parse(in) }, "input %q", in)
	}
}

func TestParse_NonActionable(t *testing.T) {
	sig := Parse("BUY now\nExpiration: M5")
	assert.False(t, sig.Actionable())
	assert.Equal(t, models.DirectionBuy, sig.Direction)
	assert.Equal(t, models.TimeframeM5, sig.Timeframe)
	assert.Nil(t, sig.EntryTime)
	assert.Empty(t, sig.Pair)

	sig = Parse("Entry Time: 10:00")
	assert.False(t, sig.Actionable())
	require.NotNil(t, sig.EntryTime)
}

func TestParse_Idempotent(t *testing.T) {
	text := "💥 GET THIS SIGNAL HERE!\n💱 EUR/JPY OTC\n🔽 PUT\nTIME (UTC-04:00): 09:30\nExpiration: 5 Minutes\n1st Level → 09:35\n2nd Level → 09:40"
	first := Parse(text)
	second := Parse(text)
	assert.Equal(t, first, second)
}

func TestParse_MartingaleDocumentOrder(t *testing.T) {
	text := "Pair: GBPUSD\nSELL\nEntry Time: 12:00\nLevel 2: 12:10\nLevel 1: 12:05"
	sig := Parse(text)
	assert.Equal(t, []string{"12:10", "12:05"}, clockStrings(sig.MartingaleTimes))
}

func TestParse_ProtectionLabels(t *testing.T) {
	text := "CURRENCY PAIR: AUDCAD\nCALL\nEntry at 08:15\n🛡 PROTECTION 1: 08:20\n🛡 PROTECTION 2: 08:25"
	sig := Parse(text)
	assert.Equal(t, "AUDCAD", sig.Pair)
	assert.Equal(t, models.DirectionBuy, sig.Direction)
	require.NotNil(t, sig.EntryTime)
	assert.Equal(t, "08:15", sig.EntryTime.String())
	assert.Equal(t, []string{"08:20", "08:25"}, clockStrings(sig.MartingaleTimes))
}

func TestParse_AnnaFallback(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "M1 with seconds",
			text: "ANNA SIGNALS\nPair: EURUSD\nBUY\nEntry Time: 10:00:00\nExpiration: M1",
			want: []string{"10:01:00", "10:02:00"},
		},
		{
			name: "M5 without seconds",
			text: "anna signals vip\nPair: EURUSD\nSELL\nEntry Time: 10:00\nExpiration: M5",
			want: []string{"10:05", "10:10"},
		},
		{
			name: "unknown timeframe uses default interval",
			text: "Anna Signals\nPair: EURUSD\nSELL\nEntry Time: 23:55",
			want: []string{"00:00", "00:05"},
		},
		{
			name: "explicit levels win",
			text: "anna signals\nPair: EURUSD\nBUY\nEntry Time: 10:00\nExpiration: M1\nLevel 1: 10:03",
			want: []string{"10:03"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Parse(tt.text)
			assert.Equal(t, SourceAnna, sig.Source)
			assert.Equal(t, tt.want, clockStrings(sig.MartingaleTimes))
		})
	}
}

func TestParse_AnnaFallbackCustomInterval(t *testing.T) {
	p := New(WithDefaultMartingaleInterval(2 * time.Minute))
	sig := p.Parse("anna signals\nPair: EURUSD\nBUY\nEntry Time: 10:00")
	assert.Equal(t, []string{"10:02", "10:04"}, clockStrings(sig.MartingaleTimes))
}

func TestParse_AnnaFallbackNeedsEntry(t *testing.T) {
	sig := Parse("anna signals\nPair: EURUSD\nBUY\nExpiration: M1")
	assert.Empty(t, sig.MartingaleTimes)
}

func TestParse_Direction(t *testing.T) {
	tests := []struct {
		text string
		want models.Direction
	}{
		{"CALL", models.DirectionBuy},
		{"call it", models.DirectionBuy},
		{"buy", models.DirectionBuy},
		{"🔼 up", models.DirectionBuy},
		{"🟩", models.DirectionBuy},
		{"PUT", models.DirectionSell},
		{"Sell", models.DirectionSell},
		{"🔽", models.DirectionSell},
		{"🟥 down", models.DirectionSell},
		{"BUYER", models.DirectionNone},
		{"nothing here", models.DirectionNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.text).Direction, "text %q", tt.text)
	}
}

func TestParse_Timeframe(t *testing.T) {
	tests := []struct {
		text string
		want models.Timeframe
	}{
		{"Expiration: M1", models.TimeframeM1},
		{"Expiration: M5", models.TimeframeM5},
		{"Expiration: 1 Minute", models.TimeframeM1},
		{"Expiration: 5 Minutes", models.TimeframeM5},
		{"Expiration 5-minute", models.TimeframeM5},
		{"expiration: 1M", models.TimeframeM1},
		{"Expiration: 15 Minutes", models.TimeframeNone},
		{"M1", models.TimeframeNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.text).Timeframe, "text %q", tt.text)
	}
}

func TestParse_Pair(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Pair: EURUSD", "EURUSD"},
		{"pair:   eur/usd", "EUR/USD"},
		{"CURRENCY PAIR: GBP-JPY", "GBP-JPY"},
		{"💱 EUR/JPY OTC", "EUR/JPY OTC"},
		{"📊 AUDCAD-OTC", "AUDCAD-OTC"},
		{"Trade USD/CHF now", "USD/CHF"},
		{"repair: something", ""},
		{"no pair", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.text).Pair, "text %q", tt.text)
	}
}

func TestParse_LegacyFormat(t *testing.T) {
	text := "💥 TRADE WITH DESMOND!\n🔰 EUR/USD\n🟥 SELL\n⏰ Entry: 16:30\n⌛ Expiration 1 Minute\nLevel 1 — 16:31\nLevel 2 — 16:32"
	sig := Parse(text)
	assert.Equal(t, SourceCameroon, sig.Source)
	assert.Equal(t, "EUR/USD", sig.Pair)
	assert.Equal(t, models.DirectionSell, sig.Direction)
	require.NotNil(t, sig.EntryTime)
	assert.Equal(t, clock(t, "16:30"), *sig.EntryTime)
	assert.Equal(t, models.TimeframeM1, sig.Timeframe)
	assert.Equal(t, []string{"16:31", "16:32"}, clockStrings(sig.MartingaleTimes))
}

func TestParse_InvalidTimesLeftAbsent(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := New(WithLogger(zap.New(core)))

	sig := p.Parse("Pair: EURUSD\nBUY\nEntry Time: 25:70\nLevel 1: 10:05\nLevel 2: 10:99")

	assert.Equal(t, "EURUSD", sig.Pair)
	assert.Nil(t, sig.EntryTime)
	assert.False(t, sig.Actionable())
	assert.Equal(t, []string{"10:05"}, clockStrings(sig.MartingaleTimes))
	assert.Equal(t, 2, logs.FilterMessage("signal field skipped").Len())
}

func TestParse_Source(t *testing.T) {
	assert.Equal(t, SourceUTCMinus4, Parse("💥 GET THIS SIGNAL HERE!\nPair: EURUSD").Source)
	assert.Equal(t, SourceCameroon, Parse("💥 TRADE WITH DESMOND!").Source)
	assert.Equal(t, SourceAnna, Parse("from Anna Signals").Source)
	assert.Empty(t, Parse("random").Source)
}
