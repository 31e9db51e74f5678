package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction как у платформы: "BUY"/"SELL" или пустая строка.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

type Timeframe string

const (
	TimeframeNone Timeframe = ""
	TimeframeM1   Timeframe = "M1"
	TimeframeM5   Timeframe = "M5"
)

// Duration: экспирация одной свечи, 0 для неизвестного таймфрейма.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TimeframeM1:
		return time.Minute
	case TimeframeM5:
		return 5 * time.Minute
	}
	return 0
}

func ParseTimeframe(s string) (Timeframe, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M1", "1M":
		return TimeframeM1, true
	case "M5", "5M":
		return TimeframeM5, true
	}
	return TimeframeNone, false
}

// ClockTime: время суток без даты. Дату подбирает тот, кто его использует.
type ClockTime struct {
	Hour       int
	Minute     int
	Second     int
	HasSeconds bool
}

func NewClockTime(hour, minute, second int, hasSeconds bool) (ClockTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return ClockTime{}, fmt.Errorf("clock time out of range: %02d:%02d:%02d", hour, minute, second)
	}
	if !hasSeconds {
		second = 0
	}
	return ClockTime{Hour: hour, Minute: minute, Second: second, HasSeconds: hasSeconds}, nil
}

// Add сдвигает время на d с переходом через полночь, точность сохраняется.
func (c ClockTime) Add(d time.Duration) ClockTime {
	const day = 24 * 60 * 60
	secs := c.Hour*3600 + c.Minute*60 + c.Second + int(d/time.Second)
	secs = ((secs % day) + day) % day
	out := ClockTime{
		Hour:       secs / 3600,
		Minute:     secs % 3600 / 60,
		Second:     secs % 60,
		HasSeconds: c.HasSeconds,
	}
	if !out.HasSeconds {
		out.Second = 0
	}
	return out
}

// On ставит время на дату day в его часовом поясе.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, day.Location())
}

func (c ClockTime) String() string {
	if c.HasSeconds {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Signal: результат разбора текстового сигнала. Пустые поля = не найдено.
type Signal struct {
	Pair            string
	Direction       Direction
	EntryTime       *ClockTime
	Timeframe       Timeframe
	MartingaleTimes []ClockTime

	// Source: метка провайдера (см. signal.SourceAnna и др.), пустая если не распознан.
	Source string
}

// Actionable: без пары и времени входа сигнал не исполняется.
func (s Signal) Actionable() bool {
	return s.Pair != "" && s.EntryTime != nil
}

// Fields: имена найденных полей, для логов.
func (s Signal) Fields() []string {
	var out []string
	if s.Pair != "" {
		out = append(out, "pair")
	}
	if s.Direction != DirectionNone {
		out = append(out, "direction")
	}
	if s.EntryTime != nil {
		out = append(out, "entry_time")
	}
	if s.Timeframe != TimeframeNone {
		out = append(out, "timeframe")
	}
	if len(s.MartingaleTimes) > 0 {
		out = append(out, "martingale_times")
	}
	return out
}

func (s Signal) String() string {
	entry := "-"
	if s.EntryTime != nil {
		entry = s.EntryTime.String()
	}
	mg := make([]string, 0, len(s.MartingaleTimes))
	for _, t := range s.MartingaleTimes {
		mg = append(mg, t.String())
	}
	return fmt.Sprintf("%s %s @%s tf=%s mg=[%s]",
		orDash(s.Pair), orDash(string(s.Direction)), entry, orDash(string(s.Timeframe)), strings.Join(mg, ","))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
