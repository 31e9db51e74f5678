// Package signal разбирает свободный текст провайдеров в models.Signal.
package signal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"signal_bot/internal/models"
)

// Метки провайдеров, по ним планировщик выбирает часовой пояс.
const (
	SourceAnna      = "anna"
	SourceUTCMinus4 = "UTC-4"
	SourceCameroon  = "Cameroon"
)

const annaMarker = "anna signals"

// DefaultMartingaleInterval: шаг уровней для Anna, когда таймфрейм неизвестен.
const DefaultMartingaleInterval = 5 * time.Minute

var (
	pairLabeledRe = regexp.MustCompile(
		`(?i)(?:(?:\bCURRENCY\s+PAIR|\bPAIR)\s*:|💱|🌐|📊|🔰)\s*:?\s*([A-Z0-9]{3,8}(?:[/\-][A-Z0-9]{3,8})?(?:[ _\-]?OTC)?)`)
	pairBareRe = regexp.MustCompile(`\b([A-Z]{3}/[A-Z]{3}(?:[ _\-]?OTC)?)`)

	directionRe = regexp.MustCompile(`(?i)\b(BUY|SELL|CALL|PUT)\b|(🔼|🟩|🔽|🟥)`)

	entryTimeRe = regexp.MustCompile(
		`(?i)(?:Entry\s+Time:|Entry\s+at|TIME\s*\(UTC[^)]*\):|Entry:)\s*(\d{2}:\d{2}(?::\d{2})?)`)

	timeframeRe = regexp.MustCompile(
		`(?i)Expiration:?\s*(M1|M5|1\s*Minutes?|5\s*Minutes?|1-minute|5-minute|1M|5M)\b`)

	martingaleRe = regexp.MustCompile(
		`(?i)(?:level|protection)\s*\d*[^\d\n]*?[:\-—>]*\s*(\d{2}:\d{2}(?::\d{2})?)`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

var providerMarkers = []struct {
	marker string
	source string
}{
	{"💥 GET THIS SIGNAL HERE!", SourceUTCMinus4},
	{"💥 TRADE WITH DESMOND!", SourceCameroon},
}

type Option func(*Parser)

// WithDefaultMartingaleInterval задаёт шаг Anna-мартингейла при неизвестном таймфрейме.
func WithDefaultMartingaleInterval(d time.Duration) Option {
	return func(p *Parser) {
		if d > 0 {
			p.defaultInterval = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.log = l
		}
	}
}

// Parser хранит только настройки, состояния между сообщениями нет,
// можно звать из нескольких горутин.
type Parser struct {
	log             *zap.Logger
	defaultInterval time.Duration
}

func New(opts ...Option) *Parser {
	p := &Parser{
		log:             zap.NewNop(),
		defaultInterval: DefaultMartingaleInterval,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

var std = New()

// Parse разбирает text парсером по умолчанию.
func Parse(text string) models.Signal { return std.Parse(text) }

// Parse не паникует: ошибка в одном поле оставляет его пустым,
// остальные поля разбираются дальше.
func (p *Parser) Parse(text string) models.Signal {
	var sig models.Signal

	p.field("pair", func() error {
		sig.Pair = extractPair(text)
		return nil
	})
	p.field("direction", func() error {
		sig.Direction = extractDirection(text)
		return nil
	})
	p.field("entry_time", func() error {
		t, ok, err := extractEntryTime(text)
		if err != nil {
			return err
		}
		if ok {
			sig.EntryTime = &t
		}
		return nil
	})
	p.field("timeframe", func() error {
		sig.Timeframe = extractTimeframe(text)
		return nil
	})
	p.field("martingale_times", func() error {
		times, err := extractMartingale(text)
		sig.MartingaleTimes = times
		return err
	})
	sig.Source = detectSource(text)

	if sig.Source == SourceAnna && len(sig.MartingaleTimes) == 0 && sig.EntryTime != nil {
		interval := sig.Timeframe.Duration()
		if interval == 0 {
			interval = p.defaultInterval
		}
		sig.MartingaleTimes = []models.ClockTime{
			sig.EntryTime.Add(interval),
			sig.EntryTime.Add(2 * interval),
		}
		p.log.Debug("anna default martingale applied",
			zap.Stringer("first", sig.MartingaleTimes[0]),
			zap.Stringer("second", sig.MartingaleTimes[1]),
		)
	}

	p.log.Debug("signal parsed",
		zap.Strings("fields", sig.Fields()),
		zap.String("pair", sig.Pair),
		zap.String("direction", string(sig.Direction)),
		zap.String("timeframe", string(sig.Timeframe)),
		zap.Int("martingale", len(sig.MartingaleTimes)),
		zap.String("source", sig.Source),
		zap.Bool("actionable", sig.Actionable()),
	)
	return sig
}

func (p *Parser) field(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("signal field extraction panicked", zap.String("field", name), zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		p.log.Warn("signal field skipped", zap.String("field", name), zap.Error(err))
	}
}

func extractPair(text string) string {
	if m := pairLabeledRe.FindStringSubmatch(text); m != nil {
		return normalizePair(m[1])
	}
	if m := pairBareRe.FindStringSubmatch(text); m != nil {
		return normalizePair(m[1])
	}
	return ""
}

func normalizePair(s string) string {
	return strings.ToUpper(whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " "))
}

func extractDirection(text string) models.Direction {
	m := directionRe.FindStringSubmatch(text)
	if m == nil {
		return models.DirectionNone
	}
	tok := strings.ToUpper(m[1])
	if tok == "" {
		tok = m[2]
	}
	switch tok {
	case "BUY", "CALL", "🔼", "🟩":
		return models.DirectionBuy
	}
	return models.DirectionSell
}

func extractEntryTime(text string) (models.ClockTime, bool, error) {
	m := entryTimeRe.FindStringSubmatch(text)
	if m == nil {
		return models.ClockTime{}, false, nil
	}
	t, err := parseClock(m[1])
	if err != nil {
		return models.ClockTime{}, false, err
	}
	return t, true, nil
}

func extractTimeframe(text string) models.Timeframe {
	m := timeframeRe.FindStringSubmatch(text)
	if m == nil {
		return models.TimeframeNone
	}
	if strings.Contains(m[1], "1") {
		return models.TimeframeM1
	}
	return models.TimeframeM5
}

// extractMartingale сохраняет порядок из текста, даже если он не по времени.
func extractMartingale(text string) ([]models.ClockTime, error) {
	var (
		out  []models.ClockTime
		errs []string
	)
	for _, m := range martingaleRe.FindAllStringSubmatch(text, -1) {
		t, err := parseClock(m[1])
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		out = append(out, t)
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("invalid martingale times: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

func detectSource(text string) string {
	for _, pm := range providerMarkers {
		if strings.Contains(text, pm.marker) {
			return pm.source
		}
	}
	if strings.Contains(strings.ToLower(text), annaMarker) {
		return SourceAnna
	}
	return ""
}

// parseClock разбирает "HH:MM" или "HH:MM:SS".
func parseClock(s string) (models.ClockTime, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return models.ClockTime{}, fmt.Errorf("bad clock %q", s)
	}
	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return models.ClockTime{}, fmt.Errorf("bad clock %q: %w", s, err)
		}
		nums[i] = n
	}
	return models.NewClockTime(nums[0], nums[1], nums[2], len(parts) == 3)
}
