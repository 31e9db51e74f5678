package runner

import (
	"time"

	"signal_bot/internal/models"
)

type Options struct {
	// VerifyRetries: сколько повторов после первой неудачной проверки дашборда.
	VerifyRetries int
	VerifyWait    time.Duration

	// Tolerance: ордер, замеченный позже FireAt+Tolerance, не исполняется.
	Tolerance    time.Duration
	PollInterval time.Duration
	VerifyLead   time.Duration
	// VerifyMaxAge: сколько живёт последнее подтверждение, что дашборд в порядке.
	VerifyMaxAge time.Duration
	CallTimeout  time.Duration
	ResultGrace  time.Duration
	Cooldown     time.Duration

	// MaxMartingale ограничивает число уровней после базового, 0: без ограничения.
	MaxMartingale    int
	DefaultTimeframe models.Timeframe

	DefaultOffset time.Duration
	SourceOffsets map[string]time.Duration

	History   int
	InboxSize int
}

func DefaultOptions() Options {
	return Options{
		VerifyRetries:    3,
		VerifyWait:       3 * time.Minute,
		Tolerance:        5 * time.Second,
		PollInterval:     time.Second,
		VerifyLead:       15 * time.Second,
		VerifyMaxAge:     15 * time.Second,
		CallTimeout:      30 * time.Second,
		ResultGrace:      30 * time.Second,
		Cooldown:         time.Second,
		DefaultTimeframe: models.TimeframeM5,
		SourceOffsets: map[string]time.Duration{
			"utc-4":    -4 * time.Hour,
			"cameroon": time.Hour,
		},
		History:   10,
		InboxSize: 64,
	}
}

// withDefaults заполняет нулевые поля, которые не могут быть нулём.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.VerifyRetries < 0 {
		o.VerifyRetries = 0
	}
	if o.VerifyWait <= 0 {
		o.VerifyWait = d.VerifyWait
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.VerifyMaxAge <= 0 {
		o.VerifyMaxAge = o.VerifyLead
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	if o.DefaultTimeframe.Duration() == 0 {
		o.DefaultTimeframe = d.DefaultTimeframe
	}
	if o.History <= 0 {
		o.History = d.History
	}
	if o.InboxSize <= 0 {
		o.InboxSize = d.InboxSize
	}
	if o.SourceOffsets == nil {
		o.SourceOffsets = map[string]time.Duration{}
	}
	return o
}

// resultTimeout: одна свеча плюс запас на отрисовку результата.
func (o Options) resultTimeout(tf models.Timeframe) time.Duration {
	d := tf.Duration()
	if d == 0 {
		d = o.DefaultTimeframe.Duration()
	}
	return d + o.ResultGrace
}
