package runner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"signal_bot/internal/models"
)

// время сигнала без даты ищем в пределах ±12ч от опорного момента
const clockWindow = 12 * time.Hour

// chainSpec: цепочка с уже разрешёнными абсолютными временами, индекс = уровень.
type chainSpec struct {
	pair      string
	direction models.Direction
	timeframe models.Timeframe
	fireTimes []time.Time
	source    string
}

// chain: материализован только текущий уровень, следующие лежат в оставшихся fireTimes.
type chain struct {
	id        string
	seq       uint64
	spec      chainSpec
	level     int
	order     *models.TradeOrder
	createdAt time.Time
	// spawnedAt: когда пришёл LOST, породивший текущий уровень; нулевой для базового
	spawnedAt time.Time
	// checked: для текущего ордера уже решено, нужна ли проверка дашборда
	checked   bool
}

func newChain(spec chainSpec, seq uint64, now time.Time) *chain {
	ch := &chain{
		id:        uuid.NewString(),
		seq:       seq,
		spec:      spec,
		createdAt: now,
	}
	ch.order = ch.newOrder(0, now)
	return ch
}

func (c *chain) newOrder(level int, now time.Time) *models.TradeOrder {
	return &models.TradeOrder{
		ID:        uuid.NewString(),
		ChainID:   c.id,
		ChainSeq:  c.seq,
		Level:     level,
		Pair:      c.spec.pair,
		Direction: c.spec.direction,
		Timeframe: c.spec.timeframe,
		FireAt:    c.spec.fireTimes[level],
		Status:    models.OrderPending,
		UpdatedAt: now,
	}
}

func (c *chain) hasNextLevel() bool { return c.level+1 < len(c.spec.fireTimes) }

// nextLevel заводит ордер следующего уровня мартингейла.
func (c *chain) nextLevel(now time.Time) *models.TradeOrder {
	c.level++
	c.order = c.newOrder(c.level, now)
	c.spawnedAt = now
	c.checked = false
	return c.order
}

// lateRef: от какого момента считается опоздание. Уровень, чей LOST пришёл уже
// после его FireAt, отсчитывается от прихода LOST.
func (c *chain) lateRef() time.Time {
	if c.spawnedAt.After(c.order.FireAt) {
		return c.spawnedAt
	}
	return c.order.FireAt
}

func (c *chain) remaining() int { return len(c.spec.fireTimes) - c.level - 1 }

func (c *chain) summary() models.ChainSummary {
	return models.ChainSummary{
		ChainID:         c.id,
		Pair:            c.spec.pair,
		Direction:       c.spec.direction,
		Level:           c.level,
		Status:          c.order.Status,
		NextFireAt:      c.order.FireAt,
		RemainingLevels: c.remaining(),
	}
}

// sortChains: по FireAt текущего ордера, при равенстве раньше созданная цепочка первой.
func sortChains(chains []*chain) {
	sort.SliceStable(chains, func(i, j int) bool {
		a, b := chains[i].order.FireAt, chains[j].order.FireAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return chains[i].seq < chains[j].seq
	})
}

// resolveSignal переводит времена сигнала в абсолютные моменты (UTC).
// Вход: ближайший к now момент в часовом поясе провайдера, уровни мартингейла:
// ближайшие к входу; порядок уровней как в тексте.
func resolveSignal(sig models.Signal, now time.Time, offset time.Duration, maxMartingale int) (chainSpec, error) {
	if !sig.Actionable() {
		return chainSpec{}, fmt.Errorf("signal is not actionable (fields: %s)", strings.Join(sig.Fields(), ","))
	}

	loc := time.FixedZone(zoneName(offset), int(offset/time.Second))
	entry := nearest(now.In(loc), *sig.EntryTime)

	levels := sig.MartingaleTimes
	if maxMartingale > 0 && len(levels) > maxMartingale {
		levels = levels[:maxMartingale]
	}

	times := make([]time.Time, 0, 1+len(levels))
	times = append(times, entry.UTC())
	for _, c := range levels {
		times = append(times, nearest(entry, c).UTC())
	}

	direction := sig.Direction
	if direction == models.DirectionNone {
		direction = models.DirectionBuy
	}

	return chainSpec{
		pair:      sig.Pair,
		direction: direction,
		timeframe: sig.Timeframe,
		fireTimes: times,
		source:    sig.Source,
	}, nil
}

func nearest(ref time.Time, c models.ClockTime) time.Time {
	t := c.On(ref)
	switch d := t.Sub(ref); {
	case d > clockWindow:
		t = t.AddDate(0, 0, -1)
	case d < -clockWindow:
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func zoneName(offset time.Duration) string {
	if offset == 0 {
		return "UTC"
	}
	h := offset.Hours()
	if h == float64(int(h)) {
		return fmt.Sprintf("UTC%+d", int(h))
	}
	return fmt.Sprintf("UTC%+.1f", h)
}
