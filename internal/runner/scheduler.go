package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/executor/service"
)

var (
	// ErrFatal: паника внутри цикла; процесс должен завершиться, supervisor перезапустит.
	ErrFatal = errors.New("scheduler: fatal failure")
	// ErrNotRunning: цикл не запущен или уже завершился.
	ErrNotRunning = errors.New("scheduler: not running")
)

// EventSink получает события планировщика. Publish не должен блокировать.
type EventSink interface {
	Publish(ev models.Event)
}

type requestKind int

const (
	reqSignal requestKind = iota
	reqCommand
	reqStatus
	reqChain
)

type request struct {
	kind    requestKind
	signal  models.Signal
	command models.Command
	chain   chainSpec
	reply   chan models.Status
}

type callKind int

const (
	callVerify callKind = iota
	callPlace
	callRead
)

func (k callKind) String() string {
	switch k {
	case callVerify:
		return "verify_dashboard"
	case callPlace:
		return "place_trade"
	}
	return "read_last_result"
}

type call struct {
	kind   callKind
	chain  *chain
	cancel context.CancelFunc
}

type callResult struct {
	kind      callKind
	dashboard models.DashboardState
	placement models.Placement
	result    models.TradeResult
	err       error
	panicked  any
}

// Scheduler: конечный автомат исполнения сигналов.
//
// Состоянием владеет одна горутина (Run). Сигналы, команды и запросы статуса
// приходят через один inbox; вызовы адаптера идут в отдельной горутине, пока
// цикл продолжает обслуживать inbox, но одновременно не больше одного вызова.
type Scheduler struct {
	adapter service.Adapter
	sinks   []EventSink
	log     *zap.Logger
	opts    Options
	now     func() time.Time

	inbox chan request
	calls chan callResult
	done  chan struct{}

	started atomic.Bool
	view    atomic.Value // models.SchedulerState

	// дальше всё принадлежит горутине Run
	state         models.SchedulerState
	chains        []*chain
	history       []models.TradeOrder
	seq           uint64
	inflight      *call
	stopping      bool
	retry         int
	verifyAt      time.Time
	verifyFor     *chain
	dashboardOK   time.Time // последний вызов адаптера, подтвердивший рабочий дашборд
	cooldownUntil time.Time
}

func NewScheduler(adapter service.Adapter, opts Options, log *zap.Logger, sinks ...EventSink) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()
	s := &Scheduler{
		adapter: adapter,
		sinks:   sinks,
		log:     log,
		opts:    opts,
		now:     time.Now,
		inbox:   make(chan request, opts.InboxSize),
		calls:   make(chan callResult, 1),
		done:    make(chan struct{}),
		state:   models.StatePaused,
	}
	s.view.Store(models.StatePaused)
	return s
}

// State: последнее состояние, безопасно из любой горутины.
func (s *Scheduler) State() models.SchedulerState {
	return s.view.Load().(models.SchedulerState)
}

func (s *Scheduler) Done() <-chan struct{} { return s.done }

// SubmitSignal ставит сигнал в очередь, блокируется только при полном inbox.
func (s *Scheduler) SubmitSignal(ctx context.Context, sig models.Signal) error {
	return s.submit(ctx, request{kind: reqSignal, signal: sig})
}

func (s *Scheduler) SubmitCommand(ctx context.Context, cmd models.Command) error {
	return s.submit(ctx, request{kind: reqCommand, command: cmd})
}

// Status отвечает в любом состоянии, в том числе во время вызова адаптера.
func (s *Scheduler) Status(ctx context.Context) (models.Status, error) {
	reply := make(chan models.Status, 1)
	if err := s.submit(ctx, request{kind: reqStatus, reply: reply}); err != nil {
		return models.Status{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return models.Status{}, ErrNotRunning
	case <-ctx.Done():
		return models.Status{}, ctx.Err()
	}
}

func (s *Scheduler) submit(ctx context.Context, req request) error {
	select {
	case <-s.done:
		return ErrNotRunning
	default:
	}
	select {
	case s.inbox <- req:
		return nil
	case <-s.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run крутит цикл до отмены ctx (nil) или до паники внутри (ErrFatal).
// Сам себя не перезапускает.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("scheduler: already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler panic", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrFatal, r)
		}
	}()

	s.log.Info("scheduler started", zap.String("state", string(s.state)))

	timer := time.NewTimer(s.opts.PollInterval)
	defer timer.Stop()

	for {
		s.advance(loopCtx)
		timer.Reset(s.nextWake())

		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case req := <-s.inbox:
			s.handle(loopCtx, req)
		case res := <-s.calls:
			s.complete(loopCtx, res)
		case <-timer.C:
		}
	}
}

// advance выполняет все действия, которые уже пора сделать.
func (s *Scheduler) advance(ctx context.Context) {
	for i := 0; i < 32 && s.step(ctx); i++ {
	}
}

func (s *Scheduler) step(ctx context.Context) bool {
	if s.inflight != nil {
		return false
	}
	now := s.now()

	switch s.state {
	case models.StateVerifying:
		if now.Before(s.verifyAt) {
			return false
		}
		s.launchVerify(ctx)
		return true

	case models.StateCooldown:
		if now.Before(s.cooldownUntil) {
			return false
		}
		s.transition(models.StateArmed, "cooldown done")
		return true

	case models.StateArmed:
		if s.expireLate(now) {
			return true
		}
		ch := s.nextDue()
		if ch == nil {
			return false
		}
		if !ch.checked {
			if now.Before(ch.order.FireAt.Add(-s.opts.VerifyLead)) {
				return false
			}
			if s.needsVerify(now) {
				s.beginVerify(ch, "pre-fire check")
				return true
			}
			ch.checked = true
		}
		if now.Before(ch.order.FireAt) {
			return false
		}
		s.dispatch(ctx, ch)
		return true
	}
	return false
}

// nextWake: когда снова проверять время. Команды будят цикл сами через inbox.
func (s *Scheduler) nextWake() time.Duration {
	wait := s.opts.PollInterval
	if s.inflight != nil {
		return wait
	}

	var at time.Time
	switch s.state {
	case models.StateVerifying:
		at = s.verifyAt
	case models.StateCooldown:
		at = s.cooldownUntil
	case models.StateArmed:
		if ch := s.nextDue(); ch != nil {
			at = ch.order.FireAt
			if !ch.checked {
				at = at.Add(-s.opts.VerifyLead)
			}
		}
	}
	if !at.IsZero() {
		if d := at.Sub(s.now()); d < wait {
			wait = d
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

func (s *Scheduler) handle(ctx context.Context, req request) {
	switch req.kind {
	case reqStatus:
		req.reply <- s.snapshot()
	case reqCommand:
		s.onCommand(req.command)
	case reqSignal:
		s.onSignal(req.signal)
	case reqChain:
		s.accept(req.chain)
	}
}

func (s *Scheduler) onCommand(cmd models.Command) {
	s.log.Info("command received", zap.String("command", string(cmd)), zap.String("state", string(s.state)))
	s.emit(models.Event{Kind: models.EventCommand, Severity: models.SeverityInfo, Message: string(cmd)})

	switch cmd {
	case models.CommandStart:
		if s.stopping {
			s.log.Warn("start ignored: stop in progress")
			return
		}
		if s.state != models.StatePaused {
			s.log.Info("start ignored: already running", zap.String("state", string(s.state)))
			return
		}
		s.beginVerify(nil, "start command")

	case models.CommandStop:
		if s.stopping {
			return
		}
		if s.inflight != nil {
			s.stopping = true
			// размещение не прерываем, ожидание результата и проверку можно
			if s.inflight.kind != callPlace {
				s.inflight.cancel()
			}
			s.log.Info("stop requested, waiting for in-flight call", zap.Stringer("call", s.inflight.kind))
			return
		}
		if s.state == models.StatePaused {
			s.log.Info("stop ignored: already paused")
			return
		}
		s.pause("stop command")

	case models.CommandStatus:
		st := s.snapshot()
		s.log.Info("status",
			zap.String("state", string(st.State)),
			zap.Int("chains", len(st.Chains)),
			zap.Int("verify_retry", st.VerifyRetry),
		)
	}
}

func (s *Scheduler) onSignal(sig models.Signal) {
	if !s.state.Running() || s.stopping {
		s.log.Info("signal ignored: scheduler paused", zap.Stringer("signal", sig))
		s.emit(models.Event{
			Kind:     models.EventSignal,
			Severity: models.SeverityWarn,
			Message:  "ignored while paused: " + sig.String(),
		})
		return
	}

	offset := s.offsetFor(sig.Source)
	spec, err := resolveSignal(sig, s.now(), offset, s.opts.MaxMartingale)
	if err != nil {
		s.log.Warn("signal rejected", zap.Error(err), zap.Stringer("signal", sig))
		return
	}
	if sig.Direction == models.DirectionNone {
		s.log.Warn("signal without direction, using BUY", zap.Stringer("signal", sig))
	}
	if n := s.opts.MaxMartingale; n > 0 && len(sig.MartingaleTimes) > n {
		s.log.Warn("martingale levels truncated",
			zap.Int("given", len(sig.MartingaleTimes)),
			zap.Int("max", n),
		)
	}
	s.accept(spec)
}

func (s *Scheduler) offsetFor(source string) time.Duration {
	if source == "" {
		return s.opts.DefaultOffset
	}
	if off, ok := s.opts.SourceOffsets[strings.ToLower(source)]; ok {
		return off
	}
	return s.opts.DefaultOffset
}

func (s *Scheduler) accept(spec chainSpec) {
	if len(spec.fireTimes) == 0 {
		return
	}
	if !s.state.Running() || s.stopping {
		s.log.Info("chain ignored: scheduler paused", zap.String("pair", spec.pair))
		return
	}
	s.seq++
	ch := newChain(spec, s.seq, s.now())
	s.chains = append(s.chains, ch)

	fire := make([]string, 0, len(spec.fireTimes))
	for _, t := range spec.fireTimes {
		fire = append(fire, t.Format(time.RFC3339))
	}
	s.log.Info("chain accepted",
		zap.String("chain_id", ch.id),
		zap.String("pair", spec.pair),
		zap.String("direction", string(spec.direction)),
		zap.String("timeframe", string(spec.timeframe)),
		zap.String("source", spec.source),
		zap.Strings("fire_at", fire),
	)
	s.emitOrder(ch.order, models.SeverityInfo, "order pending")
}

// nextDue: ближайший ордер, ожидающий исполнения.
func (s *Scheduler) nextDue() *chain {
	sortChains(s.chains)
	for _, ch := range s.chains {
		if ch.order.Status == models.OrderPending {
			return ch
		}
	}
	return nil
}

// needsVerify: дашборд давно не подтверждался ни проверкой, ни удачным вызовом.
func (s *Scheduler) needsVerify(now time.Time) bool {
	return s.dashboardOK.IsZero() || now.Sub(s.dashboardOK) > s.opts.VerifyMaxAge
}

// expireLate помечает FAILED ордера, чьё время прошло больше чем на Tolerance.
func (s *Scheduler) expireLate(now time.Time) bool {
	sortChains(s.chains)
	var expired []*chain
	for _, ch := range s.chains {
		o := ch.order
		if o.Status != models.OrderPending {
			continue
		}
		if late := now.Sub(ch.lateRef()); late > s.opts.Tolerance {
			expired = append(expired, ch)
		}
	}
	for _, ch := range expired {
		late := now.Sub(ch.lateRef()).Round(time.Millisecond)
		s.finish(ch, models.OrderFailed, "late by "+late.String())
		s.removeChain(ch)
	}
	return len(expired) > 0
}

func (s *Scheduler) beginVerify(ch *chain, reason string) {
	s.verifyFor = ch
	s.retry = 0
	s.verifyAt = s.now()
	s.transition(models.StateVerifying, reason)
}

func (s *Scheduler) launchVerify(ctx context.Context) {
	s.log.Debug("verifying dashboard", zap.Int("attempt", s.retry+1))
	s.launch(ctx, callVerify, s.verifyFor, s.opts.CallTimeout, func(ctx context.Context) callResult {
		st, err := s.adapter.VerifyDashboard(ctx)
		return callResult{dashboard: st, err: err}
	})
}

func (s *Scheduler) dispatch(ctx context.Context, ch *chain) {
	o := ch.order
	s.setStatus(o, models.OrderFiring)
	s.emitOrder(o, models.SeverityInfo, "firing")
	s.transition(models.StateDispatching, fmt.Sprintf("%s level %d due", o.Pair, o.Level))

	req := models.TradeRequest{
		Pair:      o.Pair,
		Direction: o.Direction,
		Timeframe: o.Timeframe,
		Level:     o.Level,
	}
	s.launch(ctx, callPlace, ch, s.opts.CallTimeout, func(ctx context.Context) callResult {
		p, err := s.adapter.PlaceTrade(ctx, req)
		return callResult{placement: p, err: err}
	})
}

func (s *Scheduler) awaitResult(ctx context.Context, ch *chain) {
	timeout := s.opts.resultTimeout(ch.order.Timeframe)
	s.launch(ctx, callRead, ch, timeout+s.opts.CallTimeout, func(ctx context.Context) callResult {
		r, err := s.adapter.ReadLastResult(ctx, timeout)
		return callResult{result: r, err: err}
	})
}

// launch запускает вызов адаптера; результат вернётся в цикл через s.calls.
func (s *Scheduler) launch(ctx context.Context, kind callKind, ch *chain, timeout time.Duration, fn func(context.Context) callResult) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	s.inflight = &call{kind: kind, chain: ch, cancel: cancel}

	go func() {
		defer cancel()
		res := func() (res callResult) {
			defer func() {
				if r := recover(); r != nil {
					res = callResult{panicked: r}
				}
			}()
			return fn(cctx)
		}()
		res.kind = kind
		s.calls <- res
	}()
}

func (s *Scheduler) complete(ctx context.Context, res callResult) {
	c := s.inflight
	s.inflight = nil
	if c == nil {
		return
	}
	c.cancel()
	if res.panicked != nil {
		panic(fmt.Sprintf("adapter %s: %v", res.kind, res.panicked))
	}

	switch res.kind {
	case callVerify:
		s.onVerified(res)
	case callPlace:
		s.onPlaced(ctx, c.chain, res)
	case callRead:
		s.onResult(c.chain, res)
	}
}

func (s *Scheduler) onVerified(res callResult) {
	ready := res.err == nil && res.dashboard == models.DashboardReady
	s.emitAdapter(callVerify, string(res.dashboard), res.err, !ready)

	if s.stopping {
		s.stopping = false
		s.pause("stop command")
		return
	}

	if ready {
		s.retry = 0
		if s.verifyFor != nil {
			s.verifyFor.checked = true
		}
		s.verifyFor = nil
		s.dashboardOK = s.now()
		s.transition(models.StateArmed, "dashboard ready")
		return
	}

	if s.retry < s.opts.VerifyRetries {
		s.retry++
		s.verifyAt = s.now().Add(s.opts.VerifyWait)
		s.log.Warn("dashboard not ready, retry scheduled",
			zap.Int("retry", s.retry),
			zap.Int("max_retries", s.opts.VerifyRetries),
			zap.Duration("wait", s.opts.VerifyWait),
			zap.Error(res.err),
		)
		return
	}

	reason := fmt.Sprintf("dashboard not ready after %d retries", s.opts.VerifyRetries)
	s.log.Error("dashboard verification exhausted", zap.Int("retries", s.opts.VerifyRetries), zap.Error(res.err))
	if ch := s.verifyFor; ch != nil {
		s.finish(ch, models.OrderFailed, reason)
		s.removeChain(ch)
	}
	s.verifyFor = nil
	s.pause(reason)
}

func (s *Scheduler) onPlaced(ctx context.Context, ch *chain, res callResult) {
	placed := res.err == nil && res.placement == models.PlacementPlaced
	s.emitAdapter(callPlace, string(res.placement), res.err, !placed)

	if s.stopping {
		s.stopping = false
		reason := "stopped during placement, trade not placed"
		if placed {
			reason = "stopped after placement, result not read"
		}
		s.finish(ch, models.OrderFailed, reason)
		s.removeChain(ch)
		s.pause("stop command")
		return
	}

	if !placed {
		reason := "rejected by platform"
		if res.err != nil {
			reason = "placement error: " + res.err.Error()
		}
		s.finish(ch, models.OrderFailed, reason)
		s.removeChain(ch)
		s.transition(models.StateArmed, "placement rejected")
		return
	}

	s.dashboardOK = s.now()
	s.setStatus(ch.order, models.OrderExecuted)
	s.emitOrder(ch.order, models.SeverityInfo, "placed")
	s.transition(models.StateAwaitingResult, "trade placed")
	s.awaitResult(ctx, ch)
}

func (s *Scheduler) onResult(ch *chain, res callResult) {
	result := res.result
	if res.err != nil || result == "" {
		result = models.ResultUnknown
	}
	s.emitAdapter(callRead, string(result), res.err, result == models.ResultUnknown)
	if res.err == nil && result != models.ResultUnknown {
		s.dashboardOK = s.now()
	}

	if s.stopping {
		s.stopping = false
		if res.err == nil && (result == models.ResultWon || result == models.ResultLost) {
			s.finish(ch, result.OrderStatus(), "stop requested, chain not continued")
		} else {
			s.finish(ch, models.OrderFailed, "stopped while awaiting result")
		}
		s.removeChain(ch)
		s.pause("stop command")
		return
	}

	s.transition(models.StateCooldown, "result "+string(result))
	s.cooldownUntil = s.now().Add(s.opts.Cooldown)

	switch result {
	case models.ResultWon:
		s.finish(ch, models.OrderResultWon, "")
		s.removeChain(ch)

	case models.ResultLost:
		s.finish(ch, models.OrderResultLost, "")
		if !ch.hasNextLevel() {
			s.log.Info("chain exhausted", zap.String("chain_id", ch.id), zap.Int("level", ch.level))
			s.removeChain(ch)
			return
		}
		now := s.now()
		o := ch.nextLevel(now)
		// следующий уровень уже на подходе: пауза съела бы допуск
		if gap := o.FireAt.Sub(now); gap <= s.opts.VerifyLead || gap <= s.opts.Cooldown {
			s.cooldownUntil = now
		}
		s.emitOrder(o, models.SeverityInfo, "martingale level scheduled")

	default:
		reason := "result not observed"
		if res.err != nil {
			reason = "result read error: " + res.err.Error()
		}
		s.finish(ch, models.OrderResultUnknown, reason)
		s.removeChain(ch)
	}
}

// pause бросает все цепочки как FAILED и уходит в PAUSED.
func (s *Scheduler) pause(reason string) {
	sortChains(s.chains)
	for _, ch := range s.chains {
		if !ch.order.Status.Terminal() {
			s.finish(ch, models.OrderFailed, "abandoned: "+reason)
		}
	}
	s.chains = nil
	s.verifyFor = nil
	s.retry = 0
	s.dashboardOK = time.Time{}
	if s.state != models.StatePaused {
		s.transition(models.StatePaused, reason)
	}
}

func (s *Scheduler) shutdown() {
	if s.inflight != nil {
		s.inflight.cancel()
		s.inflight = nil
	}
	s.stopping = false
	s.pause("shutdown")
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) removeChain(ch *chain) {
	for i, c := range s.chains {
		if c == ch {
			s.chains = append(s.chains[:i], s.chains[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) setStatus(o *models.TradeOrder, st models.OrderStatus) {
	o.Status = st
	o.UpdatedAt = s.now()
}

// finish переводит текущий ордер цепочки в терминальный статус и пишет в историю.
func (s *Scheduler) finish(ch *chain, st models.OrderStatus, reason string) {
	o := ch.order
	s.setStatus(o, st)
	o.Reason = reason

	s.history = append([]models.TradeOrder{*o}, s.history...)
	if len(s.history) > s.opts.History {
		s.history = s.history[:s.opts.History]
	}

	sev := models.SeverityInfo
	switch st {
	case models.OrderFailed:
		sev = models.SeverityError
	case models.OrderResultUnknown:
		sev = models.SeverityWarn
	}
	s.emitOrder(o, sev, "order "+string(st))
}

func (s *Scheduler) transition(to models.SchedulerState, reason string) {
	from := s.state
	s.state = to
	s.view.Store(to)
	s.log.Info("state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	)
	s.emit(models.Event{
		Kind:     models.EventTransition,
		Severity: models.SeverityInfo,
		From:     from,
		To:       to,
		Message:  reason,
	})
}

func (s *Scheduler) emitOrder(o *models.TradeOrder, sev models.Severity, msg string) {
	fields := []zap.Field{
		zap.String("order_id", o.ID),
		zap.String("chain_id", o.ChainID),
		zap.Int("level", o.Level),
		zap.String("pair", o.Pair),
		zap.String("direction", string(o.Direction)),
		zap.String("status", string(o.Status)),
		zap.Time("fire_at", o.FireAt),
	}
	if o.Reason != "" {
		fields = append(fields, zap.String("reason", o.Reason))
	}
	switch sev {
	case models.SeverityError:
		s.log.Error(msg, fields...)
	case models.SeverityWarn:
		s.log.Warn(msg, fields...)
	default:
		s.log.Info(msg, fields...)
	}

	snap := *o
	s.emit(models.Event{Kind: models.EventOrder, Severity: sev, Order: &snap, Message: msg})
}

// emitAdapter: zap-строку пишет service.Traced, сюда только событие для журнала.
func (s *Scheduler) emitAdapter(kind callKind, outcome string, err error, negative bool) {
	sev := models.SeverityInfo
	msg := kind.String() + ": " + outcome
	if negative {
		sev = models.SeverityWarn
	}
	if err != nil {
		sev = models.SeverityError
		msg += " (" + err.Error() + ")"
	}
	s.emit(models.Event{Kind: models.EventAdapter, Severity: sev, Message: msg})
}

func (s *Scheduler) emit(ev models.Event) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	for _, sink := range s.sinks {
		sink.Publish(ev)
	}
}
