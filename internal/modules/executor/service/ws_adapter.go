package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"signal_bot/internal/models"
)

// keepalive ping, иначе прокси между нами и агентом рвут простаивающий сокет
const pingPeriod = 20 * time.Second

type WSConfig struct {
	URL         string
	DialTimeout time.Duration
	CallTimeout time.Duration
}

// WSAdapter говорит с агентом автоматизации JSON-кадрами по websocket.
// Один вызов за раз; соединение поднимается лениво и заново после любой ошибки I/O.
type WSAdapter struct {
	cfg    WSConfig
	dialer *websocket.Dialer
	log    *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	stopPing chan struct{}
	seq      uint64
	closed   bool

	connected atomic.Bool
}

var _ Adapter = (*WSAdapter)(nil)

func NewWSAdapter(cfg WSConfig, log *zap.Logger) *WSAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSAdapter{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		log:    log,
	}
}

func (a *WSAdapter) Connected() bool { return a.connected.Load() }

func (a *WSAdapter) VerifyDashboard(ctx context.Context) (models.DashboardState, error) {
	var res verifyResult
	if err := a.call(ctx, methodVerifyDashboard, nil, a.cfg.CallTimeout, &res); err != nil {
		return models.DashboardNotReady, err
	}
	if models.DashboardState(strings.ToUpper(res.State)) == models.DashboardReady {
		return models.DashboardReady, nil
	}
	return models.DashboardNotReady, nil
}

func (a *WSAdapter) PlaceTrade(ctx context.Context, req models.TradeRequest) (models.Placement, error) {
	params := placeParams{
		Pair:      req.Pair,
		Direction: string(req.Direction),
		Timeframe: string(req.Timeframe),
		Level:     req.Level,
	}
	var res placeResult
	if err := a.call(ctx, methodPlaceTrade, params, a.cfg.CallTimeout, &res); err != nil {
		return models.PlacementRejected, err
	}
	if models.Placement(strings.ToUpper(res.Placement)) == models.PlacementPlaced {
		return models.PlacementPlaced, nil
	}
	a.log.Warn("agent rejected trade", zap.String("pair", req.Pair), zap.String("reason", res.Reason))
	return models.PlacementRejected, nil
}

func (a *WSAdapter) ReadLastResult(ctx context.Context, timeout time.Duration) (models.TradeResult, error) {
	var res readResult
	params := readParams{TimeoutMS: timeout.Milliseconds()}
	if err := a.call(ctx, methodReadLastResult, params, timeout+a.cfg.CallTimeout, &res); err != nil {
		return models.ResultUnknown, err
	}
	switch r := models.TradeResult(strings.ToUpper(res.Result)); r {
	case models.ResultWon, models.ResultLost:
		return r, nil
	}
	return models.ResultUnknown, nil
}

// Close шлёт close-кадр и больше не переподключается.
func (a *WSAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = a.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	a.dropLocked()
	return nil
}

func (a *WSAdapter) call(ctx context.Context, method string, params any, timeout time.Duration, out any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrBridgeClosed
	}
	conn, err := a.connLocked(ctx)
	if err != nil {
		return err
	}

	a.seq++
	id := a.seq
	frame, err := sonic.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		a.dropLocked()
		return errors.Wrapf(err, "write %s", method)
	}

	_ = conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		// будим ReadMessage
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.dropLocked()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrapf(err, "read %s", method)
		}

		var resp response
		if err := sonic.Unmarshal(data, &resp); err != nil {
			a.log.Warn("bridge: bad frame", zap.String("method", method), zap.Error(err))
			continue
		}
		if resp.ID != id {
			a.log.Debug("bridge: stale response", zap.Uint64("want", id), zap.Uint64("got", resp.ID))
			continue
		}
		if resp.Error != "" {
			return &RemoteError{Method: method, Message: resp.Error}
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		return errors.Wrapf(sonic.Unmarshal(resp.Result, out), "decode %s result", method)
	}
}

func (a *WSAdapter) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if a.conn != nil {
		return a.conn, nil
	}

	dctx := ctx
	if a.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, a.cfg.DialTimeout)
		defer cancel()
	}

	a.log.Info("bridge: connect", zap.String("url", a.cfg.URL))
	conn, _, err := a.dialer.DialContext(dctx, a.cfg.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", a.cfg.URL)
	}

	a.conn = conn
	a.stopPing = make(chan struct{})
	a.connected.Store(true)
	go a.keepalive(conn, a.stopPing)
	return conn, nil
}

func (a *WSAdapter) dropLocked() {
	if a.conn == nil {
		return
	}
	close(a.stopPing)
	_ = a.conn.Close()
	a.conn = nil
	a.connected.Store(false)
}

func (a *WSAdapter) keepalive(conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			// WriteControl можно звать параллельно с остальными методами
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				a.log.Debug("bridge: ping failed", zap.Error(err))
			}
		}
	}
}
