package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"signal_bot/internal/models"
)

// StatusReporter отправляет снимок STATUS оператору (telegram notifier).
type StatusReporter interface {
	ReplyStatus(ctx context.Context, chatID int64, st models.Status) error
}

// Router связывает колбэки канала с inbox планировщика.
type Router struct {
	sched    *Scheduler
	reporter StatusReporter
	log      *zap.Logger
}

func NewRouter(sched *Scheduler, reporter StatusReporter, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{sched: sched, reporter: reporter, log: log}
}

func (r *Router) OnSignal(ctx context.Context, sig models.Signal) error {
	r.log.Info("signal received", zap.Stringer("signal", sig), zap.Strings("fields", sig.Fields()))
	return r.sched.SubmitSignal(ctx, sig)
}

// OnCommand получает сырой текст сообщения и chatID, откуда пришла команда.
func (r *Router) OnCommand(ctx context.Context, chatID int64, text string) error {
	cmd, ok := models.ParseCommand(text)
	if !ok {
		r.log.Debug("unknown command", zap.String("text", text))
		return nil
	}

	if cmd != models.CommandStatus {
		return r.sched.SubmitCommand(ctx, cmd)
	}

	st, err := r.sched.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	r.log.Info("status requested",
		zap.String("state", string(st.State)),
		zap.Int("chains", len(st.Chains)),
		zap.Int("outcomes", len(st.LastOutcomes)),
	)
	if r.reporter == nil {
		return nil
	}
	return r.reporter.ReplyStatus(ctx, chatID, st)
}
