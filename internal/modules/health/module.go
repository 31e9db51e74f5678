package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/executor"
	"signal_bot/internal/modules/health/service"
	journal "signal_bot/internal/modules/journal/service"
	"signal_bot/internal/runner"
)

type Config struct {
	Addr string // например "127.0.0.1:8080"
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: cfg.AdminAddr()}
}

func ProvideServer(
	state *service.State,
	s *runner.Scheduler,
	bridge executor.BridgeState,
	j journal.Journal,
	log *zap.Logger,
) *Server {
	return NewServer(state, s, bridge, j, log.Named("admin"))
}

func RunHTTP(lc fx.Lifecycle, cfg Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			log.Info("admin http listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("admin http stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	gin.SetMode(gin.ReleaseMode)
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			fx.Annotate(
				func(s *service.State) runner.EventSink { return s },
				fx.ResultTags(runner.SinkGroup),
			),
			NewConfig,
			ProvideServer,
		),
		fx.Invoke(RunHTTP),
	)
}
