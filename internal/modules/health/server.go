package health

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/health/service"
	journal "signal_bot/internal/modules/journal/service"
)

const (
	requestTimeout = 5 * time.Second
	maxJournal     = 200
)

// Controller: то, что админка может делать с планировщиком.
type Controller interface {
	Status(ctx context.Context) (models.Status, error)
	SubmitCommand(ctx context.Context, cmd models.Command) error
	State() models.SchedulerState
}

type Bridge interface {
	Connected() bool
}

type Server struct {
	Router *gin.Engine

	state   *service.State
	ctl     Controller
	bridge  Bridge
	journal journal.Journal
	log     *zap.Logger
}

func NewServer(state *service.State, ctl Controller, bridge Bridge, j journal.Journal, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	s := &Server{
		Router:  r,
		state:   state,
		ctl:     ctl,
		bridge:  bridge,
		journal: j,
		log:     log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/livez", s.livez)
	s.Router.GET("/readyz", s.readyz)
	s.Router.GET("/healthz", s.healthz)

	s.Router.GET("/status", s.status)
	s.Router.POST("/commands/:name", s.command)
	s.Router.GET("/journal", s.recent)
}

// liveness: процесс жив
func (s *Server) livez(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) readyz(c *gin.Context) {
	if !s.state.Ready() {
		c.String(http.StatusServiceUnavailable, "not ready")
		return
	}
	c.String(http.StatusOK, "ready")
}

// полезный JSON для отладки
func (s *Server) healthz(c *gin.Context) {
	lastAt, lastKind := s.state.LastEvent()
	var lastUnix int64
	if !lastAt.IsZero() {
		lastUnix = lastAt.Unix()
	}
	c.JSON(http.StatusOK, gin.H{
		"ready":           s.state.Ready(),
		"bridgeConnected": s.bridge.Connected(),
		"schedulerState":  s.ctl.State(),
		"uptimeSec":       int64(s.state.Uptime().Seconds()),
		"lastEventUnix":   lastUnix,
		"lastEventKind":   lastKind,
		"errors":          s.state.Errors(),
	})
}

func (s *Server) status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	st, err := s.ctl.Status(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// command: POST /commands/start|stop|status, через тот же inbox, что и чат.
func (s *Server) command(c *gin.Context) {
	cmd, ok := models.ParseCommand("/" + strings.ToLower(c.Param("name")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown command " + c.Param("name")})
		return
	}
	if cmd == models.CommandStatus {
		s.status(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	if err := s.ctl.SubmitCommand(ctx, cmd); err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("admin command accepted", zap.String("command", string(cmd)), zap.String("client", c.ClientIP()))
	c.JSON(http.StatusAccepted, gin.H{"command": cmd})
}

func (s *Server) recent(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxJournal)
	}

	events, err := s.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		s.log.Error("journal read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) fail(c *gin.Context, err error) {
	code := http.StatusServiceUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusGatewayTimeout
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
