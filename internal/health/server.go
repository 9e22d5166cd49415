// Package health serves the liveness banner, readiness JSON, the operator
// audit feed and Prometheus metrics over HTTP.
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rtsup "bosstimer/internal/runtime/supervisor"
	"bosstimer/internal/storage"
	logx "bosstimer/pkg/logx"
)

// Banner is the plain-text body of GET /.
const Banner = "✅ BossTimer & Event Bot działa!"

type Config struct {
	Addr string // e.g. ":8000"
}

// Deps are read-only views of the running bot. Nil funcs are skipped.
type Deps struct {
	// Ready reports whether startup (backup restore, state load) finished.
	Ready func() bool
	// State returns the active boss and event series counts.
	State func() (bosses, series int)
	// Details adds named sections (scheduler, notifier, ...) to /healthz.
	Details map[string]func() any
	// Audit backs GET /audit; nil disables the route.
	Audit storage.Store
}

type Service struct {
	mu      sync.Mutex
	cfg     Config
	deps    Deps
	log     logx.Logger
	started time.Time

	engine *gin.Engine
	srv    *http.Server
	sup    *rtsup.Supervisor
}

func New(cfg Config, deps Deps, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Service{cfg: cfg, deps: deps, log: log, started: time.Now()}
	s.engine = s.routes()
	return s
}

// Handler exposes the router (tests use it with httptest).
func (s *Service) Handler() http.Handler { return s.engine }

// Supervisor returns the serve loop's supervisor (nil if not started).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

func (s *Service) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Banner)
	})
	r.HEAD("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.deps.Audit != nil {
		r.GET("/audit", s.audit)
	}
	return r
}

func (s *Service) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("dur", time.Since(start)),
		)
	}
}

func (s *Service) healthz(c *gin.Context) {
	ready := s.deps.Ready == nil || s.deps.Ready()
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.deps.State != nil {
		bosses, series := s.deps.State()
		body["bosses"] = bosses
		body["event_series"] = series
	}
	for name, fn := range s.deps.Details {
		if fn != nil {
			body[name] = fn()
		}
	}
	code := http.StatusOK
	if !ready {
		body["status"] = "starting"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}

func (s *Service) audit(c *gin.Context) {
	n := 20
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be between 1 and 500"})
			return
		}
		n = v
	}
	entries, err := s.deps.Audit.Recent(c.Request.Context(), n)
	if err != nil {
		s.log.Warn("audit read failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit unavailable"})
		return
	}
	if entries == nil {
		entries = []storage.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Start runs the HTTP server under a restart loop. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.sup != nil {
		s.mu.Unlock()
		return
	}
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// health is observability only; never take the bot down.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	s.mu.Unlock()

	sup.GoRestart("http.serve", s.serveOnce,
		rtsup.WithPublishFirstError(true),
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)
}

func (s *Service) serveOnce(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.log.Error("health listen failed", logx.String("addr", s.cfg.Addr), logx.Err(err))
		return err
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()
	s.log.Info("health server listening", logx.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.srv = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	s.log.Info("health server stopped")
	return err
}
