package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dyne/cifrado/internal/cipher"
	"github.com/dyne/cifrado/internal/config"
	"github.com/dyne/cifrado/internal/log"
)

// Server exposes the cipher over HTTP: a JSON API, an HTML form and the
// health and metrics endpoints.
type Server struct {
	cfg     config.Server
	logger  *log.Logger
	metrics *Metrics
	ui      *page
	handler http.Handler
}

// New assembles the routes and middleware for cfg. Defaults are applied to
// a copy of cfg, so a zero config is usable.
func New(cfg config.Server, logger *log.Logger) (*Server, error) {
	config.ApplyServerDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Nop()
	}
	ui, err := loadPage()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(),
		ui:      ui,
	}
	h, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.handler = h
	return s, nil
}

func (s *Server) routes() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /encode", s.handleQuery(cipher.ModeEncode))
	mux.HandleFunc("POST /encode", s.handleJSON(cipher.ModeEncode))
	mux.HandleFunc("GET /decode", s.handleQuery(cipher.ModeDecode))
	mux.HandleFunc("POST /decode", s.handleJSON(cipher.ModeDecode))
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /process", s.handleProcess)
	if s.cfg.Metrics.On() {
		if err := handle(mux, "GET "+s.cfg.Metrics.Path, s.metrics.Handler()); err != nil {
			return nil, fmt.Errorf("metrics path: %w", err)
		}
	}

	var h http.Handler = otelhttp.NewHandler(mux, "cifrado")
	if s.cfg.Metrics.On() {
		h = s.metrics.Middleware(s.cfg.Metrics.Path, h)
	}
	h = accessLog(s.logger, h)
	h = cors(s.cfg.CORS.AllowOrigins, h)
	h = requestID(h)
	return recoverPanics(s.logger, h), nil
}

// handle registers a pattern that comes from configuration, turning the
// ServeMux panic on a bad or conflicting pattern into an error.
func handle(mux *http.ServeMux, pattern string, h http.Handler) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%v", v)
		}
	}()
	mux.Handle(pattern, h)
	return nil
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. When ctx is cancelled in-flight requests
// get ShutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Infow("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
