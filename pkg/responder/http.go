package responder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chiraitori/spoticord/internal/logger"
	"github.com/chiraitori/spoticord/pkg/metrics"
)

// HTTPConfig configures the cooperative responder.
type HTTPConfig struct {
	// Address is the host:port to bind. Default: 0.0.0.0:10000.
	Address string `mapstructure:"address" yaml:"address" validate:"required"`

	// ShutdownTimeout bounds the graceful drain after cancellation.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// ApplyDefaults fills zero values.
func (c *HTTPConfig) ApplyDefaults() {
	if c.Address == "" {
		c.Address = "0.0.0.0:10000"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// HTTPResponder answers every request with 200 "Hello World".
type HTTPResponder struct {
	config  HTTPConfig
	metrics *metrics.Metrics
	server  *http.Server

	ready     chan struct{}
	readyOnce sync.Once
	addr      string
	serving   atomic.Bool
}

// NewHTTP creates a cooperative responder. m may be nil.
func NewHTTP(config HTTPConfig, m *metrics.Metrics) *HTTPResponder {
	config.ApplyDefaults()

	r := &HTTPResponder{
		config:  config,
		metrics: m,
		ready:   make(chan struct{}),
	}
	r.server = &http.Server{
		Handler:      r.router(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return r
}

func (r *HTTPResponder) router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(r.requestLogger)

	// chi routes by method; every route, 404 and 405 all land on hello.
	mux.Handle("/", http.HandlerFunc(hello))
	mux.Handle("/*", http.HandlerFunc(hello))
	mux.NotFound(hello)
	mux.MethodNotAllowed(hello)
	return mux
}

func hello(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HelloBody))
}

func (r *HTTPResponder) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		r.metrics.AddInFlight(VariantHTTP, 1)
		defer r.metrics.AddInFlight(VariantHTTP, -1)

		next.ServeHTTP(ww, req)

		r.metrics.RecordConnection(VariantHTTP, metrics.ResultServed)
		logger.Debug("Liveness request",
			"variant", VariantHTTP,
			"request_id", middleware.GetReqID(req.Context()),
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"remote", req.RemoteAddr,
			"duration", time.Since(start))
	})
}

// Name implements Responder.
func (r *HTTPResponder) Name() string { return VariantHTTP }

// Addr implements Responder.
func (r *HTTPResponder) Addr() string {
	<-r.ready
	return r.addr
}

// Serve binds, serves until ctx is cancelled, then shuts the server down
// gracefully within ShutdownTimeout.
func (r *HTTPResponder) Serve(ctx context.Context) error {
	if !r.serving.CompareAndSwap(false, true) {
		return errors.New("http responder already served")
	}
	return r.serve(ctx)
}

func (r *HTTPResponder) serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.config.Address)
	if err != nil {
		r.readyOnce.Do(func() { close(r.ready) })
		return fmt.Errorf("%w: %s: %w", ErrBind, r.config.Address, err)
	}
	r.addr = ln.Addr().String()
	r.readyOnce.Do(func() { close(r.ready) })

	logger.Info("Liveness responder listening", "variant", VariantHTTP, "addr", r.addr)

	errChan := make(chan error, 1)
	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Liveness responder stopping", "variant", VariantHTTP)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.config.ShutdownTimeout)
		defer cancel()
		if err := r.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http responder shutdown: %w", err)
		}
		logger.Info("Liveness responder stopped", "variant", VariantHTTP)
		return nil
	case err := <-errChan:
		return fmt.Errorf("http responder failed: %w", err)
	}
}
