package responder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/chiraitori/spoticord/internal/logger"
	"github.com/chiraitori/spoticord/pkg/metrics"
)

// Admission policies for a full worker queue.
const (
	AdmissionBlock  = "block"
	AdmissionReject = "reject"
)

// maxLingerBytes caps how much unread input is discarded before close.
const maxLingerBytes = 64 << 10

// Accept failures back off from minAcceptDelay, doubling up to maxAcceptDelay.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// RawConfig configures the blocking-socket responder.
type RawConfig struct {
	// Address is the host:port to bind. Default: 0.0.0.0:8080.
	Address string `mapstructure:"address" yaml:"address" validate:"required"`

	// Workers is the size of the worker pool. 0 serves every connection on
	// its own goroutine with no bound.
	Workers int `mapstructure:"workers" yaml:"workers" validate:"gte=0"`

	// QueueSize is the number of accepted connections that may wait for a
	// worker.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" validate:"gte=0"`

	// Admission decides what happens when the queue is full: "block" stops
	// accepting until a slot frees, "reject" closes the new connection.
	Admission string `mapstructure:"admission" yaml:"admission" validate:"omitempty,oneof=block reject"`

	// BufferSize is the single read size per connection.
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size" validate:"gte=0"`

	ReadTimeout   time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	LingerTimeout time.Duration `mapstructure:"linger_timeout" yaml:"linger_timeout"`

	// AcceptRate limits accepts per second. 0 disables pacing.
	AcceptRate  float64 `mapstructure:"accept_rate" yaml:"accept_rate" validate:"gte=0"`
	AcceptBurst int     `mapstructure:"accept_burst" yaml:"accept_burst" validate:"gte=0"`

	// ShutdownTimeout bounds the drain of queued and in-flight connections.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultRawConfig returns the default blocking-socket configuration.
func DefaultRawConfig() RawConfig {
	c := RawConfig{Workers: 64}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values. Workers is left alone since 0 is
// meaningful.
func (c *RawConfig) ApplyDefaults() {
	if c.Address == "" {
		c.Address = "0.0.0.0:8080"
	}
	if c.Workers > 0 && c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.Admission == "" {
		c.Admission = AdmissionBlock
	}
	if c.BufferSize == 0 {
		c.BufferSize = 1024
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.LingerTimeout == 0 {
		c.LingerTimeout = 500 * time.Millisecond
	}
	if c.AcceptRate > 0 && c.AcceptBurst == 0 {
		c.AcceptBurst = max(1, int(c.AcceptRate))
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// RawResponder reads whatever a client sends and answers with RawResponse.
type RawResponder struct {
	config  RawConfig
	metrics *metrics.Metrics
	limiter *rate.Limiter

	ready     chan struct{}
	readyOnce sync.Once
	addr      string
	serving   atomic.Bool

	active      sync.WaitGroup
	activeConns sync.Map // id -> net.Conn
	connCount   atomic.Int32
}

// NewRaw creates a blocking-socket responder. m may be nil.
func NewRaw(config RawConfig, m *metrics.Metrics) (*RawResponder, error) {
	config.ApplyDefaults()
	if config.Workers < 0 || config.QueueSize < 0 {
		return nil, fmt.Errorf("invalid raw responder pool: workers=%d queue_size=%d", config.Workers, config.QueueSize)
	}
	if config.Admission != AdmissionBlock && config.Admission != AdmissionReject {
		return nil, fmt.Errorf("invalid raw responder admission %q", config.Admission)
	}

	r := &RawResponder{
		config:  config,
		metrics: m,
		ready:   make(chan struct{}),
	}
	if config.AcceptRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.AcceptRate), config.AcceptBurst)
	}
	return r, nil
}

// Name implements Responder.
func (r *RawResponder) Name() string { return VariantRaw }

// Addr implements Responder.
func (r *RawResponder) Addr() string {
	<-r.ready
	return r.addr
}

// Serve binds and runs the accept loop until ctx is cancelled. Connections
// already accepted, queued or in flight, are answered before Serve returns.
func (r *RawResponder) Serve(ctx context.Context) error {
	if !r.serving.CompareAndSwap(false, true) {
		return errors.New("raw responder already served")
	}
	return r.serve(ctx)
}

func (r *RawResponder) serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.config.Address)
	if err != nil {
		r.readyOnce.Do(func() { close(r.ready) })
		return fmt.Errorf("%w: %s: %w", ErrBind, r.config.Address, err)
	}
	r.addr = ln.Addr().String()
	r.readyOnce.Do(func() { close(r.ready) })

	logger.Info("Liveness responder listening",
		"variant", VariantRaw,
		"addr", r.addr,
		"workers", r.config.Workers,
		"queue_size", r.config.QueueSize,
		"admission", r.config.Admission)

	// Unblock Accept once ctx is done.
	stopWatch := context.AfterFunc(ctx, func() {
		if err := ln.Close(); err != nil {
			logger.Debug("Error closing raw responder listener", "error", err)
		}
	})
	defer stopWatch()

	var jobs chan net.Conn
	var workers sync.WaitGroup
	if r.config.Workers > 0 {
		jobs = make(chan net.Conn, r.config.QueueSize)
		for i := 0; i < r.config.Workers; i++ {
			workers.Add(1)
			go func() {
				defer workers.Done()
				for conn := range jobs {
					r.metrics.SetQueueDepth(VariantRaw, len(jobs))
					r.handle(conn)
				}
			}()
		}
	}

	loopErr := r.acceptLoop(ctx, ln, jobs)

	if jobs != nil {
		close(jobs)
	}
	_ = ln.Close()

	drainErr := r.drain(&workers)
	if loopErr != nil {
		return loopErr
	}
	return drainErr
}

func (r *RawResponder) acceptLoop(ctx context.Context, ln net.Listener, jobs chan net.Conn) error {
	var delay time.Duration
	for {
		if ctx.Err() != nil {
			return nil
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("raw responder listener closed: %w", err)
			}
			delay = nextAcceptDelay(delay)
			logger.Debug("Error accepting raw responder connection", "error", err, "retry_in", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			continue
		}
		delay = 0
		r.metrics.RecordConnection(VariantRaw, metrics.ResultAccepted)

		// Counted before dispatch so drain never misses a queued connection.
		r.active.Add(1)

		switch {
		case jobs == nil:
			go r.handle(conn)

		case r.config.Admission == AdmissionReject:
			select {
			case jobs <- conn:
			default:
				r.reject(conn)
			}

		default:
			jobs <- conn
		}
		if jobs != nil {
			r.metrics.SetQueueDepth(VariantRaw, len(jobs))
		}
	}
}

func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	return min(prev*2, maxAcceptDelay)
}

func (r *RawResponder) reject(conn net.Conn) {
	defer r.active.Done()
	r.metrics.RecordConnection(VariantRaw, metrics.ResultRejected)
	logger.Warn("Raw responder queue full, rejecting connection",
		"remote", conn.RemoteAddr(), "queue_size", r.config.QueueSize)
	_ = conn.Close()
}

// handle answers one connection: one read, one write, then close.
func (r *RawResponder) handle(conn net.Conn) {
	id := uuid.NewString()
	r.activeConns.Store(id, conn)
	r.connCount.Add(1)
	r.metrics.AddInFlight(VariantRaw, 1)
	defer func() {
		r.activeConns.Delete(id)
		r.connCount.Add(-1)
		r.metrics.AddInFlight(VariantRaw, -1)
		r.active.Done()
	}()

	log := logger.With("variant", VariantRaw, "conn_id", id, "remote", conn.RemoteAddr().String())

	result := metrics.ResultServed

	buf := make([]byte, r.config.BufferSize)
	_ = conn.SetReadDeadline(time.Now().Add(r.config.ReadTimeout))
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		// Still answered, but counted once as a read error.
		result = metrics.ResultReadError
		log.Debug("Raw responder read failed", "error", err, "bytes", n)
	}

	req := ParseRequest(buf[:n])
	if req.Valid {
		log.Debug("Liveness request", "method", req.Method, "path", req.Path, "proto", req.Proto, "bytes", n)
	} else {
		log.Debug("Liveness request", "raw", lossy(firstLine(buf[:n])), "bytes", n)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(r.config.WriteTimeout))
	if _, err := conn.Write(RawResponse); err != nil {
		r.metrics.RecordConnection(VariantRaw, metrics.ResultWriteErr)
		log.Debug("Raw responder write failed, abandoning connection", "error", err)
		_ = conn.Close()
		return
	}

	r.lingerClose(conn)
	r.metrics.RecordConnection(VariantRaw, result)
}

// lingerClose half-closes the write side and discards pending input so the
// kernel does not answer unread data with a reset that would destroy the
// response.
func (r *RawResponder) lingerClose(conn net.Conn) {
	defer conn.Close()

	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcp.CloseWrite(); err != nil {
		return
	}
	_ = tcp.SetReadDeadline(time.Now().Add(r.config.LingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(tcp, maxLingerBytes))
}

// drain waits for queued and in-flight connections, force-closing whatever is
// left after ShutdownTimeout.
func (r *RawResponder) drain(workers *sync.WaitGroup) error {
	logger.Info("Raw responder draining connections",
		"active", r.connCount.Load(), "timeout", r.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		r.active.Wait()
		workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Liveness responder stopped", "variant", VariantRaw)
		return nil
	case <-time.After(r.config.ShutdownTimeout):
		remaining := r.connCount.Load()
		r.activeConns.Range(func(_, value any) bool {
			_ = value.(net.Conn).Close()
			return true
		})
		logger.Warn("Raw responder shutdown timeout exceeded, connections force-closed",
			"active", remaining, "timeout", r.config.ShutdownTimeout)
		return fmt.Errorf("raw responder shutdown timeout: %d connections force-closed", remaining)
	}
}

func firstLine(b []byte) []byte {
	for i, c := range b {
		if c == '\n' || c == '\r' {
			return b[:i]
		}
	}
	return b
}
