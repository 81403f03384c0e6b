package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/chiraitori/spoticord/pkg/gateway"
	"github.com/chiraitori/spoticord/pkg/responder"
	"github.com/chiraitori/spoticord/pkg/store"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeHandle struct{ closed atomic.Int32 }

func (h *fakeHandle) DB() *gorm.DB                      { return nil }
func (h *fakeHandle) Healthcheck(context.Context) error { return nil }
func (h *fakeHandle) Close() error {
	h.closed.Add(1)
	return nil
}

type fakeOpener struct {
	handle *fakeHandle
	err    error
	calls  atomic.Int32
}

func (o *fakeOpener) Open(context.Context) (store.Handle, error) {
	o.calls.Add(1)
	if o.err != nil {
		return nil, o.err
	}
	return o.handle, nil
}

type fakeClient struct {
	run func(ctx context.Context) error
}

func (c *fakeClient) Run(ctx context.Context) error { return c.run(ctx) }

type fakeBuilder struct {
	client gateway.Client
	err    error
	calls  atomic.Int32
}

func (b *fakeBuilder) Build(context.Context, store.Handle) (gateway.Client, error) {
	b.calls.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	return b.client, nil
}

// fakeResponder serves until ctx is done, or fails with serveErr.
type fakeResponder struct {
	serveErr error
	started  chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

func newFakeResponder(serveErr error) *fakeResponder {
	return &fakeResponder{
		serveErr: serveErr,
		started:  make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (r *fakeResponder) Serve(ctx context.Context) error {
	r.once.Do(func() { close(r.started) })
	defer close(r.stopped)
	if r.serveErr != nil {
		return r.serveErr
	}
	<-ctx.Done()
	return nil
}

func (r *fakeResponder) Name() string { return "fake" }
func (r *fakeResponder) Addr() string { return "" }

func (r *fakeResponder) wasStarted() bool {
	select {
	case <-r.started:
		return true
	default:
		return false
	}
}

func (r *fakeResponder) isStopped() bool {
	select {
	case <-r.stopped:
		return true
	default:
		return false
	}
}

// blockingClient runs until ctx is cancelled.
func blockingClient() *fakeClient {
	return &fakeClient{run: func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}}
}

// failingClient fails immediately.
func failingClient(err error) *fakeClient {
	return &fakeClient{run: func(context.Context) error { return err }}
}

func newTest(t *testing.T, policy Policy, client gateway.Client, resp responder.Responder) (*Orchestrator, *fakeOpener, *fakeBuilder) {
	t.Helper()
	opener := &fakeOpener{handle: &fakeHandle{}}
	builder := &fakeBuilder{client: client}
	o, err := New(opener, builder, resp, Options{Policy: policy, ShutdownTimeout: 2 * time.Second})
	require.NoError(t, err)
	return o, opener, builder
}

func dialTCP(addr string) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, 200*time.Millisecond)
}

func runAsync(ctx context.Context, o *Orchestrator) <-chan Report {
	ch := make(chan Report, 1)
	go func() { ch <- o.Run(ctx) }()
	return ch
}

func waitReport(t *testing.T, ch <-chan Report) Report {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return Report{}
	}
}

func assertNoReport(t *testing.T, ch <-chan Report) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("Run returned early: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

// ============================================================================
// Policy parsing and construction
// ============================================================================

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies {
		got, err := ParsePolicy(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParsePolicy(" Joint ")
	require.NoError(t, err)
	assert.Equal(t, PolicyJoint, got)

	_, err = ParsePolicy("")
	assert.Error(t, err)

	_, err = ParsePolicy("eventual")
	assert.ErrorContains(t, err, "eventual")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &fakeBuilder{}, newFakeResponder(nil), Options{Policy: PolicyJoint})
	assert.Error(t, err)

	_, err = New(&fakeOpener{}, &fakeBuilder{}, newFakeResponder(nil), Options{})
	assert.Error(t, err)

	o, err := New(&fakeOpener{}, &fakeBuilder{}, newFakeResponder(nil), Options{Policy: PolicyDetached})
	require.NoError(t, err)
	assert.Equal(t, DefaultShutdownTimeout, o.opts.ShutdownTimeout)
}

// ============================================================================
// Startup short-circuits
// ============================================================================

func TestRun_StoreFailureStartsNothing(t *testing.T) {
	for _, policy := range Policies {
		t.Run(string(policy), func(t *testing.T) {
			resp := newFakeResponder(nil)
			o, opener, builder := newTest(t, policy, blockingClient(), resp)
			opener.err = errors.New("connection refused")

			report := o.Run(context.Background())

			assert.ErrorIs(t, report.Err, ErrStartup)
			assert.ErrorContains(t, report.Err, "connection refused")
			assert.Equal(t, StageStore, report.Stage)
			assert.Equal(t, 1, report.ExitCode())
			assert.Nil(t, report.Primary)
			assert.Equal(t, int32(0), builder.calls.Load())

			time.Sleep(20 * time.Millisecond)
			assert.False(t, resp.wasStarted())
		})
	}
}

func TestRun_BuildFailureReleasesStore(t *testing.T) {
	resp := newFakeResponder(nil)
	o, opener, builder := newTest(t, PolicyDetached, blockingClient(), resp)
	builder.err = gateway.ErrMissingToken

	report := o.Run(context.Background())

	assert.ErrorIs(t, report.Err, ErrStartup)
	assert.ErrorIs(t, report.Err, gateway.ErrMissingToken)
	assert.Equal(t, StageClient, report.Stage)
	assert.Equal(t, int32(1), opener.handle.closed.Load())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, resp.wasStarted())
}

func TestRun_OnlyOnce(t *testing.T) {
	o, _, _ := newTest(t, PolicyIsolated, failingClient(nil), newFakeResponder(nil))
	first := o.Run(context.Background())
	require.NoError(t, first.Err)

	second := o.Run(context.Background())
	assert.Error(t, second.Err)
}

// ============================================================================
// Detached
// ============================================================================

func TestDetached_ResponderOutlivesFailedGateway(t *testing.T) {
	resp := newFakeResponder(nil)
	o, _, _ := newTest(t, PolicyDetached, failingClient(errors.New("invalid session")), resp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := runAsync(ctx, o)

	assertNoReport(t, ch)
	assert.False(t, resp.isStopped())
	assert.False(t, o.Signal().Fired())

	cancel()
	report := waitReport(t, ch)

	assert.True(t, resp.isStopped())
	assert.True(t, o.Signal().Fired())
	assert.Equal(t, StageRun, report.Stage)
	require.NotNil(t, report.Primary)
	assert.False(t, report.Primary.OK())
	require.NotNil(t, report.Responder)
	assert.True(t, report.Responder.OK())
	assert.ErrorIs(t, report.Err, ErrDutyFailed)
	assert.Equal(t, 1, report.ExitCode())
}

func TestDetached_StopResponderOnExit(t *testing.T) {
	resp := newFakeResponder(nil)
	opener := &fakeOpener{handle: &fakeHandle{}}
	o, err := New(opener, &fakeBuilder{client: failingClient(nil)}, resp, Options{
		Policy:              PolicyDetached,
		StopResponderOnExit: true,
		ShutdownTimeout:     time.Second,
	})
	require.NoError(t, err)

	report := waitReport(t, runAsync(context.Background(), o))

	assert.NoError(t, report.Err)
	assert.Equal(t, 0, report.ExitCode())
	assert.True(t, resp.isStopped())
	require.NotNil(t, report.Responder)
	assert.True(t, report.Responder.OK())
}

func TestDetached_ResponderFailureIsNotProcessFailure(t *testing.T) {
	resp := newFakeResponder(fmt.Errorf("%w: address in use", responder.ErrBind))
	o, _, _ := newTest(t, PolicyDetached, blockingClient(), resp)

	ctx, cancel := context.WithCancel(context.Background())
	ch := runAsync(ctx, o)

	<-resp.stopped
	assertNoReport(t, ch)

	cancel()
	report := waitReport(t, ch)
	assert.NoError(t, report.Err)
	require.NotNil(t, report.Responder)
	assert.ErrorIs(t, report.Responder.Err, responder.ErrBind)
}

func TestDetached_CancelledGatewayIsOrderlyStop(t *testing.T) {
	client := &fakeClient{run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	o, _, _ := newTest(t, PolicyDetached, client, newFakeResponder(nil))

	ctx, cancel := context.WithCancel(context.Background())
	ch := runAsync(ctx, o)
	time.Sleep(20 * time.Millisecond)
	cancel()

	report := waitReport(t, ch)
	assert.NoError(t, report.Err)
	require.NotNil(t, report.Primary)
	assert.True(t, report.Primary.OK())
}

// Accepted connections finish after the signal; new ones are refused.
func TestDetached_RealResponderDrains(t *testing.T) {
	r, err := responder.NewRaw(responder.RawConfig{Address: "127.0.0.1:0", Workers: 2, ReadTimeout: 3 * time.Second}, nil)
	require.NoError(t, err)

	o, _, _ := newTest(t, PolicyDetached, blockingClient(), r)
	ctx, cancel := context.WithCancel(context.Background())
	ch := runAsync(ctx, o)

	addr := r.Addr()
	require.NotEmpty(t, addr)

	inFlight, err := dialTCP(addr)
	require.NoError(t, err)
	defer inFlight.Close()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		c, err := dialTCP(addr)
		if err != nil {
			return true
		}
		_ = c.Close()
		return false
	}, 2*time.Second, 20*time.Millisecond)

	_, err = inFlight.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	require.NoError(t, inFlight.SetReadDeadline(time.Now().Add(5*time.Second)))
	got, err := io.ReadAll(inFlight)
	require.NoError(t, err)
	assert.Equal(t, responder.RawResponse, got)

	report := waitReport(t, ch)
	assert.NoError(t, report.Err)
}

// ============================================================================
// Joint
// ============================================================================

func TestJoint_BindFailureFailsProcess(t *testing.T) {
	resp := newFakeResponder(fmt.Errorf("%w: address in use", responder.ErrBind))
	o, _, _ := newTest(t, PolicyJoint, blockingClient(), resp)

	report := waitReport(t, runAsync(context.Background(), o))

	assert.ErrorIs(t, report.Err, ErrDutyFailed)
	assert.ErrorIs(t, report.Err, responder.ErrBind)
	assert.Equal(t, 1, report.ExitCode())
	require.NotNil(t, report.Primary)
	assert.True(t, report.Primary.OK())
}

func TestJoint_GatewayFailureStopsResponder(t *testing.T) {
	resp := newFakeResponder(nil)
	o, _, _ := newTest(t, PolicyJoint, failingClient(errors.New("invalid session")), resp)

	report := waitReport(t, runAsync(context.Background(), o))

	assert.ErrorIs(t, report.Err, ErrDutyFailed)
	assert.ErrorContains(t, report.Err, "invalid session")
	assert.True(t, resp.isStopped())
	assert.True(t, o.Signal().Fired())
	require.NotNil(t, report.Responder)
	assert.True(t, report.Responder.OK())
}

func TestJoint_ShutdownIsSuccess(t *testing.T) {
	resp := newFakeResponder(nil)
	o, _, _ := newTest(t, PolicyJoint, blockingClient(), resp)

	ctx, cancel := context.WithCancel(context.Background())
	ch := runAsync(ctx, o)
	assertNoReport(t, ch)

	cancel()
	report := waitReport(t, ch)
	assert.NoError(t, report.Err)
	assert.Equal(t, 0, report.ExitCode())
	assert.True(t, report.Primary.OK())
	assert.True(t, report.Responder.OK())
}

// ============================================================================
// Isolated
// ============================================================================

func TestIsolated_OutcomeIsGatewayOnly(t *testing.T) {
	t.Run("ResponderFailureIgnored", func(t *testing.T) {
		resp := newFakeResponder(errors.New("bind failed"))
		o, _, _ := newTest(t, PolicyIsolated, failingClient(nil), resp)

		report := o.Run(context.Background())
		assert.NoError(t, report.Err)
		assert.Nil(t, report.Responder)
	})

	t.Run("GatewayExitLeavesSignalPending", func(t *testing.T) {
		resp := newFakeResponder(nil)
		o, _, _ := newTest(t, PolicyIsolated, failingClient(nil), resp)

		report := o.Run(context.Background())
		require.NoError(t, report.Err)
		assert.False(t, o.Signal().Fired())
	})

	t.Run("GatewayFailure", func(t *testing.T) {
		resp := newFakeResponder(nil)
		o, _, _ := newTest(t, PolicyIsolated, failingClient(errors.New("invalid session")), resp)

		report := o.Run(context.Background())
		assert.ErrorIs(t, report.Err, ErrDutyFailed)
		assert.Equal(t, 1, report.ExitCode())

		// Nothing links the responder to the run.
		<-resp.started
		time.Sleep(20 * time.Millisecond)
		assert.False(t, resp.isStopped())
	})
}

// The responder answers while the gateway has failed and the process has
// not been asked to stop.
func TestScenario_GatewayFailsResponderStillAnswers(t *testing.T) {
	for _, policy := range []Policy{PolicyDetached, PolicyIsolated} {
		t.Run(string(policy), func(t *testing.T) {
			r := responder.NewHTTP(responder.HTTPConfig{Address: "127.0.0.1:0"}, nil)
			o, _, _ := newTest(t, policy, failingClient(errors.New("invalid session")), r)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			ch := runAsync(ctx, o)

			addr := r.Addr()
			require.NotEmpty(t, addr)
			if policy == PolicyIsolated {
				report := waitReport(t, ch)
				assert.Equal(t, 1, report.ExitCode())
			}

			resp, err := http.Get("http://" + addr + "/")
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, responder.HelloBody, string(body))
		})
	}
}
