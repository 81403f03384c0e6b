// Package orchestrator sequences process startup and decides how the gateway
// connection and the liveness responder end together.
//
// Startup is strictly ordered: store, then gateway client, then both duties.
// A failure before the duties start aborts with no concurrent work begun.
// Once running, the configured Policy decides what a duty's end means for the
// process.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chiraitori/spoticord/internal/logger"
	"github.com/chiraitori/spoticord/internal/telemetry"
	"github.com/chiraitori/spoticord/pkg/gateway"
	"github.com/chiraitori/spoticord/pkg/metrics"
	"github.com/chiraitori/spoticord/pkg/responder"
	"github.com/chiraitori/spoticord/pkg/shutdown"
	"github.com/chiraitori/spoticord/pkg/store"
)

// DefaultShutdownTimeout bounds the responder drain in detached mode.
const DefaultShutdownTimeout = 30 * time.Second

// StoreOpener opens the connected, migrated store.
type StoreOpener interface {
	Open(ctx context.Context) (store.Handle, error)
}

// Options configures an Orchestrator.
type Options struct {
	Policy Policy

	// ShutdownTimeout bounds how long Run waits for the responder to drain
	// after the shutdown signal.
	ShutdownTimeout time.Duration

	// StopResponderOnExit makes detached mode fire the shutdown signal as
	// soon as the gateway ends instead of waiting for process shutdown.
	StopResponderOnExit bool

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Orchestrator runs one process lifetime.
type Orchestrator struct {
	opener    StoreOpener
	builder   gateway.Builder
	responder responder.Responder
	opts      Options
	signal    *shutdown.Signal
	ran       atomic.Bool
}

// New validates the collaborators and options.
func New(opener StoreOpener, builder gateway.Builder, resp responder.Responder, opts Options) (*Orchestrator, error) {
	if opener == nil || builder == nil || resp == nil {
		return nil, errors.New("orchestrator requires a store opener, a gateway builder and a responder")
	}
	if _, err := ParsePolicy(string(opts.Policy)); err != nil {
		return nil, err
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	return &Orchestrator{
		opener:    opener,
		builder:   builder,
		responder: resp,
		opts:      opts,
		signal:    shutdown.New(),
	}, nil
}

// Signal returns the shutdown signal the responder observes.
func (o *Orchestrator) Signal() *shutdown.Signal {
	return o.signal
}

// Run executes startup and the configured completion policy. ctx is the
// process context; cancelling it is the process shutdown request.
func (o *Orchestrator) Run(ctx context.Context) Report {
	report := Report{Policy: o.opts.Policy, Stage: StageStore}
	if !o.ran.CompareAndSwap(false, true) {
		report.Err = errors.New("orchestrator already ran")
		return report
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanStartup, telemetry.Policy(string(o.opts.Policy)))
	defer span.End()

	handle, err := o.openStore(ctx)
	if err != nil {
		logger.Error("Failed to connect to database and perform migrations", "error", err)
		report.Err = fmt.Errorf("%w: %w", ErrStartup, err)
		telemetry.RecordError(ctx, report.Err)
		return report
	}

	report.Stage = StageClient
	client, err := o.buildClient(ctx, handle)
	if err != nil {
		logger.Error("Failed to create Discord client", "error", err)
		if cerr := handle.Close(); cerr != nil {
			logger.Warn("Failed to close database", "error", cerr)
		}
		report.Err = fmt.Errorf("%w: %w", ErrStartup, err)
		telemetry.RecordError(ctx, report.Err)
		return report
	}

	report.Stage = StageRun
	logger.Info("Starting duties", "policy", o.opts.Policy, "responder", o.responder.Name())

	switch o.opts.Policy {
	case PolicyJoint:
		o.runJoint(ctx, client, &report)
	case PolicyIsolated:
		o.runIsolated(ctx, client, &report)
	default:
		o.runDetached(ctx, client, &report)
	}

	telemetry.RecordError(ctx, report.Err)
	return report
}

func (o *Orchestrator) openStore(ctx context.Context) (store.Handle, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanOpenStore)
	defer span.End()

	handle, err := o.opener.Open(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	return handle, nil
}

func (o *Orchestrator) buildClient(ctx context.Context, handle store.Handle) (gateway.Client, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanBuildClient)
	defer span.End()

	client, err := o.builder.Build(ctx, handle)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	return client, nil
}

// runDetached: the responder outlives the gateway until process shutdown.
func (o *Orchestrator) runDetached(ctx context.Context, client gateway.Client, report *Report) {
	respCtx, release := o.signal.Context(ctx)
	defer release()
	respDone := o.startResponder(respCtx)

	primary := o.runPrimary(ctx, client)
	report.Primary = &primary

	if !o.opts.StopResponderOnExit {
		if ctx.Err() == nil {
			logger.Info("Gateway ended, liveness responder keeps serving until shutdown")
		}
		select {
		case <-ctx.Done():
		case out := <-respDone:
			report.Responder = &out
		}
	}

	if report.Responder == nil {
		report.Responder = o.stopResponder(ctx, respDone)
	}

	if !primary.OK() {
		report.Err = fmt.Errorf("%w: %s: %w", ErrDutyFailed, primary.Duty, primary.Err)
	}
}

// runIsolated: the responder is never joined and never told to stop.
func (o *Orchestrator) runIsolated(ctx context.Context, client gateway.Client, report *Report) {
	_ = o.startResponder(context.WithoutCancel(ctx))

	primary := o.runPrimary(ctx, client)
	report.Primary = &primary

	if !primary.OK() {
		report.Err = fmt.Errorf("%w: %s: %w", ErrDutyFailed, primary.Duty, primary.Err)
	}
}

// runJoint: both duties are one unit; the first failure stops the other.
func (o *Orchestrator) runJoint(ctx context.Context, client gateway.Client, report *Report) {
	g, gctx := errgroup.WithContext(ctx)

	var primary, resp RunOutcome
	g.Go(func() error {
		primary = o.runPrimary(gctx, client)
		o.signal.Fire()
		return primary.Err
	})
	g.Go(func() error {
		respCtx, release := o.signal.Context(gctx)
		defer release()
		resp = o.serveResponder(respCtx)
		if !resp.OK() {
			// Unblocks the gateway through gctx.
			return resp.Err
		}
		return nil
	})

	err := g.Wait()
	report.Primary = &primary
	report.Responder = &resp

	if err != nil {
		duty := DutyGateway
		if !resp.OK() && errors.Is(err, resp.Err) {
			duty = DutyResponder
		}
		logger.Error("Duty failed, stopping process", "duty", duty, "error", err)
		report.Err = fmt.Errorf("%w: %s: %w", ErrDutyFailed, duty, err)
	}
}

// runPrimary runs the gateway client to completion. A cancellation error
// after ctx is done is an orderly stop.
func (o *Orchestrator) runPrimary(ctx context.Context, client gateway.Client) RunOutcome {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRunPrimary, telemetry.Duty(DutyGateway))
	defer span.End()

	err := client.Run(ctx)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}

	o.opts.Metrics.RecordDuty(DutyGateway, err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.Error("Gateway connection failed", "error", err)
	} else {
		logger.Info("Gateway connection ended")
	}
	return RunOutcome{Duty: DutyGateway, Err: err}
}

// startResponder serves in the background and reports the outcome on the
// returned channel.
func (o *Orchestrator) startResponder(ctx context.Context) <-chan RunOutcome {
	done := make(chan RunOutcome, 1)
	go func() {
		done <- o.serveResponder(ctx)
	}()
	return done
}

func (o *Orchestrator) serveResponder(ctx context.Context) RunOutcome {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRunResponder,
		telemetry.Duty(DutyResponder), telemetry.Variant(o.responder.Name()))
	defer span.End()

	err := o.responder.Serve(ctx)
	o.opts.Metrics.RecordDuty(DutyResponder, err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.Error("Liveness responder failed", "variant", o.responder.Name(), "error", err)
	}
	return RunOutcome{Duty: DutyResponder, Err: err}
}

// stopResponder fires the shutdown signal and waits up to ShutdownTimeout
// for the responder to drain. Returns nil if it did not finish in time.
func (o *Orchestrator) stopResponder(ctx context.Context, done <-chan RunOutcome) *RunOutcome {
	_, span := telemetry.StartSpan(ctx, telemetry.SpanShutdown)
	defer span.End()

	if o.signal.Fire() {
		logger.Info("Shutdown signal sent to liveness responder")
	}

	timer := time.NewTimer(o.opts.ShutdownTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return &out
	case <-timer.C:
		logger.Warn("Liveness responder did not stop in time", "timeout", o.opts.ShutdownTimeout)
		return nil
	}
}
