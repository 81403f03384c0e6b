// Package responder implements the liveness responder: a listener that
// answers every inbound request with the same fixed success response.
//
// Two variants exist. HTTPResponder is a regular net/http server and stops
// gracefully when its context is cancelled. RawResponder reads raw bytes from
// a TCP socket and writes a hand-built HTTP response, serving connections
// from a bounded worker pool.
//
// Neither variant depends on the store or the gateway client, so a probe
// that arrives before the primary duty is up still gets its answer.
package responder

import (
	"context"
	"errors"
)

// ErrBind wraps listener failures. A responder that cannot bind reports it
// from Serve; whether that ends the process is the orchestrator's decision.
var ErrBind = errors.New("responder failed to bind")

// Variant names.
const (
	VariantHTTP = "http"
	VariantRaw  = "raw"
)

// Responder is an inbound liveness endpoint.
type Responder interface {
	// Serve binds the listener and answers connections until ctx is
	// cancelled. Cancellation stops new accepts; in-flight responses are
	// allowed to finish. Returns nil after a graceful stop.
	Serve(ctx context.Context) error

	// Name returns the variant name for logging and metrics.
	Name() string

	// Addr blocks until the listener is bound and returns its address, or
	// "" if binding failed.
	Addr() string
}
