package orchestrator

import "errors"

var (
	// ErrStartup wraps failures that abort the process before any duty
	// starts.
	ErrStartup = errors.New("startup failed")

	// ErrDutyFailed wraps a running duty's failure when the policy makes it
	// the process outcome.
	ErrDutyFailed = errors.New("duty failed")
)

// Duty names, used in logs, spans and the duty outcome metric.
const (
	DutyGateway   = "gateway"
	DutyResponder = "responder"
)

// Stage is the furthest startup step reached.
type Stage string

const (
	StageStore  Stage = "store"
	StageClient Stage = "client"
	StageRun    Stage = "run"
)

// RunOutcome is how one duty ended.
type RunOutcome struct {
	Duty string
	Err  error
}

// OK reports whether the duty ended without error.
func (o RunOutcome) OK() bool { return o.Err == nil }

// Report is the outcome of one orchestrated run.
type Report struct {
	Policy Policy
	Stage  Stage

	// Primary is nil when startup aborted before the gateway ran.
	Primary *RunOutcome

	// Responder is nil when the responder never started or had not
	// finished when Run returned.
	Responder *RunOutcome

	// Err is the process-level error, nil for a clean exit.
	Err error
}

// ExitCode maps the report to a process exit status.
func (r Report) ExitCode() int {
	if r.Err != nil {
		return 1
	}
	return 0
}
