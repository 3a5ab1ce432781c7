package types

import (
	"errors"
	"time"
)

// ErrOutputWrite marks a failure to write the report itself. It is the only
// error class that aborts a run.
var ErrOutputWrite = errors.New("report output could not be written")

// ExecStatus is the outcome of executing a probe.
type ExecStatus string

const (
	// ExecSuccess means the command exited zero and its stdout was captured.
	ExecSuccess ExecStatus = "success"
	// ExecFailure means the command was started but did not succeed.
	ExecFailure ExecStatus = "failure"
	// ExecNotAttempted means no command was started.
	ExecNotAttempted ExecStatus = "not-attempted"
)

// FailureKind distinguishes why a probe produced no output.
type FailureKind string

const (
	// FailureNone is the kind of a successful result.
	FailureNone FailureKind = ""
	// FailureToolUnavailable means the governing executable is absent.
	FailureToolUnavailable FailureKind = "tool-unavailable"
	// FailureExecution means the tool ran and exited non-zero or crashed.
	FailureExecution FailureKind = "execution-failure"
	// FailurePermissionDenied means elevation was required but not obtained.
	FailurePermissionDenied FailureKind = "permission-denied"
	// FailureTimeout means the command exceeded its timeout and was killed.
	FailureTimeout FailureKind = "timeout"
	// FailureInterrupted means the run was cancelled while the command ran.
	FailureInterrupted FailureKind = "interrupted"
)

// Attempt records one link of a fallback chain.
type Attempt struct {
	// Command is the literal command of the link.
	Command string

	// Tool is the governing executable of the link.
	Tool string

	// Status is the outcome of this link.
	Status ExecStatus

	// Kind is the failure kind; FailureNone on success.
	Kind FailureKind
}

// ExecutionResult is the transient outcome of one probe invocation.
type ExecutionResult struct {
	// Stdout is the captured standard output; empty on failure.
	Stdout string

	// Stderr is the captured standard error, kept for the debug channel only.
	Stderr string

	// Status is the overall outcome.
	Status ExecStatus

	// Kind explains a non-success Status.
	Kind FailureKind

	// ExitCode is the process exit code, or -1 when the process never exited normally.
	ExitCode int

	// Message is a short human-readable detail for failures (e.g., "exit status 2").
	Message string

	// UsedFallback is true when the result comes from a link after the primary.
	UsedFallback bool

	// Escalated is true when the command ran through the escalation helper.
	Escalated bool

	// Truncated is true when stdout exceeded the capture limit.
	Truncated bool

	// Command is the literal command that produced this result.
	Command string

	// Attempts lists every link considered, in order.
	Attempts []Attempt

	// Duration is the wall-clock time spent in the executor.
	Duration time.Duration
}

// Succeeded reports whether the result carries usable output.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == ExecSuccess
}
