package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/ancients-collective/triage/internal/types"
)

// Default per-probe time limits.
const (
	// DefaultTimeout bounds an ordinary probe.
	DefaultTimeout = 30 * time.Second

	// DefaultSlowTimeout bounds a probe marked slow (sampling collectors
	// such as vmstat or iostat) that declares no timeout of its own.
	DefaultSlowTimeout = 90 * time.Second
)

// escalationRefusals are stderr fragments printed by sudo -n when it cannot
// run without a password.
var escalationRefusals = []string{
	"a password is required",
	"a terminal is required",
	"no tty present",
	"is not in the sudoers file",
	"not allowed to execute",
}

// Executor runs probes one at a time, walking their fallback chains, and
// converts every outcome into an ExecutionResult. It holds no per-probe state.
type Executor struct {
	runner CommandRunner
	avail  Availability
	logger *slog.Logger

	// Timeout bounds probes without an explicit timeout; zero means DefaultTimeout.
	Timeout time.Duration

	// SlowTimeout bounds slow probes without an explicit timeout; zero means DefaultSlowTimeout.
	SlowTimeout time.Duration
}

// NewExecutor creates an Executor. A nil logger discards debug output.
func NewExecutor(runner CommandRunner, avail Availability, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		runner: runner,
		avail:  avail,
		logger: logger,
	}
}

// Execute runs the probe and, while links keep failing, its fallbacks.
// It always returns: panics from the runner are recovered into a failure.
//
// The returned result is that of the last link that actually ran. If no link
// could run because every tool is missing, the status is ExecNotAttempted
// with FailureToolUnavailable. UsedFallback is set only when the result
// comes from a link after the primary. No new link starts once ctx is done.
func (e *Executor) Execute(ctx context.Context, probe types.Probe, priv types.PrivilegeContext) (result types.ExecutionResult) {
	start := time.Now()
	var attempts []types.Attempt

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("probe execution panicked", "probe", probe.ID, "panic", r)
			result = types.ExecutionResult{
				Status:   types.ExecFailure,
				Kind:     types.FailureExecution,
				ExitCode: -1,
				Message:  fmt.Sprintf("internal error: %v", r),
				Command:  probe.Command,
			}
		}
		result.Attempts = attempts
		result.Duration = time.Since(start)
	}()

	var last *types.ExecutionResult
	for i, link := range probe.Chain() {
		if i > 0 && ctx.Err() != nil {
			break
		}

		r := e.attempt(ctx, link, priv)
		r.UsedFallback = i > 0
		attempts = append(attempts, types.Attempt{
			Command: link.Command,
			Tool:    link.GoverningTool(),
			Status:  r.Status,
			Kind:    r.Kind,
		})

		if r.Status == types.ExecNotAttempted {
			continue
		}
		last = &r
		if r.Succeeded() {
			break
		}
	}

	if last == nil {
		return types.ExecutionResult{
			Status:   types.ExecNotAttempted,
			Kind:     types.FailureToolUnavailable,
			ExitCode: -1,
			Message:  fmt.Sprintf("not installed: %s", strings.Join(probe.Tools(), ", ")),
			Command:  probe.Command,
		}
	}
	return *last
}

// attempt runs a single link of a chain.
func (e *Executor) attempt(ctx context.Context, link types.Probe, priv types.PrivilegeContext) types.ExecutionResult {
	tool := link.GoverningTool()
	if !LinkAvailable(e.avail, link, priv) {
		e.logger.Debug("tool not available", "tool", tool, "command", link.Command)
		return types.ExecutionResult{
			Status:   types.ExecNotAttempted,
			Kind:     types.FailureToolUnavailable,
			ExitCode: -1,
			Message:  fmt.Sprintf("%s is not installed", tool),
			Command:  link.Command,
		}
	}

	argv, err := CommandArgv(link)
	if err != nil {
		return types.ExecutionResult{
			Status:   types.ExecFailure,
			Kind:     types.FailureExecution,
			ExitCode: -1,
			Message:  err.Error(),
			Command:  link.Command,
		}
	}

	needsElevation := link.RequiresElevation && !priv.IsElevated
	escalate := needsElevation && priv.CanEscalate()
	if escalate {
		argv = escalatedArgv(priv.EscalationCommand, argv)
	}

	timeout := e.timeoutFor(link)
	if link.Slow {
		e.logger.Debug("sampling probe started", "command", link.Command, "limit", timeout)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	out := e.runner.Run(runCtx, argv)

	e.logger.Debug("probe attempt",
		"argv", argv,
		"escalated", escalate,
		"exit_code", out.ExitCode,
		"duration", time.Since(started),
		"error", out.Err,
	)
	if len(out.Stderr) > 0 {
		e.logger.Debug("probe stderr", "command", link.Command, "stderr", strings.TrimSpace(string(out.Stderr)))
	}

	result := types.ExecutionResult{
		Command:   link.Command,
		Escalated: escalate,
		ExitCode:  out.ExitCode,
		Stderr:    string(out.Stderr),
	}

	if out.Err == nil {
		result.Status = types.ExecSuccess
		result.Stdout = string(out.Stdout)
		result.Truncated = out.Truncated
		return result
	}

	result.Status = types.ExecFailure
	result.Kind, result.Message = classifyFailure(ctx, runCtx, out, needsElevation, escalate, timeout)
	if result.Kind == types.FailureToolUnavailable {
		result.Status = types.ExecNotAttempted
	}
	return result
}

// timeoutFor resolves the time limit of one link.
func (e *Executor) timeoutFor(link types.Probe) time.Duration {
	switch {
	case link.Timeout > 0:
		return link.Timeout
	case link.Slow && e.SlowTimeout > 0:
		return e.SlowTimeout
	case link.Slow:
		return DefaultSlowTimeout
	case e.Timeout > 0:
		return e.Timeout
	default:
		return DefaultTimeout
	}
}

// classifyFailure maps a failed run to a FailureKind and a short message.
// Order matters: cancellation of the whole run wins over the probe's own
// deadline, which wins over anything the process itself reported.
func classifyFailure(parent, runCtx context.Context, out RunOutput, needsElevation, escalated bool, timeout time.Duration) (types.FailureKind, string) {
	if parent.Err() != nil {
		return types.FailureInterrupted, "interrupted before the command finished"
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return types.FailureTimeout, fmt.Sprintf("timed out after %s", timeout)
	}
	if errors.Is(out.Err, exec.ErrNotFound) || errors.Is(out.Err, fs.ErrNotExist) {
		return types.FailureToolUnavailable, out.Err.Error()
	}

	stderr := strings.ToLower(string(out.Stderr))
	if escalated {
		for _, refusal := range escalationRefusals {
			if strings.Contains(stderr, refusal) {
				return types.FailurePermissionDenied, "escalation refused: " + refusal
			}
		}
	}
	if needsElevation && !escalated {
		return types.FailurePermissionDenied, "requires elevated privileges and no escalation is available"
	}

	if out.ExitCode > 0 {
		return types.FailureExecution, fmt.Sprintf("exit status %d", out.ExitCode)
	}
	return types.FailureExecution, out.Err.Error()
}
