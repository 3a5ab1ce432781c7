package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ancients-collective/triage/internal/engine"
	"github.com/ancients-collective/triage/internal/types"
)

// ProbeExecutor runs one probe and its fallback chain. engine.Executor
// satisfies it; tests substitute a spy.
type ProbeExecutor interface {
	Execute(ctx context.Context, probe types.Probe, priv types.PrivilegeContext) types.ExecutionResult
}

// sectionRenderer writes one section: its header, every subsection header,
// and one block per probe, in declaration order.
type sectionRenderer struct {
	exec   ProbeExecutor
	avail  engine.Availability
	priv   types.PrivilegeContext
	sys    types.SystemContext
	logger *slog.Logger

	// tick is called once per probe accounted for; may be nil.
	tick func()
}

// render writes the section and returns its tally. Once ctx is done no
// further probe starts, but every remaining subsection header is still
// written with a not-run notice, and the probes it never reached are counted
// as NotRun. A failed write ends the section immediately.
func (r *sectionRenderer) render(ctx context.Context, tw *textWriter, s types.Section) types.Tally {
	var tally types.Tally

	tw.sectionHeader(s.Title)
	r.logger.Debug("section started", "section", s.Title, "probes", s.ProbeCount())

	remaining := s.ProbeCount()
	for _, sub := range s.Subsections {
		if tw.err() != nil {
			break
		}
		tw.subsectionHeader(sub.Title)

		ran := 0
		for _, p := range sub.Probes {
			if ctx.Err() != nil || tw.err() != nil {
				break
			}
			tally.Add(r.renderProbe(ctx, tw, p))
			ran++
			remaining--
			if r.tick != nil {
				r.tick()
			}
		}
		if left := len(sub.Probes) - ran; left > 0 && tw.err() == nil {
			tw.notRun(left)
		}
	}

	tally.NotRun += remaining
	return tally
}

// renderSkipped writes the headers of a section excluded from the run.
func (r *sectionRenderer) renderSkipped(tw *textWriter, s types.Section, reason string) types.Tally {
	tw.sectionHeader(s.Title)
	tw.sectionSkipped(reason)
	if r.tick != nil {
		for range s.ProbeCount() {
			r.tick()
		}
	}
	return types.Tally{Skipped: s.ProbeCount()}
}

// renderProbe decides how a single probe is presented and returns its
// contribution to the tally.
func (r *sectionRenderer) renderProbe(ctx context.Context, tw *textWriter, p types.Probe) types.Tally {
	if skip, reason := engine.ShouldSkip(p, r.sys); skip {
		tw.probeHead(p.Description, p.Command, "")
		tw.skipped(reason)
		return types.Tally{Skipped: 1}
	}

	if !engine.ChainAvailable(r.avail, p, r.priv) {
		tw.probeHead(p.Description, p.Command, "")
		tw.notInstalled(p.Tools(), installHint(p))
		return types.Tally{Unavailable: 1}
	}

	res := r.exec.Execute(ctx, p, r.priv)

	command := res.Command
	if command == "" {
		command = p.Command
	}
	via := ""
	if res.Escalated {
		via = r.helperName()
	}
	tw.probeHead(p.Description, command, via)
	if res.UsedFallback {
		tw.note(fallbackNote(res))
	}

	var tally types.Tally
	if res.UsedFallback {
		tally.Fallbacks = 1
	}

	switch {
	case res.Succeeded():
		tw.output(res.Stdout, res.Truncated)
		tally.Succeeded = 1
	case res.Status == types.ExecNotAttempted:
		tw.failure(res, r.privilegeHint())
		tally.Unavailable = 1
	default:
		tw.failure(res, r.privilegeHint())
		tally.Failed = 1
	}
	return tally
}

func (r *sectionRenderer) helperName() string {
	if len(r.priv.EscalationCommand) == 0 {
		return "sudo"
	}
	return r.priv.EscalationCommand[0]
}

// privilegeHint tells the operator how to get complete output from probes
// that need elevation.
func (r *sectionRenderer) privilegeHint() string {
	if r.priv.EscalationAvailable {
		return "Escalation was refused; re-run as root or allow this command with passwordless sudo."
	}
	return "Re-run as root, or configure passwordless sudo for this user."
}

// installHint returns the first install hint declared along the chain.
func installHint(p types.Probe) string {
	for _, link := range p.Chain() {
		if link.InstallHint != "" {
			return link.InstallHint
		}
	}
	return ""
}

// fallbackNote explains which links were passed over before the one whose
// result is shown.
func fallbackNote(res types.ExecutionResult) string {
	var parts []string
	for _, a := range res.Attempts {
		if a.Command == res.Command && a.Status == res.Status {
			break
		}
		parts = append(parts, fmt.Sprintf("%q %s", a.Command, attemptOutcome(a)))
	}
	if len(parts) == 0 {
		return "output from a fallback command"
	}
	return "fallback used; " + strings.Join(parts, ", ")
}

func attemptOutcome(a types.Attempt) string {
	switch a.Kind {
	case types.FailureToolUnavailable:
		return "not installed"
	case types.FailurePermissionDenied:
		return "permission denied"
	case types.FailureTimeout:
		return "timed out"
	case types.FailureInterrupted:
		return "interrupted"
	default:
		return "failed"
	}
}
