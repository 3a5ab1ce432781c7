// Package report assembles the diagnostic report: the banner, every catalog
// section in order, and the completion banner. It owns the output stream for
// one run and is the only place where a failure aborts the run: when the
// report itself cannot be written.
package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	sysdetect "github.com/ancients-collective/triage/internal/context"
	"github.com/ancients-collective/triage/internal/engine"
	"github.com/ancients-collective/triage/internal/types"
)

// Stop reasons printed in the completion banner of a cut-short run.
const (
	StopInterrupted = "interrupted"
	StopBudget      = "time budget exhausted"
)

// Options tune one report run.
type Options struct {
	// Version is printed in the banner.
	Version string

	// Only restricts the run to these section titles (case-insensitive).
	// Empty runs every section.
	Only []string

	// Dumb selects ASCII icons for terminals without Unicode.
	Dumb bool

	// Progress is called after every probe with the number of probes
	// accounted for so far and the total; may be nil.
	Progress func(done, total int)

	// Logger receives debug output; nil discards it.
	Logger *slog.Logger
}

// Generator produces one report from a catalog.
type Generator struct {
	catalog types.Catalog
	exec    ProbeExecutor
	avail   engine.Availability
	system  types.SystemContext
	priv    types.PrivilegeContext
	opts    Options
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewGenerator creates a Generator. The privilege and system contexts are
// fixed for the run.
func NewGenerator(cat types.Catalog, exec ProbeExecutor, avail engine.Availability,
	sys types.SystemContext, priv types.PrivilegeContext, opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{
		catalog: cat,
		exec:    exec,
		avail:   avail,
		system:  sys,
		priv:    priv,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return ulid.Make().String() },
	}
}

// Generate writes the report to w and returns the tally of probe outcomes.
// Probe failures never produce an error; the only error is a failed write,
// which wraps types.ErrOutputWrite. When ctx is cancelled no further probe
// starts; the remaining section headers and the completion banner are still
// written.
func (g *Generator) Generate(ctx context.Context, w io.Writer) (types.Tally, error) {
	started := g.now()
	tw := newTextWriter(w, g.opts.Dumb)

	meta := types.ReportMeta{
		ID:        g.newID(),
		Version:   g.opts.Version,
		Started:   started,
		System:    g.system,
		Privilege: g.priv,
	}
	tw.banner(meta, g.collectFacts(ctx, started))
	if err := tw.err(); err != nil {
		return types.Tally{}, err
	}

	renderer := &sectionRenderer{
		exec:   g.exec,
		avail:  g.avail,
		priv:   g.priv,
		sys:    g.system,
		logger: g.logger,
	}
	total := g.catalog.ProbeCount()
	done := 0
	if g.opts.Progress != nil {
		renderer.tick = func() {
			done++
			g.opts.Progress(done, total)
		}
	}

	only := selection(g.opts.Only)
	var tally types.Tally
	for _, s := range g.catalog.Sections {
		if only != nil && !only[strings.ToLower(s.Title)] {
			tally.Add(renderer.renderSkipped(tw, s, "not selected with --only"))
		} else {
			tally.Add(renderer.render(ctx, tw, s))
		}
		if err := tw.err(); err != nil {
			return tally, err
		}
	}

	stopped := stopReason(ctx)
	if stopped != "" {
		g.logger.Debug("report cut short", "reason", stopped, "not_run", tally.NotRun)
	}
	finished := g.now()
	tw.completion(tally, finished.Sub(started), finished, stopped)
	return tally, tw.err()
}

// collectFacts runs the banner probes. Each one is best-effort: a missing or
// failing tool leaves the value "unknown".
func (g *Generator) collectFacts(ctx context.Context, started time.Time) bannerFacts {
	facts := bannerFacts{
		Generated: g.fact(ctx, bannerDate),
		User:      g.fact(ctx, bannerUser),
		Hostname:  g.fact(ctx, bannerHostname),
		Kernel:    g.fact(ctx, bannerKernel),
		System:    sysdetect.Summary(g.system),
	}
	if facts.Generated == "" {
		facts.Generated = started.Format(time.RFC1123)
	}
	return facts
}

// fact returns the first line of a banner probe's output, or "".
func (g *Generator) fact(ctx context.Context, p types.Probe) string {
	if ctx.Err() != nil {
		return ""
	}
	res := g.exec.Execute(ctx, p, g.priv)
	if !res.Succeeded() {
		g.logger.Debug("banner probe failed", "command", p.Command, "kind", res.Kind, "message", res.Message)
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return strings.TrimSpace(line)
}

// Banner probes. They run through the executor like catalog probes but are
// not counted in the tally.
var (
	bannerDate     = types.Probe{Command: "date", Description: "Current date and time"}
	bannerUser     = types.Probe{Command: "whoami", Description: "Current user", Fallback: &types.Probe{Command: "id -un"}}
	bannerHostname = types.Probe{Command: "hostname", Description: "Host name", Fallback: &types.Probe{Command: "uname -n"}}
	bannerKernel   = types.Probe{Command: "uname -srvm", Description: "Kernel signature"}
)

// selection turns the --only list into a lookup set; nil selects everything.
func selection(titles []string) map[string]bool {
	if len(titles) == 0 {
		return nil
	}
	set := make(map[string]bool, len(titles))
	for _, t := range titles {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}

// stopReason explains why ctx ended the run early, or returns "".
func stopReason(ctx context.Context) string {
	if ctx.Err() == nil {
		return ""
	}
	if errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		return StopBudget
	}
	return StopInterrupted
}
