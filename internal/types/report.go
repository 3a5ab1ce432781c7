package types

import "time"

// ReportMeta describes one report run for the banner.
type ReportMeta struct {
	// ID is a unique, time-sortable identifier of this run.
	ID string

	// Version is the triage version that produced the report.
	Version string

	// Started is the process clock at the start of the run.
	Started time.Time

	// System describes the host.
	System SystemContext

	// Privilege is the privilege context of the run.
	Privilege PrivilegeContext
}

// Tally counts probe outcomes across a run.
type Tally struct {
	// Succeeded is the number of probes that produced output.
	Succeeded int

	// Failed is the number of probes that ran but produced no output.
	Failed int

	// Unavailable is the number of probes whose tools were not installed.
	Unavailable int

	// Skipped is the number of probes skipped by OS, environment or section filters.
	Skipped int

	// Fallbacks is the number of results that came from a fallback link.
	Fallbacks int

	// NotRun is the number of probes never started because the run was cut short.
	NotRun int
}

// Total returns the number of probes accounted for.
func (t Tally) Total() int {
	return t.Succeeded + t.Failed + t.Unavailable + t.Skipped + t.NotRun
}

// Add accumulates another tally into t.
func (t *Tally) Add(o Tally) {
	t.Succeeded += o.Succeeded
	t.Failed += o.Failed
	t.Unavailable += o.Unavailable
	t.Skipped += o.Skipped
	t.Fallbacks += o.Fallbacks
	t.NotRun += o.NotRun
}
