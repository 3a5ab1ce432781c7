package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/ancients-collective/triage/internal/engine"
	"github.com/ancients-collective/triage/internal/types"
)

// ─── Layout constants ────────────────────────────────────────────────
//
// Every delimiter is lineWidth columns wide. Banner rows use a fixed label
// field so values line up:
//
//	col 0  2            14
//	│margin│ LABEL:      │ value
//
const (
	lineWidth  = 80 // width of every delimiter line
	colMargin  = 2  // left margin for banner rows and notices
	labelWidth = 12 // fixed label field: "Privileges: "
)

// Color helpers; each returns a sprint function.
var (
	cBold   = color.New(color.Bold).SprintFunc()
	cRed    = color.New(color.FgRed).SprintFunc()
	cYellow = color.New(color.FgYellow).SprintFunc()
	cCyan   = color.New(color.FgCyan).SprintFunc()
	cDim    = color.New(color.Faint).SprintFunc()

	cRedBold   = color.New(color.FgRed, color.Bold).SprintFunc()
	cGreenBold = color.New(color.FgGreen, color.Bold).SprintFunc()
	cCyanBold  = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// IsDumbTerm returns true when the terminal doesn't support Unicode.
func IsDumbTerm() bool {
	t := os.Getenv("TERM")
	return t == "dumb" || t == ""
}

// errWriter remembers the first write error and refuses every write after it.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	if err != nil {
		ew.err = fmt.Errorf("%w: %w", types.ErrOutputWrite, err)
	}
	return n, ew.err
}

// textWriter renders the report layout onto an errWriter. Formatting calls
// ignore write errors; callers check err() at block boundaries.
type textWriter struct {
	out  *errWriter
	dumb bool
}

func newTextWriter(w io.Writer, dumb bool) *textWriter {
	return &textWriter{out: &errWriter{w: w}, dumb: dumb}
}

func (t *textWriter) err() error {
	return t.out.err
}

func (t *textWriter) printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

func (t *textWriter) blank() {
	fmt.Fprintln(t.out)
}

// ─── Banner ──────────────────────────────────────────────────────────

// bannerFacts are the best-effort host facts printed in the banner.
type bannerFacts struct {
	Generated string
	User      string
	Hostname  string
	Kernel    string
	System    string
}

func (t *textWriter) banner(meta types.ReportMeta, facts bannerFacts) {
	t.box("SYSTEM TRIAGE REPORT", cCyanBold)
	t.row("Report ID:", meta.ID)
	t.row("Generated:", facts.Generated)
	t.row("User:", facts.User)
	t.row("Hostname:", facts.Hostname)
	t.row("Kernel:", facts.Kernel)
	t.row("System:", facts.System)
	t.row("Privileges:", meta.Privilege.Describe())
	if meta.Version != "" {
		t.row("Version:", meta.Version)
	}

	if !meta.Privilege.IsElevated && !meta.Privilege.EscalationAvailable {
		t.blank()
		t.printf("%s%s %s\n", pad(colMargin), cYellow(t.icon("warn")),
			cYellow("Not running as root and no passwordless sudo: probes that need elevation may be incomplete"))
	}
	t.blank()
}

// row prints one aligned "Label: value" banner line.
func (t *textWriter) row(label, value string) {
	if value == "" {
		value = "unknown"
	}
	t.printf("%s%s%s\n", pad(colMargin), cBold(runewidth.FillRight(label, labelWidth)), value)
}

// ─── Section and subsection headers ──────────────────────────────────

// box prints a title centered between two full-width "=" delimiters.
func (t *textWriter) box(title string, style func(a ...any) string) {
	rule := strings.Repeat("=", lineWidth)
	t.printf("%s\n", rule)
	t.printf("%s\n", style(center(title, lineWidth)))
	t.printf("%s\n", rule)
}

func (t *textWriter) sectionHeader(title string) {
	t.box(strings.ToUpper(title), cBold)
	t.blank()
}

func (t *textWriter) subsectionHeader(title string) {
	label := "--- " + runewidth.Truncate(title, lineWidth-8, "...") + " "
	fill := lineWidth - runewidth.StringWidth(label)
	if fill < 3 {
		fill = 3
	}
	t.printf("%s%s\n", cBold(label), strings.Repeat("-", fill))
	t.blank()
}

func (t *textWriter) sectionSkipped(reason string) {
	t.printf("%s%s %s\n", pad(colMargin), cDim(t.icon("skip")), cDim("Section skipped: "+reason))
	t.blank()
}

// ─── Probe blocks ────────────────────────────────────────────────────

// probeHead prints the description and the command that was (or would
// have been) run.
func (t *textWriter) probeHead(description, command, via string) {
	t.printf("%s %s\n", cCyan(">"), cBold(description))
	line := "Command: " + command
	if via != "" {
		line += " " + cDim("(via "+via+")")
	}
	t.printf("%s\n", line)
}

func (t *textWriter) note(text string) {
	t.printf("%s %s\n", cDim("Note:"), cDim(text))
}

func (t *textWriter) delimiter() {
	t.printf("%s\n", cDim(strings.Repeat("-", lineWidth)))
}

// output prints captured stdout between delimiters.
func (t *textWriter) output(stdout string, truncated bool) {
	t.delimiter()
	if strings.TrimSpace(stdout) == "" {
		t.printf("%s\n", cDim("(no output)"))
	} else {
		t.printf("%s", stdout)
		if !strings.HasSuffix(stdout, "\n") {
			t.blank()
		}
	}
	if truncated {
		t.printf("%s\n", cYellow(fmt.Sprintf("[output truncated at %d MiB]", engine.MaxOutputBytes>>20)))
	}
	t.delimiter()
	t.blank()
}

// failure prints a failure notice between delimiters.
func (t *textWriter) failure(res types.ExecutionResult, privHint string) {
	t.delimiter()
	switch res.Kind {
	case types.FailurePermissionDenied:
		t.printf("%s %s\n", cRed(t.icon("fail")), cRedBold("Permission denied: "+res.Message))
		t.printf("%s\n", cDim(privHint))
	case types.FailureTimeout:
		t.printf("%s %s\n", cYellow(t.icon("warn")), cYellow("Timed out: "+res.Message))
	case types.FailureInterrupted:
		t.printf("%s %s\n", cYellow(t.icon("warn")), cYellow("Interrupted: "+res.Message))
	case types.FailureToolUnavailable:
		t.printf("%s %s\n", cYellow(t.icon("skip")), cYellow("Not installed: "+res.Message))
	default:
		msg := res.Message
		if msg == "" {
			msg = "command failed"
		}
		t.printf("%s %s\n", cRed(t.icon("fail")), cRed("Failed: "+msg))
	}
	t.delimiter()
	t.blank()
}

// notInstalled prints the one-line notice for a probe whose tools are all missing.
func (t *textWriter) notInstalled(tools []string, hint string) {
	t.printf("%s %s\n", cYellow(t.icon("skip")), cYellow("Not installed: "+strings.Join(uniq(tools), ", ")))
	if hint != "" {
		t.printf("%s%s %s\n", pad(colMargin), cDim("Hint:"), hint)
	}
	t.blank()
}

// notRun marks the probes of a subsection that the stopped report never reached.
func (t *textWriter) notRun(count int) {
	noun := "probes"
	if count == 1 {
		noun = "probe"
	}
	t.printf("%s %s\n", cDim(t.icon("skip")), cDim(fmt.Sprintf("Not run: report stopped before %d %s", count, noun)))
	t.blank()
}

func (t *textWriter) skipped(reason string) {
	t.printf("%s %s\n", cDim(t.icon("skip")), cDim("Skipped: "+reason))
	t.blank()
}

// ─── Completion banner ───────────────────────────────────────────────

func (t *textWriter) completion(tally types.Tally, elapsed time.Duration, finished time.Time, stopped string) {
	title := "REPORT COMPLETE"
	style := cGreenBold
	if stopped != "" {
		title = "REPORT INCOMPLETE"
		style = cRedBold
	}
	t.box(title, style)

	t.row("Probes:", fmt.Sprintf("%d total · %d succeeded · %d failed · %d not installed · %d skipped",
		tally.Total(), tally.Succeeded, tally.Failed, tally.Unavailable, tally.Skipped))
	t.row("Fallbacks:", fmt.Sprintf("%d used", tally.Fallbacks))
	if stopped != "" {
		t.row("Not run:", fmt.Sprintf("%d", tally.NotRun))
		t.row("Stopped:", stopped)
	}
	t.row("Elapsed:", elapsed.Round(100*time.Millisecond).String())
	t.row("Finished:", finished.Format(time.RFC3339))
	t.printf("%s\n", strings.Repeat("=", lineWidth))
}

// ─── Helpers ─────────────────────────────────────────────────────────

func (t *textWriter) icon(name string) string {
	if t.dumb {
		switch name {
		case "fail":
			return "x"
		case "skip":
			return "-"
		case "warn":
			return "!"
		default:
			return "?"
		}
	}
	switch name {
	case "fail":
		return "✗"
	case "skip":
		return "○"
	case "warn":
		return "⚠"
	default:
		return "?"
	}
}

// center pads s on the left so it sits in the middle of width columns.
func center(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", (width-w)/2) + s
}

func pad(n int) string {
	return strings.Repeat(" ", n)
}

func uniq(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
