package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"

	"github.com/ancients-collective/triage/internal/types"
)

func TestSubsectionHeader_FullWidth(t *testing.T) {
	for _, title := range []string{"CPU", "Routing and DNS", "ネットワーク", strings.Repeat("long ", 30)} {
		var buf bytes.Buffer
		newTextWriter(&buf, false).subsectionHeader(title)

		line, _, _ := strings.Cut(buf.String(), "\n")
		assert.Equal(t, lineWidth, runewidth.StringWidth(line), title)
		assert.True(t, strings.HasPrefix(line, "--- "), title)
	}
}

func TestSectionHeader_Box(t *testing.T) {
	var buf bytes.Buffer
	newTextWriter(&buf, false).sectionHeader("Disk")

	lines := strings.Split(buf.String(), "\n")
	rule := strings.Repeat("=", lineWidth)
	assert.Equal(t, rule, lines[0])
	assert.Equal(t, "DISK", strings.TrimSpace(lines[1]))
	assert.Equal(t, rule, lines[2])
}

func TestCenter(t *testing.T) {
	assert.Equal(t, "   ab", center("ab", 8))
	assert.Equal(t, "abcdef", center("abcdef", 4))
	assert.Equal(t, "  日本", center("日本", 8))
}

func TestFailureNotices(t *testing.T) {
	tests := []struct {
		kind types.FailureKind
		msg  string
		want string
	}{
		{types.FailureExecution, "exit status 2", "Failed: exit status 2"},
		{types.FailureExecution, "", "Failed: command failed"},
		{types.FailureTimeout, "timed out after 30s", "Timed out: timed out after 30s"},
		{types.FailureInterrupted, "interrupted before the command finished", "Interrupted:"},
		{types.FailurePermissionDenied, "escalation refused: a password is required", "Permission denied: escalation refused"},
		{types.FailureToolUnavailable, "lshw is not installed", "Not installed: lshw is not installed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+tt.msg, func(t *testing.T) {
			var buf bytes.Buffer
			newTextWriter(&buf, false).failure(types.ExecutionResult{Kind: tt.kind, Message: tt.msg}, "privilege hint")

			out := buf.String()
			assert.Contains(t, out, tt.want)
			assert.Equal(t, tt.kind == types.FailurePermissionDenied, strings.Contains(out, "privilege hint"))
			assert.Equal(t, 2, strings.Count(out, strings.Repeat("-", lineWidth)), "notice sits between delimiters")
		})
	}
}

func TestNotInstalled_DedupesTools(t *testing.T) {
	var buf bytes.Buffer
	newTextWriter(&buf, true).notInstalled([]string{"ip", "ip", "ifconfig"}, "")

	assert.Equal(t, "- Not installed: ip, ifconfig\n\n", buf.String())
}

func TestNotRun(t *testing.T) {
	var buf bytes.Buffer
	tw := newTextWriter(&buf, true)
	tw.notRun(1)
	tw.notRun(4)

	assert.Contains(t, buf.String(), "- Not run: report stopped before 1 probe\n")
	assert.Contains(t, buf.String(), "- Not run: report stopped before 4 probes\n")
}

func TestCompletion(t *testing.T) {
	finished := time.Date(2026, 1, 15, 10, 31, 0, 0, time.UTC)
	tally := types.Tally{Succeeded: 5, Failed: 1, Unavailable: 2, Skipped: 1, Fallbacks: 3}

	var buf bytes.Buffer
	newTextWriter(&buf, false).completion(tally, 61*time.Second, finished, "")
	out := buf.String()

	assert.Contains(t, out, "REPORT COMPLETE")
	assert.Contains(t, out, bannerRow("Probes:", "9 total · 5 succeeded · 1 failed · 2 not installed · 1 skipped"))
	assert.Contains(t, out, bannerRow("Fallbacks:", "3 used"))
	assert.Contains(t, out, bannerRow("Elapsed:", "1m1s"))
	assert.Contains(t, out, bannerRow("Finished:", "2026-01-15T10:31:00Z"))
	assert.NotContains(t, out, "Not run:")
}

func TestIcons_Dumb(t *testing.T) {
	dumb := &textWriter{dumb: true}
	fancy := &textWriter{}

	for _, name := range []string{"fail", "skip", "warn"} {
		assert.Len(t, dumb.icon(name), 1, name)
		assert.NotEqual(t, dumb.icon(name), fancy.icon(name), name)
	}
}
