package engine

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/kballard/go-shellquote"

	"github.com/ancients-collective/triage/internal/types"
)

// shellPath runs probes marked shell: true when bash is not installed.
const shellPath = "/bin/sh"

// pipefailGuard turns on pipefail in a POSIX shell that supports it and is a
// no-op in one that does not.
const pipefailGuard = "(set -o pipefail) 2>/dev/null && set -o pipefail; "

// bashPath is resolved once per process; "" when bash is not on $PATH.
var bashPath = sync.OnceValue(func() string {
	path, err := exec.LookPath("bash")
	if err != nil {
		return ""
	}
	return path
})

// CommandArgv converts a probe's literal command into the argv to execute.
// Shell probes run with pipefail, so a failing stage of a pipeline fails the
// probe; every other command is split with POSIX shell quoting rules and
// executed without a shell.
func CommandArgv(p types.Probe) ([]string, error) {
	if p.Shell {
		if p.Command == "" {
			return nil, errEmptyCommand
		}
		return shellArgv(bashPath(), p.Command), nil
	}

	argv, err := shellquote.Split(p.Command)
	if err != nil {
		return nil, fmt.Errorf("cannot split command %q: %w", p.Command, err)
	}
	if len(argv) == 0 {
		return nil, errEmptyCommand
	}
	return argv, nil
}

// shellArgv runs command under bash with pipefail, or under /bin/sh with
// pipefail where the shell has it.
func shellArgv(bash, command string) []string {
	if bash != "" {
		return []string{bash, "-o", "pipefail", "-c", command}
	}
	return []string{shellPath, "-c", pipefailGuard + command}
}

// escalatedArgv prefixes argv with the escalation helper.
func escalatedArgv(prefix, argv []string) []string {
	out := make([]string, 0, len(prefix)+len(argv))
	out = append(out, prefix...)
	return append(out, argv...)
}
