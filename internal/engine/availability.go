// Package engine contains the probe execution engine: tool availability,
// the command runner, the scoped executor with its fallback chains, and the
// skip filter.
package engine

import (
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ancients-collective/triage/internal/types"
	"golang.org/x/sys/unix"
)

// Availability answers whether a tool is installed and executable.
// A missing tool is a normal answer, never an error.
type Availability interface {
	IsAvailable(tool string) bool
}

// EscalatedAvailability is implemented by availability checks that can also
// answer for tools run through the escalation helper, which resolves
// commands on its own secure path rather than the caller's $PATH.
type EscalatedAvailability interface {
	IsAvailableEscalated(tool string) bool
}

// securePath mirrors the secure_path sudo ships with on common distributions.
var securePath = []string{"/usr/local/sbin", "/usr/local/bin", "/usr/sbin", "/usr/bin", "/sbin", "/bin"}

// PathAvailability resolves tools on $PATH and confirms the current user may
// execute them. Answers are cached for the run; host state is not expected
// to change while a report is generated.
type PathAvailability struct {
	lookPath   func(string) (string, error)
	access     func(string, uint32) error
	secureDirs []string

	mu       sync.Mutex
	cache    map[string]bool
	escCache map[string]bool
}

// NewPathAvailability returns a PathAvailability backed by exec.LookPath and access(2).
func NewPathAvailability() *PathAvailability {
	return &PathAvailability{
		lookPath:   exec.LookPath,
		access:     unix.Access,
		secureDirs: securePath,
		cache:      make(map[string]bool),
		escCache:   make(map[string]bool),
	}
}

// IsAvailable reports whether tool resolves on $PATH to a file the effective
// user can execute.
func (a *PathAvailability) IsAvailable(tool string) bool {
	if tool == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if ok, cached := a.cache[tool]; cached {
		return ok
	}

	ok := false
	if path, err := a.lookPath(tool); err == nil {
		ok = a.access(path, unix.X_OK) == nil
	}
	a.cache[tool] = ok
	return ok
}

// IsAvailableEscalated reports whether tool is on $PATH or in one of the
// secure path directories the escalation helper searches.
func (a *PathAvailability) IsAvailableEscalated(tool string) bool {
	if a.IsAvailable(tool) {
		return true
	}
	if tool == "" || strings.Contains(tool, "/") {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if ok, cached := a.escCache[tool]; cached {
		return ok
	}

	ok := false
	for _, dir := range a.secureDirs {
		if _, err := a.lookPath(filepath.Join(dir, tool)); err == nil {
			ok = true
			break
		}
	}
	a.escCache[tool] = ok
	return ok
}

// LinkAvailable reports whether one link of a chain can run. A link that
// will go through the escalation helper is also looked up on the helper's
// secure path when avail supports it.
func LinkAvailable(avail Availability, link types.Probe, priv types.PrivilegeContext) bool {
	tool := link.GoverningTool()
	if avail.IsAvailable(tool) {
		return true
	}
	if link.RequiresElevation && priv.CanEscalate() {
		if esc, ok := avail.(EscalatedAvailability); ok {
			return esc.IsAvailableEscalated(tool)
		}
	}
	return false
}

// ChainAvailable reports whether any link of the probe's fallback chain can run.
func ChainAvailable(avail Availability, probe types.Probe, priv types.PrivilegeContext) bool {
	for _, link := range probe.Chain() {
		if LinkAvailable(avail, link, priv) {
			return true
		}
	}
	return false
}
