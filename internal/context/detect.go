// Package context detects facts about the host the report runs on: the
// operating system, distribution and environment shown in the banner, and
// the privilege context that decides how elevated probes are executed.
package context

import (
	"fmt"

	"github.com/ancients-collective/triage/internal/types"
)

// OSDetector abstracts platform-specific system detection.
// Each supported OS provides an implementation via build tags.
type OSDetector interface {
	// DetectOS returns operating system information.
	DetectOS() (types.OSInfo, error)

	// DetectDistro returns Linux distribution information.
	// Returns empty DistroInfo on non-Linux systems.
	DetectDistro() (types.DistroInfo, error)

	// DetectEnvironment returns execution environment information
	// (container, VM, or bare-metal).
	DetectEnvironment() (types.EnvInfo, error)
}

// DetectSystemContext runs every detection layer and never fails: the banner
// is best-effort, so each failed layer becomes a warning and leaves its part
// of the context empty.
func DetectSystemContext(detector OSDetector) (types.SystemContext, []string) {
	var ctx types.SystemContext
	var warnings []string

	if osInfo, err := detector.DetectOS(); err != nil {
		warnings = append(warnings, fmt.Sprintf("OS detection failed: %v", err))
	} else {
		ctx.OS = osInfo
	}

	if distro, err := detector.DetectDistro(); err != nil {
		warnings = append(warnings, fmt.Sprintf("distro detection failed: %v", err))
	} else {
		ctx.Distro = distro
	}

	if env, err := detector.DetectEnvironment(); err != nil {
		warnings = append(warnings, fmt.Sprintf("environment detection failed: %v", err))
	} else {
		ctx.Environment = env
	}

	return ctx, warnings
}

// Summary renders the context as the banner's one-line system description,
// e.g. "ubuntu 22.04 (debian) · linux/amd64 · vm (kvm)".
func Summary(ctx types.SystemContext) string {
	var parts []string
	if ctx.Distro.ID != "" {
		d := ctx.Distro.ID
		if ctx.Distro.Version != "" {
			d += " " + ctx.Distro.Version
		}
		if ctx.Distro.Family != "" && ctx.Distro.Family != ctx.Distro.ID {
			d += " (" + ctx.Distro.Family + ")"
		}
		parts = append(parts, d)
	}
	if ctx.OS.Name != "" {
		o := ctx.OS.Name
		if ctx.OS.Arch != "" {
			o += "/" + ctx.OS.Arch
		}
		parts = append(parts, o)
	}
	if ctx.Environment.Type != "" {
		e := ctx.Environment.Type
		if ctx.Environment.Runtime != "" {
			e += " (" + ctx.Environment.Runtime + ")"
		}
		parts = append(parts, e)
	}
	if len(parts) == 0 {
		return "unknown"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " · " + p
	}
	return out
}
