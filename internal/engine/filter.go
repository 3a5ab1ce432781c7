package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ancients-collective/triage/internal/types"
)

// ShouldSkip reports whether a probe does not apply to this host.
// Unknown host facts (empty OS or environment) never cause a skip.
func ShouldSkip(p types.Probe, ctx types.SystemContext) (skip bool, reason string) {
	if len(p.SupportedOS) > 0 && ctx.OS.Name != "" && !slices.Contains(p.SupportedOS, ctx.OS.Name) {
		return true, fmt.Sprintf("OS %q not in supported list [%s]",
			ctx.OS.Name, strings.Join(p.SupportedOS, ", "))
	}

	if ctx.Environment.Type != "" && slices.Contains(p.SkipEnvironments, ctx.Environment.Type) {
		return true, fmt.Sprintf("not applicable in a %s environment", ctx.Environment.Type)
	}

	return false, ""
}
