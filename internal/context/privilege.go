package context

import (
	"context"
	"log/slog"
	"time"

	"github.com/ancients-collective/triage/internal/types"
)

// escalationHelper is the helper used for elevated probes. "-n" makes sudo
// fail instead of prompting when no cached credentials exist.
var escalationHelper = []string{"sudo", "-n"}

// escalationCheckTimeout bounds the non-interactive helper check.
const escalationCheckTimeout = 5 * time.Second

// IdentitySource provides the facts privilege detection depends on.
type IdentitySource interface {
	// EffectiveUID returns the effective user id of the process.
	EffectiveUID() int

	// LookPath resolves an executable on the search path.
	LookPath(name string) (string, error)

	// RunQuiet runs a command with no stdin and discarded output.
	RunQuiet(ctx context.Context, path string, args ...string) error
}

// DetectPrivilege builds the run's PrivilegeContext. It never fails: any
// problem reaching the helper simply means escalation is unavailable. When
// allowEscalation is false, or the process is already root, the helper is
// not consulted.
func DetectPrivilege(ctx context.Context, src IdentitySource, allowEscalation bool, logger *slog.Logger) types.PrivilegeContext {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	priv := types.PrivilegeContext{IsElevated: src.EffectiveUID() == 0}
	if priv.IsElevated || !allowEscalation {
		logger.Debug("escalation check skipped", "elevated", priv.IsElevated, "allowed", allowEscalation)
		return priv
	}

	path, err := src.LookPath(escalationHelper[0])
	if err != nil {
		logger.Debug("escalation helper not found", "helper", escalationHelper[0], "error", err)
		return priv
	}

	checkCtx, cancel := context.WithTimeout(ctx, escalationCheckTimeout)
	defer cancel()

	args := append(append([]string{}, escalationHelper[1:]...), "true")
	if err := src.RunQuiet(checkCtx, path, args...); err != nil {
		logger.Debug("escalation helper refused non-interactive use", "path", path, "error", err)
		return priv
	}

	priv.EscalationAvailable = true
	priv.EscalationCommand = append([]string{}, escalationHelper...)
	logger.Debug("escalation available", "path", path)
	return priv
}
