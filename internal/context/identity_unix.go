//go:build linux || darwin

package context

import (
	"context"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// OSIdentity implements IdentitySource for the running process.
type OSIdentity struct{}

// EffectiveUID returns the effective user id via geteuid(2).
func (OSIdentity) EffectiveUID() int {
	return unix.Geteuid()
}

// LookPath resolves name on $PATH.
func (OSIdentity) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// RunQuiet runs path with args, no stdin and discarded output.
func (OSIdentity) RunQuiet(ctx context.Context, path string, args ...string) error {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = time.Second
	return cmd.Run()
}
