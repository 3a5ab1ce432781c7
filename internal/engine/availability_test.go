package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ancients-collective/triage/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathAvailability_ExecutableOnPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fakeprobe"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notexec"), []byte("data"), 0o644))
	t.Setenv("PATH", dir)

	a := NewPathAvailability()

	assert.True(t, a.IsAvailable("fakeprobe"))
	assert.False(t, a.IsAvailable("notexec"))
	assert.False(t, a.IsAvailable("missing-tool"))
	assert.False(t, a.IsAvailable(""))
}

func TestPathAvailability_CachesAnswers(t *testing.T) {
	calls := 0
	a := &PathAvailability{
		lookPath: func(name string) (string, error) {
			calls++
			if name == "ps" {
				return "/bin/ps", nil
			}
			return "", errors.New("not found")
		},
		access: func(string, uint32) error { return nil },
		cache:  make(map[string]bool),
	}

	assert.True(t, a.IsAvailable("ps"))
	assert.True(t, a.IsAvailable("ps"))
	assert.False(t, a.IsAvailable("iotop"))
	assert.False(t, a.IsAvailable("iotop"))
	assert.Equal(t, 2, calls)
}

func TestPathAvailability_AccessDenied(t *testing.T) {
	a := &PathAvailability{
		lookPath: func(string) (string, error) { return "/usr/sbin/tool", nil },
		access:   func(string, uint32) error { return os.ErrPermission },
		cache:    make(map[string]bool),
	}

	assert.False(t, a.IsAvailable("tool"))
}

func TestPathAvailability_EscalatedSearchesSecurePath(t *testing.T) {
	userBin := t.TempDir()
	sbin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(userBin, "uptime"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sbin, "fdisk"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sbin, "blkid.conf"), []byte("data"), 0o644))
	t.Setenv("PATH", userBin)

	a := NewPathAvailability()
	a.secureDirs = []string{sbin}

	assert.False(t, a.IsAvailable("fdisk"), "sbin is not on the caller's PATH")
	assert.True(t, a.IsAvailableEscalated("fdisk"))
	assert.True(t, a.IsAvailableEscalated("uptime"))
	assert.False(t, a.IsAvailableEscalated("blkid.conf"))
	assert.False(t, a.IsAvailableEscalated("parted"))
	assert.False(t, a.IsAvailableEscalated("../fdisk"))
	assert.False(t, a.IsAvailableEscalated(""))
}

// escalatedAvailability is installed for the caller only for tools in user,
// and through the escalation helper for tools in sbin as well.
type escalatedAvailability struct {
	user, sbin map[string]bool
}

func (a escalatedAvailability) IsAvailable(tool string) bool { return a.user[tool] }

func (a escalatedAvailability) IsAvailableEscalated(tool string) bool {
	return a.user[tool] || a.sbin[tool]
}

func TestLinkAvailable(t *testing.T) {
	avail := escalatedAvailability{
		user: map[string]bool{"lsblk": true},
		sbin: map[string]bool{"fdisk": true},
	}
	elevated := types.Probe{Command: "fdisk -l", RequiresElevation: true}
	plain := types.Probe{Command: "fdisk -l"}

	assert.True(t, LinkAvailable(avail, elevated, withSudo()))
	assert.False(t, LinkAvailable(avail, elevated, unprivileged()), "no helper to reach sbin")
	assert.False(t, LinkAvailable(avail, plain, withSudo()), "runs directly on the caller's PATH")
	assert.False(t, LinkAvailable(avail, elevated, types.PrivilegeContext{IsElevated: true, EscalationAvailable: true, EscalationCommand: []string{"sudo", "-n"}}))
	assert.True(t, LinkAvailable(avail, types.Probe{Command: "lsblk"}, unprivileged()))
	assert.False(t, LinkAvailable(installed(), elevated, withSudo()), "plain availability has no secure path")
}

func TestChainAvailable(t *testing.T) {
	probe := types.Probe{Command: "ip addr", Fallback: &types.Probe{Command: "ifconfig -a"}}

	assert.True(t, ChainAvailable(installed("ip"), probe, unprivileged()))
	assert.True(t, ChainAvailable(installed("ifconfig"), probe, unprivileged()))
	assert.False(t, ChainAvailable(installed("netstat"), probe, unprivileged()))

	elevated := types.Probe{Command: "parted -l", RequiresElevation: true}
	sbinOnly := escalatedAvailability{sbin: map[string]bool{"parted": true}}
	assert.True(t, ChainAvailable(sbinOnly, elevated, withSudo()))
	assert.False(t, ChainAvailable(sbinOnly, elevated, unprivileged()))
}
