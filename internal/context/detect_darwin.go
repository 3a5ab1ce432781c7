//go:build darwin

package context

import (
	"runtime"

	"github.com/ancients-collective/triage/internal/types"
	"github.com/shirou/gopsutil/v4/host"
)

// DarwinDetector implements OSDetector for macOS systems.
type DarwinDetector struct{}

// NewOSDetector returns a DarwinDetector for macOS systems.
func NewOSDetector() OSDetector {
	return &DarwinDetector{}
}

// DetectOS returns the Darwin kernel version and architecture.
func (d *DarwinDetector) DetectOS() (types.OSInfo, error) {
	info := types.OSInfo{Name: runtime.GOOS, Arch: runtime.GOARCH}
	if v, err := host.KernelVersion(); err == nil {
		info.Version = v
	}
	return info, nil
}

// DetectDistro returns empty DistroInfo: macOS has no distribution concept.
func (d *DarwinDetector) DetectDistro() (types.DistroInfo, error) {
	return types.DistroInfo{}, nil
}

// DetectEnvironment always reports bare-metal on macOS.
func (d *DarwinDetector) DetectEnvironment() (types.EnvInfo, error) {
	return types.EnvInfo{Type: types.EnvBareMetal}, nil
}
