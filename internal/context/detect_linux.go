//go:build linux

package context

import (
	"bytes"
	"os"
	"runtime"
	"strings"

	"github.com/ancients-collective/triage/internal/types"
	"github.com/shirou/gopsutil/v4/host"
)

// hostPaths lists the files the Linux detector reads. Tests point them at
// fixtures.
type hostPaths struct {
	dockerEnv    string
	containerEnv string
	cgroup       string
	sysVendor    string
	cpuinfo      string
}

var defaultHostPaths = hostPaths{
	dockerEnv:    "/.dockerenv",
	containerEnv: "/run/.containerenv",
	cgroup:       "/proc/self/cgroup",
	sysVendor:    "/sys/class/dmi/id/sys_vendor",
	cpuinfo:      "/proc/cpuinfo",
}

// containerRuntimes are gopsutil virtualization systems that mean "container".
var containerRuntimes = map[string]bool{
	"docker":         true,
	"lxc":            true,
	"podman":         true,
	"systemd-nspawn": true,
}

// hypervisorVendors maps DMI sys_vendor substrings to a hypervisor name.
var hypervisorVendors = []struct{ substr, name string }{
	{"qemu", "kvm"},
	{"innotek gmbh", "virtualbox"},
	{"vmware", "vmware"},
	{"microsoft corporation", "hyper-v"},
	{"xen", "xen"},
	{"amazon ec2", "aws-nitro"},
	{"google", "gce"},
}

// LinuxDetector implements OSDetector using gopsutil with file-based fallbacks.
type LinuxDetector struct {
	paths hostPaths
}

// NewOSDetector returns a LinuxDetector for Linux systems.
func NewOSDetector() OSDetector {
	return &LinuxDetector{paths: defaultHostPaths}
}

// DetectOS returns the kernel version and architecture.
func (d *LinuxDetector) DetectOS() (types.OSInfo, error) {
	info := types.OSInfo{Name: runtime.GOOS, Arch: runtime.GOARCH}
	if v, err := host.KernelVersion(); err == nil {
		info.Version = v
	}
	return info, nil
}

// DetectDistro returns the distribution reported by gopsutil.
func (d *LinuxDetector) DetectDistro() (types.DistroInfo, error) {
	platform, family, version, err := host.PlatformInformation()
	if err != nil {
		return types.DistroInfo{}, err
	}
	return types.DistroInfo{ID: platform, Version: version, Family: family}, nil
}

// DetectEnvironment classifies the host as container, vm or bare-metal, in
// that priority order.
func (d *LinuxDetector) DetectEnvironment() (types.EnvInfo, error) {
	system, role, err := host.Virtualization()
	if err != nil {
		system, role = "", ""
	}
	return d.classify(system, role), nil
}

// classify is the injectable core of DetectEnvironment: system and role are
// gopsutil's virtualization answer, the rest comes from d.paths.
func (d *LinuxDetector) classify(system, role string) types.EnvInfo {
	if role == "guest" && containerRuntimes[system] {
		return types.EnvInfo{Type: types.EnvContainer, Runtime: system}
	}
	if rt := d.containerMarker(); rt != "" {
		return types.EnvInfo{Type: types.EnvContainer, Runtime: rt}
	}
	if role == "guest" && system != "" {
		return types.EnvInfo{Type: types.EnvVM, Runtime: system}
	}
	if hv := d.hypervisor(); hv != "" {
		return types.EnvInfo{Type: types.EnvVM, Runtime: hv}
	}
	return types.EnvInfo{Type: types.EnvBareMetal}
}

func (d *LinuxDetector) containerMarker() string {
	if _, err := os.Lstat(d.paths.dockerEnv); err == nil {
		return "docker"
	}
	if _, err := os.Lstat(d.paths.containerEnv); err == nil {
		return "podman"
	}
	data, err := os.ReadFile(d.paths.cgroup)
	if err != nil {
		return ""
	}
	for _, rt := range []string{"docker", "kubepods", "lxc"} {
		if bytes.Contains(data, []byte(rt)) {
			if rt == "kubepods" {
				return "kubernetes"
			}
			return rt
		}
	}
	return ""
}

func (d *LinuxDetector) hypervisor() string {
	if data, err := os.ReadFile(d.paths.sysVendor); err == nil {
		vendor := strings.ToLower(strings.TrimSpace(string(data)))
		for _, hv := range hypervisorVendors {
			if strings.Contains(vendor, hv.substr) {
				return hv.name
			}
		}
	}
	if data, err := os.ReadFile(d.paths.cpuinfo); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "flags") && strings.Contains(line, " hypervisor") {
				return "unknown"
			}
		}
	}
	return ""
}
