package types

// Valid environment types.
const (
	EnvContainer = "container"
	EnvVM        = "vm"
	EnvBareMetal = "bare-metal"
)

// ValidEnvironments is the set of tokens accepted in a probe's skip_environments list.
var ValidEnvironments = map[string]bool{
	EnvContainer: true,
	EnvVM:        true,
	EnvBareMetal: true,
}

// SystemContext holds information about the host the report is generated on.
// It is populated by the context detection package and used for the banner
// and for skipping probes that do not apply to this host.
type SystemContext struct {
	// OS contains operating system information.
	OS OSInfo

	// Distro contains Linux distribution information.
	Distro DistroInfo

	// Environment contains execution environment information.
	Environment EnvInfo
}

// OSInfo holds operating system details.
type OSInfo struct {
	// Name is the OS identifier (e.g., "linux", "darwin").
	Name string

	// Version is the kernel version string.
	Version string

	// Arch is the CPU architecture (e.g., "amd64", "arm64").
	Arch string
}

// DistroInfo holds Linux distribution details.
// Empty on non-Linux systems.
type DistroInfo struct {
	// ID is the distribution identifier (e.g., "ubuntu", "rhel", "alpine").
	ID string

	// Version is the distribution version (e.g., "22.04", "9", "3.18").
	Version string

	// Family is the distribution family (e.g., "debian", "rhel", "alpine").
	Family string
}

// EnvInfo holds execution environment details.
type EnvInfo struct {
	// Type is the environment category: "container", "vm", or "bare-metal".
	Type string

	// Runtime is the specific runtime (e.g., "docker", "podman", "kvm", "vmware").
	Runtime string
}

// PrivilegeContext records whether the process already runs elevated and
// whether a non-interactive escalation helper can be used. It is built once
// at startup and passed by value; nothing mutates it afterwards.
type PrivilegeContext struct {
	// IsElevated is true when the effective user is root.
	IsElevated bool

	// EscalationAvailable is true when the escalation helper accepted a
	// non-interactive invocation during detection.
	EscalationAvailable bool

	// EscalationCommand is the argv prefix used to escalate (e.g., ["sudo", "-n"]).
	// Empty when EscalationAvailable is false.
	EscalationCommand []string
}

// Describe returns a one-line description of the privilege situation for the banner.
func (p PrivilegeContext) Describe() string {
	switch {
	case p.IsElevated:
		return "root"
	case p.EscalationAvailable:
		return "non-root, escalation available (" + p.helperName() + ")"
	default:
		return "non-root, no escalation available"
	}
}

// CanEscalate reports whether elevated probes run through the escalation helper.
func (p PrivilegeContext) CanEscalate() bool {
	return !p.IsElevated && p.EscalationAvailable && len(p.EscalationCommand) > 0
}

func (p PrivilegeContext) helperName() string {
	if len(p.EscalationCommand) == 0 {
		return "sudo"
	}
	return p.EscalationCommand[0]
}
