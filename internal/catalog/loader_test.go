package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validCatalogYAML = `sections:
  - title: Network
    subsections:
      - title: Interfaces
        probes:
          - id: net_addresses
            description: Interface addresses
            command: ip -brief address
            install_hint: iproute2
            fallback:
              command: ifconfig -a
          - id: net_routes
            description: Routing table
            command: ip route
            timeout: 5s
            fallback:
              command: route -n
              fallback:
                command: netstat -rn
                description: Routing table (netstat)
`

func TestParse_ValidCatalog(t *testing.T) {
	cat, err := New().Parse([]byte(validCatalogYAML), "test.yaml")
	require.NoError(t, err)

	require.Len(t, cat.Sections, 1)
	assert.Equal(t, "Network", cat.Sections[0].Title)
	require.Len(t, cat.Sections[0].Subsections, 1)

	probes := cat.Sections[0].Subsections[0].Probes
	require.Len(t, probes, 2)
	assert.Equal(t, "net_addresses", probes[0].ID)
	assert.Equal(t, "iproute2", probes[0].InstallHint)
	require.NotNil(t, probes[0].Fallback)
	assert.Equal(t, "ifconfig -a", probes[0].Fallback.Command)

	assert.Equal(t, 5*time.Second, probes[1].Timeout)
	assert.Len(t, probes[1].Chain(), 3)
	assert.Equal(t, 2, cat.ProbeCount())
}

func TestParse_FallbackInheritsDescription(t *testing.T) {
	cat, err := New().Parse([]byte(validCatalogYAML), "test.yaml")
	require.NoError(t, err)

	routes := cat.Sections[0].Subsections[0].Probes[1]
	chain := routes.Chain()
	assert.Equal(t, "Routing table", chain[1].Description)
	assert.Equal(t, "Routing table (netstat)", chain[2].Description)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty document",
			yaml:    "",
			wantErr: "catalog is empty",
		},
		{
			name:    "malformed YAML",
			yaml:    "sections: [{{{",
			wantErr: "failed to parse YAML",
		},
		{
			name: "unknown field",
			yaml: `sections:
  - title: A
    colour: red
    subsections:
      - title: B
        probes:
          - id: p
            description: d
            command: uptime
`,
			wantErr: "failed to parse YAML",
		},
		{
			name:    "no sections",
			yaml:    "sections: []\n",
			wantErr: "Catalog.Sections",
		},
		{
			name: "missing command",
			yaml: `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - id: p
            description: d
`,
			wantErr: "Command is required",
		},
		{
			name: "missing id",
			yaml: `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - description: d
            command: uptime
`,
			wantErr: "id is required",
		},
		{
			name: "missing description",
			yaml: `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - id: p
            command: uptime
`,
			wantErr: "description is required",
		},
		{
			name: "invalid id",
			yaml: `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - id: "bad id!"
            description: d
            command: uptime
`,
			wantErr: "alphanumeric",
		},
		{
			name: "invalid skip environment",
			yaml: `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - id: p
            description: d
            command: uptime
            skip_environments: [cloud]
`,
			wantErr: "must be one of",
		},
		{
			name: "shell without tool",
			yaml: `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - id: p
            description: d
            command: ps aux | head
            shell: true
`,
			wantErr: "tool is required when shell is true",
		},
		{
			name: "tool with path",
			yaml: `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - id: p
            description: d
            command: ps aux | head
            shell: true
            tool: /bin/ps
`,
			wantErr: "bare executable name",
		},
		{
			name: "unbalanced quotes",
			yaml: `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - id: p
            description: d
            command: echo "unterminated
`,
			wantErr: "cannot split command",
		},
		{
			name: "negative timeout",
			yaml: `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - id: p
            description: d
            command: uptime
            timeout: -1s
`,
			wantErr: "timeout must not be negative",
		},
		{
			name: "duplicate section",
			yaml: `sections:
  - title: Disk
    subsections:
      - title: B
        probes:
          - id: p1
            description: d
            command: df
  - title: disk
    subsections:
      - title: B
        probes:
          - id: p2
            description: d
            command: df
`,
			wantErr: "duplicate section title",
		},
		{
			name: "duplicate subsection",
			yaml: `sections:
  - title: Disk
    subsections:
      - title: Usage
        probes:
          - id: p1
            description: d
            command: df
      - title: Usage
        probes:
          - id: p2
            description: d
            command: df
`,
			wantErr: "duplicate subsection title",
		},
		{
			name: "duplicate probe id",
			yaml: `sections:
  - title: Disk
    subsections:
      - title: Usage
        probes:
          - id: p1
            description: d
            command: df
          - id: p1
            description: d
            command: du
`,
			wantErr: "duplicate probe ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Parse([]byte(tt.yaml), "test.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_FallbackDepthLimit(t *testing.T) {
	doc := `sections:
  - title: A
    subsections:
      - title: B
        probes:
          - id: deep
            description: d
            command: c0
`
	indent := "            "
	for i := 1; i < MaxFallbackDepth+1; i++ {
		doc += indent + "fallback:\n"
		indent += "  "
		doc += indent + "command: c" + string(rune('0'+i)) + "\n"
	}

	_, err := New().Parse([]byte(doc), "deep.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback chain has 9 links")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "net.yaml", validCatalogYAML)

	cat, err := New().LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, cat.Sections, 1)
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := New().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat")
}

func TestLoadFile_Directory(t *testing.T) {
	_, err := New().LoadFile(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")
}

func TestLoadFile_TooLarge(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, maxCatalogBytes+1)
	path := filepath.Join(dir, "big.yaml")
	require.NoError(t, os.WriteFile(path, big, 0o644))

	_, err := New().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadDirectory_LexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "20-disk.yaml", `sections:
  - title: Disk
    subsections:
      - title: Usage
        probes:
          - id: disk_usage
            description: Usage
            command: df -h
`)
	writeYAML(t, dir, "10-hardware.yml", `sections:
  - title: Hardware
    subsections:
      - title: CPU
        probes:
          - id: hw_cpu
            description: CPU
            command: lscpu
`)
	writeYAML(t, dir, "README.md", "not a catalog")

	cat, errs := New().LoadDirectory(dir)
	assert.Empty(t, errs)
	require.Len(t, cat.Sections, 2)
	assert.Equal(t, "Hardware", cat.Sections[0].Title)
	assert.Equal(t, "Disk", cat.Sections[1].Title)
}

func TestLoadDirectory_SkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "a.yaml", validCatalogYAML)
	writeYAML(t, dir, "b.yaml", "sections: [{{{")

	cat, errs := New().LoadDirectory(dir)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "b.yaml")
	assert.Len(t, cat.Sections, 1)
}

func TestLoadDirectory_DuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "a.yaml", validCatalogYAML)
	writeYAML(t, dir, "b.yaml", validCatalogYAML)

	cat, errs := New().LoadDirectory(dir)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "duplicate section title")
	assert.Len(t, cat.Sections, 1)
}

func TestLoadDirectory_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := writeYAML(t, t.TempDir(), "real.yaml", validCatalogYAML)
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "link.yaml")))

	cat, errs := New().LoadDirectory(dir)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "skipping symlink")
	assert.Empty(t, cat.Sections)
}

func TestLoad_FileOrDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "net.yaml", validCatalogYAML)

	cat, errs := New().Load(path)
	assert.Empty(t, errs)
	assert.Len(t, cat.Sections, 1)

	cat, errs = New().Load(dir)
	assert.Empty(t, errs)
	assert.Len(t, cat.Sections, 1)

	_, errs = New().Load(filepath.Join(dir, "nope"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "cannot access")
}

func TestValidateOnly(t *testing.T) {
	dir := t.TempDir()
	assert.NotEmpty(t, New().ValidateOnly(dir), "empty directory should be reported")

	writeYAML(t, dir, "net.yaml", validCatalogYAML)
	assert.Empty(t, New().ValidateOnly(dir))
}

func TestDefault_Loads(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	var titles []string
	for _, s := range cat.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Hardware", "Disk", "Network", "Performance", "Processes"}, titles)
	assert.Greater(t, cat.ProbeCount(), 30)
}

func TestDefault_ChainsWithinLimits(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	for _, s := range cat.Sections {
		for _, sub := range s.Subsections {
			for _, p := range sub.Probes {
				assert.LessOrEqual(t, len(p.Chain()), MaxFallbackDepth, p.ID)
				for _, link := range p.Chain() {
					assert.NotEmpty(t, link.Description, "%s: every link needs a description", p.ID)
					assert.NotEmpty(t, link.GoverningTool(), p.ID)
				}
			}
		}
	}
}
