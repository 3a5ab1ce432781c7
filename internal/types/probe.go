// Package types defines shared type definitions used across all triage packages.
package types

import (
	"strings"
	"time"
)

// Catalog is the full, ordered set of report sections.
type Catalog struct {
	// Sections are rendered in declaration order.
	Sections []Section `yaml:"sections" validate:"required,min=1,dive"`
}

// Section is one topical block of the report (e.g., "Hardware").
type Section struct {
	// Title is printed inside the section's delimiter box.
	Title string `yaml:"title" validate:"required,max=60"`

	// Subsections are rendered in declaration order.
	Subsections []Subsection `yaml:"subsections" validate:"required,min=1,dive"`
}

// Subsection groups related probes under a lighter-weight header.
type Subsection struct {
	// Title is printed in the subsection delimiter line.
	Title string `yaml:"title" validate:"required,max=60"`

	// Probes are executed and rendered in declaration order.
	Probes []Probe `yaml:"probes" validate:"required,min=1,dive"`
}

// Probe is one diagnostic unit: a command plus the metadata the executor
// needs to run it and the renderer needs to present it.
type Probe struct {
	// ID uniquely identifies a top-level probe within the catalog.
	// Fallback probes may leave it empty.
	ID string `yaml:"id,omitempty" validate:"omitempty,probe_id"`

	// Description is the human-readable line printed above the command.
	// Fallbacks inherit the description of the probe they replace.
	Description string `yaml:"description,omitempty" validate:"max=200"`

	// Command is the literal command line, shown verbatim in the report.
	Command string `yaml:"command" validate:"required,max=1024"`

	// Tool is the governing executable whose presence decides availability.
	// Defaults to the first word of Command.
	Tool string `yaml:"tool,omitempty"`

	// Shell runs Command through /bin/sh -c (required for pipes and redirects).
	Shell bool `yaml:"shell,omitempty"`

	// RequiresElevation marks probes that need root for complete output.
	RequiresElevation bool `yaml:"elevated,omitempty"`

	// Timeout overrides the executor's timeout for this probe.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Slow marks sampling probes that intentionally block for several seconds.
	Slow bool `yaml:"slow,omitempty"`

	// InstallHint is shown when the governing tool is not installed.
	InstallHint string `yaml:"install_hint,omitempty"`

	// SupportedOS limits the operating systems this probe applies to.
	SupportedOS []string `yaml:"supported_os,omitempty" validate:"omitempty,dive,oneof=linux darwin"`

	// SkipEnvironments lists environment types in which this probe is skipped.
	SkipEnvironments []string `yaml:"skip_environments,omitempty" validate:"omitempty,dive,oneof=container vm bare-metal"`

	// Fallback is tried when this probe fails or its tool is missing.
	Fallback *Probe `yaml:"fallback,omitempty"`
}

// GoverningTool returns the executable whose availability decides whether
// the probe can run at all.
func (p Probe) GoverningTool() string {
	if p.Tool != "" {
		return p.Tool
	}
	fields := strings.Fields(p.Command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Chain returns the probe followed by every fallback, in attempt order.
func (p Probe) Chain() []Probe {
	chain := []Probe{p}
	for fb := p.Fallback; fb != nil; fb = fb.Fallback {
		chain = append(chain, *fb)
	}
	return chain
}

// Tools returns the governing tool of every link of the chain, in order.
func (p Probe) Tools() []string {
	var tools []string
	for _, link := range p.Chain() {
		tools = append(tools, link.GoverningTool())
	}
	return tools
}

// ProbeCount returns the number of top-level probes in the section.
func (s Section) ProbeCount() int {
	n := 0
	for _, sub := range s.Subsections {
		n += len(sub.Probes)
	}
	return n
}

// ProbeCount returns the number of top-level probes in the catalog.
func (c Catalog) ProbeCount() int {
	n := 0
	for _, s := range c.Sections {
		n += s.ProbeCount()
	}
	return n
}
