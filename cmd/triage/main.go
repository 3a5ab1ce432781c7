// Package main is the entry point for triage, a one-shot host diagnostic report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/ancients-collective/triage/internal/catalog"
	sysdetect "github.com/ancients-collective/triage/internal/context"
	"github.com/ancients-collective/triage/internal/engine"
	"github.com/ancients-collective/triage/internal/report"
	"github.com/ancients-collective/triage/internal/types"
)

// version is set at build time via -ldflags. The default is a dev fallback
// for plain `go install` or `go run` usage.
var version = "0.4.0"

// Config holds all parsed CLI flag values.
type Config struct {
	Catalog      string
	Timeout      time.Duration
	SlowTimeout  time.Duration
	Budget       time.Duration
	Only         string
	NoEscalation bool
	NoColor      bool
	OutputFile   string
	List         bool
	Validate     string
	Debug        bool
	ShowVersion  bool
}

// parseFlags parses command-line arguments into a Config using a dedicated FlagSet,
// keeping the global flag.CommandLine clean for testability.
func parseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("triage", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.Catalog, "catalog", "", "Probe catalog file or directory (default: built-in catalog)")
	fs.StringVar(&cfg.Catalog, "c", "", "Probe catalog (shorthand)")
	fs.DurationVar(&cfg.Timeout, "timeout", engine.DefaultTimeout, "Per-probe timeout")
	fs.DurationVar(&cfg.Timeout, "t", engine.DefaultTimeout, "Per-probe timeout (shorthand)")
	fs.DurationVar(&cfg.SlowTimeout, "slow-timeout", engine.DefaultSlowTimeout, "Timeout for sampling probes marked slow")
	fs.DurationVar(&cfg.Budget, "budget", 0, "Overall time budget for the report; 0 means unlimited")
	fs.DurationVar(&cfg.Budget, "b", 0, "Overall time budget (shorthand)")
	fs.StringVar(&cfg.Only, "only", "", "Run only these sections (comma-separated titles)")
	fs.BoolVar(&cfg.NoEscalation, "no-escalation", false, "Never use sudo, even for probes that need root")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
	fs.StringVar(&cfg.OutputFile, "output", "", "Write the report to file (default: stdout)")
	fs.StringVar(&cfg.OutputFile, "o", "", "Write the report to file (shorthand)")
	fs.BoolVar(&cfg.List, "list", false, "List catalog sections and probes and exit")
	fs.StringVar(&cfg.Validate, "validate", "", "Validate catalog file(s) without running anything (file or directory)")
	fs.BoolVar(&cfg.Debug, "debug", false, "Log every command, its stderr and timing to stderr")
	fs.BoolVar(&cfg.Debug, "v", false, "Debug logging (shorthand)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "  triage %s: one-shot host diagnostic report\n", version)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "  Usage: triage [options]\n\n")
		fmt.Fprintf(os.Stderr, "  Options:\n")
		fmt.Fprintf(os.Stderr, "    -c,  --catalog <path>       Probe catalog file or directory (default: built-in)\n")
		fmt.Fprintf(os.Stderr, "    -t,  --timeout <dur>        Per-probe timeout (default: %s)\n", engine.DefaultTimeout)
		fmt.Fprintf(os.Stderr, "         --slow-timeout <dur>   Timeout for sampling probes (default: %s)\n", engine.DefaultSlowTimeout)
		fmt.Fprintf(os.Stderr, "    -b,  --budget <dur>         Overall time budget, 0 = unlimited (default: 0)\n")
		fmt.Fprintf(os.Stderr, "         --only <list>          Run only these sections (comma-separated)\n")
		fmt.Fprintf(os.Stderr, "         --no-escalation        Never use sudo\n")
		fmt.Fprintf(os.Stderr, "         --no-color             Disable colored output\n")
		fmt.Fprintf(os.Stderr, "    -o,  --output <file>        Write the report to file (default: stdout)\n")
		fmt.Fprintf(os.Stderr, "         --list                 List catalog sections and probes\n")
		fmt.Fprintf(os.Stderr, "         --validate <path>      Validate catalog file(s) without running\n")
		fmt.Fprintf(os.Stderr, "    -v,  --debug                Debug logging to stderr\n")
		fmt.Fprintf(os.Stderr, "         --version              Print version\n")
		fmt.Fprintf(os.Stderr, "\n  Examples:\n")
		fmt.Fprintf(os.Stderr, "    sudo triage -o /tmp/triage.txt        Full report as root, written to a file\n")
		fmt.Fprintf(os.Stderr, "    triage --only network,disk            Two sections only\n")
		fmt.Fprintf(os.Stderr, "    triage -b 2m                          Stop starting probes after two minutes\n")
		fmt.Fprintf(os.Stderr, "    triage --no-escalation | less -R      Unprivileged report in a pager\n")
		fmt.Fprintf(os.Stderr, "    triage --validate ./probes            Check a custom catalog without running it\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
	os.Exit(run(cfg))
}

// run generates the report with the given configuration and returns an exit
// code: 0 whenever the report was written, whatever the probes did.
func run(cfg *Config) int {
	if cfg.ShowVersion {
		fmt.Fprintf(os.Stdout, "triage %s\n", version)
		return 0
	}

	// Handle --validate early
	if cfg.Validate != "" {
		return handleValidate(cfg.Validate)
	}

	if code := validateFlags(cfg); code >= 0 {
		return code
	}

	cat, code := loadCatalog(cfg.Catalog)
	if code >= 0 {
		return code
	}

	if cfg.List {
		printCatalog(os.Stdout, cat)
		return 0
	}

	only, err := resolveOnly(cfg.Only, cat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
		return 1
	}

	isDumb := setupColor(cfg)
	logger := newLogger(os.Stderr, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Budget)
		defer cancel()
	}

	sys, warnings := sysdetect.DetectSystemContext(sysdetect.NewOSDetector())
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  ⚠ %s\n", w)
	}
	priv := sysdetect.DetectPrivilege(ctx, sysdetect.OSIdentity{}, !cfg.NoEscalation, logger)
	logger.Debug("privilege context", "elevated", priv.IsElevated, "escalation", priv.EscalationAvailable)

	avail := engine.NewPathAvailability()
	executor := engine.NewExecutor(&engine.OSRunner{}, avail, logger)
	executor.Timeout = cfg.Timeout
	executor.SlowTimeout = cfg.SlowTimeout

	w, closeOutput, err := openOutput(cfg.OutputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
		return 1
	}

	showProgress := cfg.OutputFile != "" && term.IsTerminal(int(os.Stderr.Fd()))
	opts := report.Options{
		Version: version,
		Only:    only,
		Dumb:    isDumb,
		Logger:  logger,
	}
	if showProgress {
		opts.Progress = func(done, total int) {
			fmt.Fprintf(os.Stderr, "\r  Probing... %d/%d", done, total)
		}
	}

	gen := report.NewGenerator(cat, executor, avail, sys, priv, opts)
	tally, err := gen.Generate(ctx, w)
	if showProgress {
		fmt.Fprintf(os.Stderr, "\r  Probing... done          \n")
	}
	if cerr := closeOutput(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %w", types.ErrOutputWrite, cerr)
	}
	if err != nil {
		if errors.Is(err, types.ErrOutputWrite) {
			fmt.Fprintf(os.Stderr, "  ✗ Failed to write report: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
		}
		return 1
	}

	if cfg.OutputFile != "" {
		fmt.Fprintf(os.Stderr, "  ✓ Report complete: %d succeeded · %d failed · %d not installed · %d skipped, written to %s\n",
			tally.Succeeded, tally.Failed, tally.Unavailable, tally.Skipped, cfg.OutputFile)
	}
	return 0
}

// validateFlags checks duration values.
// Returns -1 if valid, or an exit code (1) if invalid.
func validateFlags(cfg *Config) int {
	if cfg.Timeout <= 0 {
		fmt.Fprintf(os.Stderr, "  ✗ Invalid --timeout value %s (must be positive)\n", cfg.Timeout)
		return 1
	}
	if cfg.SlowTimeout <= 0 {
		fmt.Fprintf(os.Stderr, "  ✗ Invalid --slow-timeout value %s (must be positive)\n", cfg.SlowTimeout)
		return 1
	}
	if cfg.Budget < 0 {
		fmt.Fprintf(os.Stderr, "  ✗ Invalid --budget value %s (must be zero or positive)\n", cfg.Budget)
		return 1
	}
	if cfg.OutputFile != "" {
		if err := validateOutputPath(cfg.OutputFile); err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Unsafe output path: %v\n", err)
			return 1
		}
	}
	return -1
}

// setupColor decides whether the report is colored and whether icons must
// fall back to ASCII.
func setupColor(cfg *Config) (isDumb bool) {
	isDumb = report.IsDumbTerm()
	if cfg.NoColor || cfg.OutputFile != "" || isDumb || !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
	return isDumb
}

// newLogger returns the debug logger: a text handler on w at debug level,
// or a logger that discards everything.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	if !debug {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// loadCatalog loads the catalog at path, or the built-in catalog when path
// is empty. A custom catalog must pass the trust check first.
// Returns -1 as code if successful, or an exit code on failure.
func loadCatalog(path string) (types.Catalog, int) {
	if path == "" {
		cat, err := catalog.Default()
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Built-in catalog is invalid: %v\n", err)
			return types.Catalog{}, 1
		}
		return cat, -1
	}

	if warnings := catalog.VerifyTrust(path); len(warnings) > 0 {
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "    ✗ %s\n", w)
		}
		fmt.Fprintf(os.Stderr, "\n  Aborting: catalog %s can be modified by other users.\n", path)
		fmt.Fprintf(os.Stderr, "  Its commands may run through sudo; fix the permissions above and retry.\n\n")
		return types.Catalog{}, 1
	}

	cat, errs := catalog.New().Load(path)
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "    ⚠ Load error: %v\n", e)
	}
	if cat.ProbeCount() == 0 {
		fmt.Fprintf(os.Stderr, "  ✗ No probes found in %s\n", path)
		return types.Catalog{}, 1
	}
	return cat, -1
}

// resolveOnly parses the --only list and checks every name against the
// catalog's section titles.
func resolveOnly(raw string, cat types.Catalog) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	known := make(map[string]bool, len(cat.Sections))
	for _, s := range cat.Sections {
		known[strings.ToLower(s.Title)] = true
	}

	var names []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !known[strings.ToLower(name)] {
			msg := fmt.Sprintf("Unknown section %q", name)
			if suggestions := suggestSections(name, cat.Sections); len(suggestions) > 0 {
				msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(suggestions, ", "))
			}
			return nil, errors.New(msg + "; use --list to see all sections")
		}
		names = append(names, name)
	}
	return names, nil
}

// openOutput returns the report destination and a function that closes it.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	if err := validateOutputPath(path); err != nil {
		return nil, nil, fmt.Errorf("unsafe output path: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// handleValidate validates catalog files without running any probe.
// Returns an exit code (0 = success, 1 = validation errors).
func handleValidate(path string) int {
	var errs []error
	for _, w := range catalog.VerifyTrust(path) {
		errs = append(errs, errors.New(w))
	}
	errs = append(errs, catalog.New().ValidateOnly(path)...)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  ✗ %v\n", e)
		}
		fmt.Fprintf(os.Stderr, "\n  Validation failed: %d error(s)\n", len(errs))
		return 1
	}
	fmt.Fprintf(os.Stdout, "  ✓ %s is valid\n", path)
	return 0
}

// printCatalog prints every section, subsection and probe in report order.
func printCatalog(w io.Writer, cat types.Catalog) {
	maxID := 0
	for _, s := range cat.Sections {
		for _, sub := range s.Subsections {
			for _, p := range sub.Probes {
				maxID = max(maxID, len(p.ID))
			}
		}
	}

	fmt.Fprintf(w, "\n  Catalog: %d section(s), %d probe(s)\n", len(cat.Sections), cat.ProbeCount())
	for _, s := range cat.Sections {
		fmt.Fprintf(w, "\n  %s\n", s.Title)
		for _, sub := range s.Subsections {
			fmt.Fprintf(w, "    %s\n", sub.Title)
			for _, p := range sub.Probes {
				fmt.Fprintf(w, "      %-*s  %s%s\n", maxID, p.ID, p.Command, probeMarkers(p))
			}
		}
	}
	fmt.Fprintln(w)
}

// probeMarkers summarizes the execution traits of a probe for --list.
func probeMarkers(p types.Probe) string {
	var marks []string
	if p.RequiresElevation {
		marks = append(marks, "root")
	}
	if p.Slow {
		marks = append(marks, "slow")
	}
	if n := len(p.Chain()) - 1; n > 0 {
		marks = append(marks, fmt.Sprintf("%d fallback(s)", n))
	}
	if len(marks) == 0 {
		return ""
	}
	return "  [" + strings.Join(marks, ", ") + "]"
}

// unsafeOutputPrefixes are path prefixes where writing output files is rejected.
// Prevents accidental overwrite of system files when running as root.
var unsafeOutputPrefixes = []string{"/etc/", "/proc/", "/sys/", "/dev/", "/boot/", "/sbin/", "/bin/", "/usr/"}

// validateOutputPath checks that the output file path is safe to write to.
func validateOutputPath(path string) error {
	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) {
		for _, prefix := range unsafeOutputPrefixes {
			if strings.HasPrefix(cleaned, prefix) {
				return fmt.Errorf("refusing to write to system path %q", cleaned)
			}
		}
	}
	return nil
}
