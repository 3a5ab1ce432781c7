// Package catalog reads and validates the YAML probe catalog that drives the
// report: sections, subsections and probes with their fallback chains.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ancients-collective/triage/internal/engine"
	"github.com/ancients-collective/triage/internal/types"
)

// MaxFallbackDepth is the longest fallback chain a probe may declare,
// counting the primary.
const MaxFallbackDepth = 8

// maxCatalogBytes bounds a single catalog file (1 MB).
const maxCatalogBytes = 1 << 20

// idPattern matches valid probe IDs: alphanumeric, underscores, and hyphens.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Loader decodes catalog files and validates them against the schema.
type Loader struct {
	validate *validator.Validate
}

// New creates a Loader.
func New() *Loader {
	v := validator.New()
	_ = v.RegisterValidation("probe_id", func(fl validator.FieldLevel) bool {
		return idPattern.MatchString(fl.Field().String())
	})
	return &Loader{validate: v}
}

// Parse decodes and validates a catalog document. source names the document
// in error messages.
func (l *Loader) Parse(data []byte, source string) (types.Catalog, error) {
	var cat types.Catalog

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		if errors.Is(err, io.EOF) {
			return types.Catalog{}, fmt.Errorf("%s: catalog is empty", source)
		}
		return types.Catalog{}, fmt.Errorf("failed to parse YAML in %s: %w", source, err)
	}

	inheritDescriptions(&cat)

	if err := l.validateCatalog(cat); err != nil {
		return types.Catalog{}, fmt.Errorf("%s: %w", source, err)
	}
	return cat, nil
}

// LoadFile reads and validates one catalog file.
func (l *Loader) LoadFile(path string) (types.Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.Catalog{}, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return types.Catalog{}, fmt.Errorf("%q is not a regular file", path)
	}
	if info.Size() > maxCatalogBytes {
		return types.Catalog{}, fmt.Errorf("%q too large: %d bytes (max: %d)", path, info.Size(), maxCatalogBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.Catalog{}, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return l.Parse(data, path)
}

// LoadDirectory loads every .yaml/.yml file under dir in lexical path order
// and concatenates their sections. Files that fail to load are reported and
// skipped; loading continues. Symlinks are skipped.
func (l *Loader) LoadDirectory(dir string) (types.Catalog, []error) {
	paths, errs := catalogFiles(dir)

	var merged types.Catalog
	for _, path := range paths {
		cat, err := l.LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		candidate := types.Catalog{Sections: append(append([]types.Section{}, merged.Sections...), cat.Sections...)}
		if err := checkUniqueness(candidate); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		merged = candidate
	}
	return merged, errs
}

// Load loads a catalog from a file or a directory.
func (l *Loader) Load(path string) (types.Catalog, []error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.Catalog{}, []error{fmt.Errorf("cannot access %q: %w", path, err)}
	}
	if info.IsDir() {
		return l.LoadDirectory(path)
	}
	cat, err := l.LoadFile(path)
	if err != nil {
		return types.Catalog{}, []error{err}
	}
	return cat, nil
}

// ValidateOnly loads path (file or directory) without running anything and
// returns every problem found.
func (l *Loader) ValidateOnly(path string) []error {
	cat, errs := l.Load(path)
	if len(errs) == 0 && len(cat.Sections) == 0 {
		errs = append(errs, fmt.Errorf("no catalog files found in %s", path))
	}
	return errs
}

// catalogFiles lists the YAML files under dir, sorted.
func catalogFiles(dir string) ([]string, []error) {
	var paths []string
	var errs []error

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("error accessing %q: %w", path, err))
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			errs = append(errs, fmt.Errorf("skipping symlink: %s", path))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to walk directory %q: %w", dir, err))
	}

	sort.Strings(paths)
	return paths, errs
}

// inheritDescriptions copies each probe's description down its fallback chain.
func inheritDescriptions(cat *types.Catalog) {
	for si := range cat.Sections {
		for ui := range cat.Sections[si].Subsections {
			probes := cat.Sections[si].Subsections[ui].Probes
			for pi := range probes {
				desc := probes[pi].Description
				for fb := probes[pi].Fallback; fb != nil; fb = fb.Fallback {
					if fb.Description == "" {
						fb.Description = desc
					}
					desc = fb.Description
				}
			}
		}
	}
}

// validateCatalog runs schema validation (struct tags) and then the rules
// the tags cannot express.
func (l *Loader) validateCatalog(cat types.Catalog) error {
	if err := l.validate.Struct(cat); err != nil {
		return formatValidationErrors(err)
	}

	if err := checkUniqueness(cat); err != nil {
		return err
	}

	for _, s := range cat.Sections {
		for _, sub := range s.Subsections {
			for _, p := range sub.Probes {
				where := fmt.Sprintf("%s / %s / %s", s.Title, sub.Title, probeLabel(p))
				if p.ID == "" {
					return fmt.Errorf("%s: id is required", where)
				}
				if p.Description == "" {
					return fmt.Errorf("%s: description is required", where)
				}
				if err := validateChain(p); err != nil {
					return fmt.Errorf("%s: %w", where, err)
				}
			}
		}
	}
	return nil
}

// checkUniqueness rejects duplicate section titles, duplicate subsection
// titles within a section, and duplicate probe IDs anywhere.
func checkUniqueness(cat types.Catalog) error {
	sections := make(map[string]bool)
	ids := make(map[string]string)

	for _, s := range cat.Sections {
		key := strings.ToLower(s.Title)
		if sections[key] {
			return fmt.Errorf("duplicate section title %q", s.Title)
		}
		sections[key] = true

		subs := make(map[string]bool)
		for _, sub := range s.Subsections {
			skey := strings.ToLower(sub.Title)
			if subs[skey] {
				return fmt.Errorf("duplicate subsection title %q in section %q", sub.Title, s.Title)
			}
			subs[skey] = true

			for _, p := range sub.Probes {
				if p.ID == "" {
					continue
				}
				if prev, ok := ids[p.ID]; ok {
					return fmt.Errorf("duplicate probe ID %q: first defined in %s, duplicated in %s / %s",
						p.ID, prev, s.Title, sub.Title)
				}
				ids[p.ID] = s.Title + " / " + sub.Title
			}
		}
	}
	return nil
}

// validateChain checks every link of a probe's fallback chain.
func validateChain(p types.Probe) error {
	chain := p.Chain()
	if len(chain) > MaxFallbackDepth {
		return fmt.Errorf("fallback chain has %d links (max: %d)", len(chain), MaxFallbackDepth)
	}

	for i, link := range chain {
		label := "command"
		if i > 0 {
			label = fmt.Sprintf("fallback %d", i)
		}
		if link.Shell && link.Tool == "" {
			return fmt.Errorf("%s: tool is required when shell is true", label)
		}
		if strings.ContainsAny(link.Tool, "/ \t") {
			return fmt.Errorf("%s: tool %q must be a bare executable name", label, link.Tool)
		}
		if link.Timeout < 0 {
			return fmt.Errorf("%s: timeout must not be negative", label)
		}
		if _, err := engine.CommandArgv(link); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	}
	return nil
}

func probeLabel(p types.Probe) string {
	if p.ID != "" {
		return p.ID
	}
	return p.Command
}

// formatValidationErrors converts validator errors into user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	var messages []string
	for _, fe := range validationErrors {
		messages = append(messages, formatFieldError(fe))
	}

	return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
}

// formatFieldError converts a single field validation error to a human-readable message.
func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "probe_id":
		return fmt.Sprintf("%s must be alphanumeric with underscores and hyphens only", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
