package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// VerifyTrust checks that a catalog file or directory cannot have been
// modified by other users. Catalog commands may run through sudo, so a
// catalog anyone can edit is a privilege escalation. Returns a list of
// warnings (empty = catalog is trusted).
func VerifyTrust(path string) []string {
	info, err := os.Lstat(path)
	if err != nil {
		return []string{fmt.Sprintf("cannot stat catalog %q: %v", path, err)}
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return []string{fmt.Sprintf("catalog %q is a symlink", path)}
	}

	if !info.IsDir() {
		return checkWritable("catalog file", path, info.Mode().Perm())
	}

	warnings := checkWritable("catalog directory", path, info.Mode().Perm())

	absDir, err := filepath.Abs(path)
	if err != nil {
		return append(warnings, fmt.Sprintf("cannot resolve absolute path for %q: %v", path, err))
	}
	if resolved, err := filepath.EvalSymlinks(absDir); err == nil {
		absDir = resolved
	}

	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("error accessing %q during walk: %v", p, err))
			return nil
		}
		if p == path {
			return nil
		}
		warnings = append(warnings, verifyEntry(p, d, absDir)...)
		return nil
	})
	if walkErr != nil {
		warnings = append(warnings, fmt.Sprintf("walk error in catalog directory: %v", walkErr))
	}
	return warnings
}

// checkWritable warns when perm lets the group or everyone write.
func checkWritable(kind, path string, perm fs.FileMode) []string {
	var warnings []string
	if perm&0o002 != 0 {
		warnings = append(warnings, fmt.Sprintf("%s %q is world-writable (%04o)", kind, path, perm))
	}
	if perm&0o020 != 0 {
		warnings = append(warnings, fmt.Sprintf("%s %q is group-writable (%04o)", kind, path, perm))
	}
	return warnings
}

// verifyEntry checks one entry below a catalog directory: symlinks must stay
// inside the directory, and subdirectories and catalog files must not be
// writable by others.
func verifyEntry(path string, d fs.DirEntry, absDir string) []string {
	var warnings []string

	if d.Type()&fs.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			return []string{fmt.Sprintf("symlink %q cannot be resolved: %v", path, err)}
		}
		absTarget, _ := filepath.Abs(target)
		if !strings.HasPrefix(absTarget, absDir+string(filepath.Separator)) && absTarget != absDir {
			warnings = append(warnings, fmt.Sprintf("symlink %q points outside the catalog directory (%s)", path, absTarget))
		}
		return warnings
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !d.IsDir() && ext != ".yaml" && ext != ".yml" {
		return nil
	}

	fi, err := d.Info()
	if err != nil {
		return nil
	}
	kind := "catalog file"
	if d.IsDir() {
		kind = "catalog directory"
	}
	return checkWritable(kind, path, fi.Mode().Perm())
}
