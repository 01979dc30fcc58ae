// Package sandbox maps client-supplied paths onto a session's sandbox root
// and decides whether the result stays inside it.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Resolve joins requested onto root (absolute requests) or onto
// root/workingDir (relative requests), normalizes the result lexically and
// reports whether it lies inside root. The filesystem is never consulted.
//
// An absolute request has its leading separators stripped and is resolved
// directly under root, ignoring workingDir.
func Resolve(root, workingDir, requested string) (string, bool) {
	root = filepath.Clean(root)
	requested = filepath.FromSlash(requested)

	var resolved string
	if filepath.IsAbs(requested) || strings.HasPrefix(requested, string(filepath.Separator)) {
		rel := strings.TrimLeft(requested[len(filepath.VolumeName(requested)):], string(filepath.Separator))
		resolved = filepath.Join(root, rel)
	} else {
		resolved = filepath.Join(root, filepath.FromSlash(workingDir), requested)
	}
	return resolved, Within(root, resolved)
}

// Within reports whether every path component of root equals the
// corresponding component of p. Both paths are compared after lexical
// cleaning.
func Within(root, p string) bool {
	rootParts := components(root)
	pParts := components(p)
	if len(pParts) < len(rootParts) {
		return false
	}
	for i, part := range rootParts {
		if pParts[i] != part {
			return false
		}
	}
	return true
}

func components(p string) []string {
	p = filepath.Clean(p)
	vol := filepath.VolumeName(p)
	rest := strings.Trim(p[len(vol):], string(filepath.Separator))
	parts := []string{vol}
	if filepath.IsAbs(p) {
		parts[0] += string(filepath.Separator)
	}
	if rest == "" {
		return parts
	}
	return append(parts, strings.Split(rest, string(filepath.Separator))...)
}

// Rel returns p relative to root as a slash-separated path, "" when p is
// root itself. p must be inside root.
func Rel(root, p string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("relativizing %s: %w", p, err)
	}
	if rel == "." {
		return "", nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", p, root)
	}
	return filepath.ToSlash(rel), nil
}

// Display renders a path inside root the way clients see it: rooted at "/".
func Display(root, p string) string {
	rel, err := Rel(root, p)
	if err != nil {
		return "/"
	}
	return "/" + rel
}

// Canonical resolves symbolic links in the deepest existing ancestor of p and
// reports whether the canonical location is inside the canonical root.
// Components that do not exist yet are appended lexically.
func Canonical(root, p string) (bool, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false, fmt.Errorf("resolving sandbox root: %w", err)
	}

	current := filepath.Clean(p)
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			full := filepath.Join(append([]string{resolved}, missing...)...)
			return Within(realRoot, full), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("resolving %s: %w", current, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return false, err
		}
		missing = append([]string{filepath.Base(current)}, missing...)
		current = parent
	}
}
