package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codefionn/werkraum/internal/fs"
)

// PathValidator canonicalizes paths and decides whether they fall inside
// the configured boundary set (workspace root plus additional allowed
// directories). Both lexical traversal and symlink pivots are checked:
// lexical collapsing alone misses symlink escapes, and symlink resolution
// alone misses traversal through not-yet-existing path suffixes.
type PathValidator struct {
	root       string   // canonical workspace root
	boundaries []string // canonical root + allowed paths
	resolver   fs.Resolver
}

// NewPathValidator canonicalizes root and allowedPaths into the boundary
// set. Boundary paths that do not exist yet are kept in lexical form.
func NewPathValidator(root string, allowedPaths []string, resolver fs.Resolver) (*PathValidator, error) {
	v := &PathValidator{resolver: resolver}

	canonRoot, err := v.canonicalize(root, "")
	if err != nil {
		return nil, fmt.Errorf("invalid workspace root %q: %w", root, err)
	}
	v.root = canonRoot
	v.boundaries = []string{canonRoot}

	for _, p := range allowedPaths {
		canon, err := v.canonicalize(p, canonRoot)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed path %q: %w", p, err)
		}
		if !v.contains(canon) {
			v.boundaries = append(v.boundaries, canon)
		}
	}

	return v, nil
}

// Root returns the canonical workspace root.
func (v *PathValidator) Root() string {
	return v.root
}

// Boundaries returns the canonical boundary set, root first.
func (v *PathValidator) Boundaries() []string {
	out := make([]string, len(v.boundaries))
	copy(out, v.boundaries)
	return out
}

// Validate canonicalizes path and returns it if it lies inside the
// boundary set. The returned error wraps ErrBoundaryViolation and repeats
// only what the caller supplied, never the resolved internal form.
func (v *PathValidator) Validate(path string) (string, error) {
	canon, err := v.canonicalize(path, v.root)
	if err != nil {
		return "", err
	}

	if !v.contains(canon) {
		return "", fmt.Errorf("%w: %s", ErrBoundaryViolation, path)
	}

	return canon, nil
}

// IsWithin reports whether path canonicalizes into the boundary set.
// It never returns an error; any failure is false.
func (v *PathValidator) IsWithin(path string) bool {
	canon, err := v.canonicalize(path, v.root)
	if err != nil {
		return false
	}
	return v.contains(canon)
}

// Rel returns path relative to the first boundary that contains it.
func (v *PathValidator) Rel(path string) (string, error) {
	canon, err := v.canonicalize(path, v.root)
	if err != nil {
		return "", err
	}

	for _, boundary := range v.boundaries {
		if canon == boundary {
			return ".", nil
		}
		prefix := boundary + string(filepath.Separator)
		if strings.HasPrefix(canon, prefix) {
			return strings.TrimPrefix(canon, prefix), nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrBoundaryViolation, path)
}

// canonicalize produces the absolute, symlink-free, dot-free form of path.
// Relative paths are resolved against base (or the process working
// directory when base is empty).
func (v *PathValidator) canonicalize(path, base string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrBoundaryViolation)
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: %s", ErrBoundaryViolation, path)
	}

	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}

	abs := expanded
	if !filepath.IsAbs(abs) {
		if base != "" {
			abs = filepath.Join(base, abs)
		} else {
			abs, err = filepath.Abs(abs)
			if err != nil {
				return "", err
			}
		}
	}

	// Reject constructions that climb above the filesystem root before
	// any boundary comparison happens; Clean would silently swallow them.
	if climbsAboveRoot(abs) {
		return "", fmt.Errorf("%w: %s", ErrBoundaryViolation, path)
	}

	return v.resolveSymlinks(filepath.Clean(abs))
}

// resolveSymlinks resolves the existing prefix of abs through the
// resolver and reattaches the non-existent suffix lexically, so that
// write destinations that do not exist yet are still pinned to the real
// location of their nearest existing ancestor.
func (v *PathValidator) resolveSymlinks(abs string) (string, error) {
	resolved, err := v.resolver.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	var suffix []string
	dir := abs
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			// Ran out of ancestors; keep the lexical form
			return abs, nil
		}
		suffix = append([]string{filepath.Base(dir)}, suffix...)
		dir = parent

		resolved, err := v.resolver.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(append([]string{resolved}, suffix...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}

func (v *PathValidator) contains(canon string) bool {
	for _, boundary := range v.boundaries {
		if canon == boundary {
			return true
		}
		if strings.HasPrefix(canon, boundary+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// climbsAboveRoot reports whether the absolute path walks above "/" at
// any point, e.g. "/ws/../../etc".
func climbsAboveRoot(abs string) bool {
	depth := 0
	for _, part := range strings.Split(abs, string(filepath.Separator)) {
		switch part {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}

// expandHome expands a leading "~" to the current user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand %q: %w", path, err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
