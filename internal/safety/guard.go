package safety

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrProtectedPath = errors.New("protected path")
	ErrOutsideRoot   = errors.New("outside sweep root")
	ErrTraversal     = errors.New("path traversal detected")
	ErrSymlinkEscape = errors.New("symlink escape detected")
)

// Guard authorizes every delete a sweep makes
// A target must sit under the sweep root, outside the protected list, and must
// not resolve through a symlink to somewhere outside the root.
type Guard struct {
	Root           string
	ProtectedPaths []string

	resolvedRoot string
}

// NewGuard creates a guard for one sweep root plus optional extra protected paths
// The root is chosen by the caller, so a relative root such as "../repo" is
// resolved against the working directory rather than treated as traversal.
func NewGuard(root string, extraProtected []string) (*Guard, error) {
	r, err := NormalizePath(root)
	if err != nil {
		return nil, err
	}
	g := &Guard{
		Root:           r,
		ProtectedPaths: defaultProtected(extraProtected),
		resolvedRoot:   r,
	}
	if IsProtectedPath(r, g.ProtectedPaths) {
		return nil, ErrProtectedPath
	}
	// A root that is itself reached through a symlink (~/.m2 -> /data/m2)
	// is compared in resolved form so its children are not flagged as escapes.
	if resolved, err := filepath.EvalSymlinks(r); err == nil {
		g.resolvedRoot = filepath.Clean(resolved)
	}
	return g, nil
}

// Check returns a typed error when path must not be deleted
func (g *Guard) Check(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	if IsProtectedPath(p, g.ProtectedPaths) {
		return ErrProtectedPath
	}

	if !hasPathPrefix(p, g.Root) {
		return ErrOutsideRoot
	}

	if DetectTraversal(path) {
		return ErrTraversal
	}

	escaped, err := g.symlinkEscape(p)
	if err != nil {
		// Vanished between listing and delete; the remove itself will report it
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return ErrSymlinkEscape
	}
	return nil
}

func (g *Guard) symlinkEscape(cleanAbs string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	return !hasPathPrefix(filepath.Clean(resolved), g.resolvedRoot), nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal reports any ".." segment in raw input
func DetectTraversal(raw string) bool {
	for _, p := range strings.Split(filepath.ToSlash(raw), "/") {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsProtectedPath checks if path equals or lies beneath a protected path
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)
	if p == string(os.PathSeparator) {
		return true
	}
	for _, prot := range protected {
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	// "/" in the protected list guards the root itself, not everything
	if prefix == string(os.PathSeparator) {
		return path == prefix
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/sbin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/proc",
		"/sys",
		"/dev",
	}
	return append(base, extra...)
}
