package domain

import (
	"path/filepath"
	"strings"
)

type ContainmentDecision struct {
	ResolvedPath string
	ResolvedRoot string
	Admitted     bool
}

// Admit decides whether candidate lies inside allowedRoot.
//
// Relative paths are resolved against workDir and an empty root means workDir.
// Paths are cleaned but symlinks are not followed. The comparison is done per
// path segment, so /a/b never admits /a/bc. If no absolute root can be derived
// the decision is a denial.
func Admit(candidate, allowedRoot, workDir string) ContainmentDecision {
	root := strings.TrimSpace(allowedRoot)
	if root == "" {
		root = workDir
	}
	d := ContainmentDecision{
		ResolvedRoot: resolve(root, workDir),
		ResolvedPath: resolve(candidate, workDir),
	}
	if !filepath.IsAbs(d.ResolvedRoot) || !filepath.IsAbs(d.ResolvedPath) {
		return d
	}
	d.Admitted = within(d.ResolvedPath, d.ResolvedRoot)
	return d
}

func resolve(p, workDir string) string {
	if p == "" {
		p = workDir
	}
	if !filepath.IsAbs(p) {
		if !filepath.IsAbs(workDir) {
			return filepath.Clean(p)
		}
		p = filepath.Join(workDir, p)
	}
	return filepath.Clean(p)
}

func within(path, root string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
