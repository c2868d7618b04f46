// Package paths normalizes the source file paths reported by scanners, so
// that one file always groups into one unit and is indexed under one key.
package paths

import (
	"path"
	"path/filepath"
	"strings"
)

// NormalizeSourcePath converts separators to '/', drops "./" segments and
// collapses repeated slashes. Absolute paths stay absolute.
//
// Examples:
// - "./src//a.c"  -> "src/a.c"
// - `src\net\a.c` -> "src/net/a.c"
// - ""            -> ""
func NormalizeSourcePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
	return path.Clean(p)
}

// RelativeTo returns p relative to root when p lies under root, and p
// unchanged otherwise. Both are normalized first.
func RelativeTo(p, root string) string {
	p = NormalizeSourcePath(p)
	root = strings.TrimSuffix(NormalizeSourcePath(root), "/")
	if root == "" || root == "." {
		return p
	}
	if p == root {
		return "."
	}
	if strings.HasPrefix(p, root+"/") {
		return p[len(root)+1:]
	}
	return p
}
