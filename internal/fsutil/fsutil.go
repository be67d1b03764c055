package fsutil

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrPathEscape means a relative path resolved outside the root.
	ErrPathEscape = errors.New("path escapes root")
	// ErrInvalidName means a name was empty or unusable after sanitization.
	ErrInvalidName = errors.New("invalid name")
)

// CleanRelPath takes a user path like "", ".", "/a/b", "a//b", and returns a
// safe, slash-based, no-leading-slash relative path ("" means root).
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p) // force absolute for stable cleaning
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// JoinWithinRoot returns an absolute filesystem path under root for a given
// rel path. It rejects escapes (..) with ErrPathEscape.
func JoinWithinRoot(rootAbs string, rel string) (string, error) {
	rel = CleanRelPath(rel)
	if rel == "" {
		return filepath.Clean(rootAbs), nil
	}
	if strings.Contains(rel, "\x00") {
		return "", ErrPathEscape
	}
	abs := filepath.Join(rootAbs, filepath.FromSlash(rel))
	absClean := filepath.Clean(abs)
	rootClean := filepath.Clean(rootAbs)
	if absClean != rootClean && !strings.HasPrefix(absClean, rootClean+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return absClean, nil
}

// SanitizeName reduces a user-supplied name to a single safe path segment:
// separators and control characters are dropped, whitespace becomes "_",
// and leading/trailing dots are stripped so a name can never form a hidden
// file or a traversal segment. Fails with ErrInvalidName when nothing safe
// remains.
func SanitizeName(name string) (string, error) {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r < 0x20 || r == 0x7f:
			// drop
		case r == ' ' || r == '\t':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), "._")
	if s == "" {
		return "", ErrInvalidName
	}
	return s, nil
}

// EnsureDir creates dir (and any missing parents) if absent.
func EnsureDir(abs string) error {
	return os.MkdirAll(abs, 0o755)
}

// ParentRel returns the parent of a clean relative path ("" for root or
// top-level items).
func ParentRel(rel string) string {
	rel = CleanRelPath(rel)
	if rel == "" {
		return ""
	}
	p := path.Dir(rel)
	if p == "." {
		return ""
	}
	return p
}
