// Package pathutil provides path manipulation for pkg entry paths.
//
// Entry paths are stored with backslash separators and no leading root. The
// library exposes them rooted and slash separated, e.g. "/data/wall.vtf".
package pathutil

import (
	"errors"
	"strings"
)

// ErrUnsafePath is returned by Relative for paths that escape their root.
var ErrUnsafePath = errors.New("pathutil: unsafe path")

// EntryPath converts a stored entry path to its rooted, slash separated form.
func EntryPath(raw string) string {
	p := strings.ReplaceAll(raw, "\\", "/")
	return "/" + strings.TrimLeft(p, "/")
}

// Base returns the last element of a slash-separated path.
// If path is empty or ".", it returns ".".
func Base(path string) string {
	if path == "" || path == "." {
		return "."
	}
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Relative returns an entry path as a relative, slash separated path that is
// safe to join under an extraction root. Empty elements are collapsed; "."
// and ".." elements are rejected.
func Relative(entryPath string) (string, error) {
	parts := strings.Split(strings.ReplaceAll(entryPath, "\\", "/"), "/")
	result := parts[:0]
	for _, part := range parts {
		switch part {
		case "":
			continue
		case ".", "..":
			return "", errors.Join(ErrUnsafePath, errors.New(entryPath))
		}
		result = append(result, part)
	}
	if len(result) == 0 {
		return "", errors.Join(ErrUnsafePath, errors.New("empty path"))
	}
	return strings.Join(result, "/"), nil
}
