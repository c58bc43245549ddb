// Package strings provides small string and slice helpers
package strings

import std "strings"

// IfEmpty returns def if in is empty, otherwise returns in
func IfEmpty[T any](in []T, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// MustPrefix normalizes and asserts a root path like /files
// ensures a single leading slash and no trailing slash, panics on an empty root
func MustPrefix(s string) string {
	s = "/" + std.Trim(std.TrimSpace(s), " /")
	if s == "/" {
		panic("root path is required")
	}
	return s
}

// TrimLastExt drops the final ".ext" from name, so "a.tar.bz2" becomes "a.tar"
// names without a dot are returned unchanged
func TrimLastExt(name string) string {
	if i := std.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// Dedupe returns in without repeats, keeping first occurrence order
func Dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
