// Package exclude decides whether a relative path is excluded from a backup.
//
// A pattern takes one of four shapes:
//
//	*.log          wildcard without separator: glob against the basename
//	bitrix/*.tmp   wildcard with separator: glob against the full path
//	local/temp     separator, no wildcard: directory prefix
//	.DS_Store      no separator, no wildcard: exact basename, anywhere
//
// Matching is case-sensitive. Patterns never combine; the caller applies
// them in configured order and the first match wins.
package exclude

import (
	"path"
	"strings"
)

// Matches reports whether pattern excludes relPath. Both sides are
// normalized to forward slashes before comparison.
func Matches(relPath, pattern string) bool {
	p := strings.ReplaceAll(pattern, `\`, "/")
	rel := strings.ReplaceAll(relPath, `\`, "/")

	if strings.ContainsAny(p, "*?") {
		if strings.Contains(p, "/") {
			return wildcardMatch(rel, p)
		}
		return wildcardMatch(path.Base(rel), p)
	}

	if strings.Contains(p, "/") {
		// Directory prefix, separator-bounded: "a/b" matches "a/b/c"
		// but not "a/bc".
		return strings.HasPrefix(rel, strings.TrimRight(p, "/")+"/")
	}

	return path.Base(rel) == p
}

// First returns the first pattern in order that matches relPath, or
// ("", false) when none does.
func First(relPath string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if Matches(relPath, p) {
			return p, true
		}
	}
	return "", false
}

// wildcardMatch is fnmatch-style: '*' matches any run of characters,
// separators included, and '?' matches exactly one character. This differs
// from filepath.Match, whose '*' stops at separators; exclusion globs here
// must be able to span directory levels.
func wildcardMatch(s, pattern string) bool {
	var si, pi int
	star, mark := -1, 0

	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			si++
			pi++
		case pi < len(pattern) && pattern[pi] == '*':
			star = pi
			mark = si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
