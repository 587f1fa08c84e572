package middleware

import (
	"net/http"
	"strings"
)

// OriginCandidates lists the request values checked against the allowlist,
// most trustworthy first. Host-only candidates have no scheme; the matcher
// tolerates that.
func OriginCandidates(r *http.Request) []string {
	var out []string
	for _, v := range []string{
		r.Header.Get("Origin"),
		r.Header.Get("X-Forwarded-Origin"),
		r.Header.Get("X-Forwarded-Host"),
		r.Host,
	} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// OriginAllowed reports whether any candidate matches any allowlist pattern.
// An empty pattern list allows everything.
func OriginAllowed(patterns, candidates []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		for _, candidate := range candidates {
			if matchOrigin(pattern, candidate) {
				return true
			}
		}
	}
	return false
}

// matchOrigin compares one allowlist pattern against one origin value.
// Comparison is case-insensitive and ignores trailing slashes. A pattern
// without a scheme matches the origin's host part, so "admin.shop.com"
// allows "https://admin.shop.com". The * wildcard spans any run of
// characters, covering preview deployments like "https://*-team.vercel.app".
func matchOrigin(pattern, origin string) bool {
	pattern = normalizeOrigin(pattern)
	origin = normalizeOrigin(origin)
	if pattern == "" || origin == "" {
		return false
	}

	if wildcardMatch(pattern, origin) {
		return true
	}

	// scheme-tolerant host comparison
	if !strings.Contains(pattern, "://") {
		if idx := strings.Index(origin, "://"); idx >= 0 {
			return wildcardMatch(pattern, origin[idx+3:])
		}
	}
	return false
}

func normalizeOrigin(s string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "/")
}

// wildcardMatch is a glob match where * spans any run of characters except
// path and query separators. The restriction stops a suffix pattern like
// *.vercel.app from being satisfied by a hostile URL that merely mentions
// the suffix in its query string.
func wildcardMatch(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	if pattern[0] == '*' {
		for i := 0; i <= len(s); i++ {
			if wildcardMatch(pattern[1:], s[i:]) {
				return true
			}
			if i < len(s) && (s[i] == '/' || s[i] == '?' || s[i] == '#') {
				return false
			}
		}
		return false
	}
	if s == "" || s[0] != pattern[0] {
		return false
	}
	return wildcardMatch(pattern[1:], s[1:])
}
