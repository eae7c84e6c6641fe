// Package matcher implements the pure scope- and resource-pattern matching
// rules tokens are checked against. Both functions are stateless and have no
// side effects; they are the only place the matching algorithm is defined.
package matcher

import (
	"regexp"
	"strings"
)

// ScopeMatches reports whether pattern P covers scope S.
//
// Matching is not symmetric: "github:repo:*" matches "github:repo:read" but
// "github:repo:read" does not match "github:repo:*".
func ScopeMatches(pattern, scope string) bool {
	if pattern == scope {
		return true
	}
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ":*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(scope, prefix)
	}

	patternSegments := strings.Split(pattern, ":")
	scopeSegments := strings.Split(scope, ":")
	if len(patternSegments) != len(scopeSegments) {
		return false
	}
	for i, seg := range patternSegments {
		if seg == "*" {
			continue
		}
		if seg != scopeSegments[i] {
			return false
		}
	}
	return true
}

// ResourceMatches reports whether glob pattern matches resource, where "*"
// matches any substring (including "/") and "?" matches exactly one
// character. All other regex metacharacters in pattern are treated literally.
func ResourceMatches(pattern, resource string) bool {
	if pattern == "" {
		return resource == ""
	}
	if pattern == "*" {
		return true
	}
	re := globToRegexp(pattern)
	return re.MatchString(resource)
}

func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	// The pattern is entirely our own construction (QuoteMeta'd literals plus
	// ".*"/"."), so this can never fail to compile.
	return regexp.MustCompile(b.String())
}

// AnyScopeMatches reports whether any pattern in patterns matches scope, and
// if so returns the matching pattern.
func AnyScopeMatches(patterns []string, scope string) (string, bool) {
	for _, p := range patterns {
		if ScopeMatches(p, scope) {
			return p, true
		}
	}
	return "", false
}

// AnyResourceMatches reports whether any pattern in patterns matches resource.
func AnyResourceMatches(patterns []string, resource string) bool {
	for _, p := range patterns {
		if ResourceMatches(p, resource) {
			return true
		}
	}
	return false
}
