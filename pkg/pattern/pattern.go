// Package pattern compiles route path patterns into matchers.
//
// Three syntaxes are understood:
//
//   - literal paths such as "/users" match by string equality;
//   - segment parameters such as "/users/:id" or "/static/*filepath" are
//     matched by an httprouter tree holding that single route;
//   - anything containing "*", a group "(", or an anchor "^" or "$" is
//     compiled with the regexp package. Named groups such as
//     `(?P<id>\d+)` become captures. The expression is anchored at the start
//     of the path; end anchoring is left to the pattern ("$").
//
// Other characters, such as "+" in "/c++", are matched literally unless one of
// the characters above turns the pattern into a regular expression.
package pattern

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyPattern is returned when compiling an empty pattern.
var ErrEmptyPattern = errors.New("pattern: empty pattern")

// Matcher reports whether a path matches and returns the named captures.
type Matcher interface {
	// Match returns the captures and true when path matches.
	Match(path string) (map[string]string, bool)
	// String returns the source pattern.
	String() string
}

// dynamicMeta lists the characters that make a pattern a regular expression.
const dynamicMeta = `*(^$`

// regexMeta lists every regular-expression character; none may appear in a
// plain segment of an httprouter pattern.
const regexMeta = `*()[]{}^$\|+?`

// IsDynamic reports whether p needs a compiled matcher rather than string equality.
func IsDynamic(p string) bool {
	return strings.ContainsAny(p, dynamicMeta) || hasParamSegment(p)
}

// Compile builds the matcher for p.
func Compile(p string) (Matcher, error) {
	if p == "" {
		return nil, ErrEmptyPattern
	}
	switch {
	case isParamPattern(p):
		m, err := newParamMatcher(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		return m, nil
	case IsDynamic(p):
		m, err := newRegexMatcher(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		return m, nil
	default:
		return literalMatcher(p), nil
	}
}

// MustCompile is like Compile but panics if the pattern cannot be compiled.
func MustCompile(p string) Matcher {
	m, err := Compile(p)
	if err != nil {
		panic(err)
	}
	return m
}

// hasParamSegment reports whether any segment of p starts with ':'.
func hasParamSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if len(seg) > 1 && seg[0] == ':' {
			return true
		}
	}
	return false
}

// isParamPattern reports whether p uses only httprouter segment syntax:
// ":name" segments and a trailing "*name" catch-all, with no other
// regular-expression characters.
func isParamPattern(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	params := false
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		switch {
		case seg == "":
		case seg[0] == ':':
			if !isName(seg[1:]) {
				return false
			}
			params = true
		case seg[0] == '*':
			if i != len(segs)-1 || !isName(seg[1:]) {
				return false
			}
			params = true
		case strings.ContainsAny(seg, regexMeta) || strings.Contains(seg, ":"):
			return false
		}
	}
	return params
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

type literalMatcher string

func (m literalMatcher) Match(path string) (map[string]string, bool) {
	return nil, path == string(m)
}

func (m literalMatcher) String() string {
	return string(m)
}
