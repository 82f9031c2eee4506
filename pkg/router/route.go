package router

import (
	"fmt"
	"strings"

	"github.com/suika-web/suika/pkg/common"
	"github.com/suika-web/suika/pkg/pattern"
)

// Route is an immutable binding of a method, a path pattern and a handler.
type Route struct {
	Method  string // Upper-case method; empty matches any method
	Pattern string // Path pattern as registered
	Dynamic bool   // Whether Pattern is matched by a compiled matcher

	matcher pattern.Matcher
	handler common.Handler
}

// NewRoute builds a route. Dynamic patterns are compiled here, so a malformed
// pattern is reported once, at registration, wrapped in ErrInvalidPattern.
func NewRoute(method, path string, handler common.Handler) (*Route, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	rt := &Route{
		Method:  strings.ToUpper(method),
		Pattern: path,
		Dynamic: pattern.IsDynamic(path),
		handler: handler,
	}
	if rt.Dynamic {
		m, err := pattern.Compile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
		}
		rt.matcher = m
	}
	return rt, nil
}

// Match reports whether the route accepts method and path, returning the
// captures of dynamic patterns.
func (rt *Route) Match(method, path string) (map[string]string, bool) {
	if rt.Method != "" && rt.Method != method {
		return nil, false
	}
	if !rt.Dynamic {
		return nil, rt.Pattern == path
	}
	return rt.matcher.Match(path)
}

// Handler returns the route's handler.
func (rt *Route) Handler() common.Handler {
	return rt.handler
}

func (rt *Route) String() string {
	method := rt.Method
	if method == "" {
		method = "*"
	}
	return method + " " + rt.Pattern
}
