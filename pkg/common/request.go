package common

import (
	"context"
	"net/http"
)

// Request is the read-mostly view of an incoming request that flows through
// the pipeline. It wraps the parsed *http.Request and carries the captures
// produced by route matching.
type Request struct {
	raw     *http.Request
	params  map[string]string
	pattern string
	modules map[string]any
}

// NewRequest wraps r. modules is the shared, read-only module registry of the
// server and may be nil.
func NewRequest(r *http.Request, modules map[string]any) *Request {
	return &Request{raw: r, modules: modules}
}

// Method returns the HTTP method.
func (r *Request) Method() string {
	return r.raw.Method
}

// Path returns the full request path.
func (r *Request) Path() string {
	return r.raw.URL.Path
}

// Raw returns the underlying *http.Request.
func (r *Request) Raw() *http.Request {
	return r.raw
}

// Context returns the request context.
func (r *Request) Context() context.Context {
	return r.raw.Context()
}

// WithContext replaces the request context. Captures and modules are kept.
func (r *Request) WithContext(ctx context.Context) {
	r.raw = r.raw.WithContext(ctx)
}

// Clone returns a copy of r carrying ctx. Captures are copied; the module
// registry is shared.
func (r *Request) Clone(ctx context.Context) *Request {
	c := &Request{
		raw:     r.raw.WithContext(ctx),
		pattern: r.pattern,
		modules: r.modules,
	}
	if r.params != nil {
		c.params = make(map[string]string, len(r.params))
		for k, v := range r.params {
			c.params[k] = v
		}
	}
	return c
}

// Header returns the first value of the named request header.
func (r *Request) Header(name string) string {
	return r.raw.Header.Get(name)
}

// Query returns the first value of the named query parameter.
func (r *Request) Query(name string) string {
	return r.raw.URL.Query().Get(name)
}

// Param returns the value captured under name by the matched route.
func (r *Request) Param(name string) (string, bool) {
	v, ok := r.params[name]
	return v, ok
}

// Params returns all captures of the matched route. The map must not be modified.
func (r *Request) Params() map[string]string {
	return r.params
}

// SetParams records the captures of the matched route.
func (r *Request) SetParams(params map[string]string) {
	r.params = params
}

// RoutePattern returns the pattern of the matched route, or "" when no route matched.
func (r *Request) RoutePattern() string {
	return r.pattern
}

// SetRoutePattern records the pattern of the matched route.
func (r *Request) SetRoutePattern(pattern string) {
	r.pattern = pattern
}

// Module returns the shared module registered under name.
func (r *Request) Module(name string) (any, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// ModuleAs returns the module registered under name if it has type T.
func ModuleAs[T any](r *Request, name string) (T, bool) {
	m, ok := r.Module(name)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := m.(T)
	return v, ok
}
