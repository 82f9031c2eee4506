package router

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/suika-web/suika/pkg/common"
	"github.com/suika-web/suika/pkg/middleware"
	"go.uber.org/zap"
)

// mount is a child router attached under a path prefix.
type mount struct {
	prefix string
	child  *Router
}

// Router holds exact routes, pattern routes and mounted child routers, and
// resolves a request to one handler or to a 404.
//
// Routes are registered during setup. Once the router is frozen, which the
// server does before serving the first request, the tables are read-only and
// shared by all requests without locking.
type Router struct {
	config      Config
	logger      *zap.Logger
	exact       []*Route
	patterns    []*Route
	mounted     []mount
	mountPrefix string
	hasParent   bool
	frozen      atomic.Bool
}

// New creates a Router with the given configuration.
func New(config Config) *Router {
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}
	return &Router{config: config, logger: logger}
}

// AddRoute registers handler for method and path. An empty method matches any
// method. Literal paths become exact routes; dynamic paths are compiled into
// pattern routes.
func (r *Router) AddRoute(method, path string, handler common.Handler) error {
	if r.frozen.Load() {
		return ErrFrozen
	}
	rt, err := NewRoute(method, path, handler)
	if err != nil {
		return err
	}
	if rt.Dynamic {
		r.patterns = append(r.patterns, rt)
	} else {
		r.exact = append(r.exact, rt)
	}
	return nil
}

// mustAdd registers a route and panics on failure, like regexp.MustCompile.
func (r *Router) mustAdd(method, path string, handler common.Handler) {
	if err := r.AddRoute(method, path, handler); err != nil {
		panic(fmt.Sprintf("router: %s %s: %v", method, path, err))
	}
}

// Get registers a GET route. It panics if the route cannot be registered.
func (r *Router) Get(path string, handler common.Handler) { r.mustAdd(http.MethodGet, path, handler) }

// Post registers a POST route. It panics if the route cannot be registered.
func (r *Router) Post(path string, handler common.Handler) { r.mustAdd(http.MethodPost, path, handler) }

// Put registers a PUT route. It panics if the route cannot be registered.
func (r *Router) Put(path string, handler common.Handler) { r.mustAdd(http.MethodPut, path, handler) }

// Delete registers a DELETE route. It panics if the route cannot be registered.
func (r *Router) Delete(path string, handler common.Handler) {
	r.mustAdd(http.MethodDelete, path, handler)
}

// Patch registers a PATCH route. It panics if the route cannot be registered.
func (r *Router) Patch(path string, handler common.Handler) {
	r.mustAdd(http.MethodPatch, path, handler)
}

// Any registers a route matching every method. It panics if the route cannot be registered.
func (r *Router) Any(path string, handler common.Handler) { r.mustAdd("", path, handler) }

// Mount attaches child under prefix. The child strips prefix from the request
// path before matching its own routes; the parent selects the child with a
// plain prefix test on the unstripped path. Nested mounts therefore name their
// full prefix.
func (r *Router) Mount(prefix string, child *Router) error {
	switch {
	case r.frozen.Load():
		return ErrFrozen
	case child == nil:
		return ErrNilRouter
	case !strings.HasPrefix(prefix, "/"):
		return ErrInvalidPrefix
	case child == r || child.hasParent:
		return ErrAlreadyMounted
	}
	child.mountPrefix = prefix
	child.hasParent = true
	r.mounted = append(r.mounted, mount{prefix: prefix, child: child})
	return nil
}

// MountPrefix returns the prefix this router was mounted under, or "" for a root router.
func (r *Router) MountPrefix() string {
	return r.mountPrefix
}

// Freeze stops further registration on this router and its children.
func (r *Router) Freeze() {
	r.frozen.Store(true)
	for _, m := range r.mounted {
		m.child.Freeze()
	}
}

// Frozen reports whether the router has been frozen.
func (r *Router) Frozen() bool {
	return r.frozen.Load()
}

// Routes returns the router's own routes, exact routes first, each group in
// registration order.
func (r *Router) Routes() []*Route {
	routes := make([]*Route, 0, len(r.exact)+len(r.patterns))
	routes = append(routes, r.exact...)
	return append(routes, r.patterns...)
}

// Handle resolves req and runs the matched handler. It implements
// common.Middleware so a router can terminate a middleware chain; next is
// passed to the matched handler, which may hand control back to the stages
// that follow the router.
//
// Handler errors and panics become a 500 response and Handle returns nil.
// An unmatched request becomes a 404 "Not Found" response.
func (r *Router) Handle(req *common.Request, res *common.Response, next *common.Next) error {
	full := req.Path()
	local := stripMountPrefix(full, r.mountPrefix)
	method := req.Method()

	if rt, params := r.match(method, local); rt != nil {
		req.SetParams(params)
		req.SetRoutePattern(r.mountPrefix + rt.Pattern)
		if err := r.invoke(rt, req, res, next); err != nil {
			r.handleError(req, res, err)
		}
		return nil
	}

	for _, m := range r.mounted {
		if strings.HasPrefix(full, m.prefix) {
			return m.child.Handle(req, res, next)
		}
	}

	res.SetStatus(http.StatusNotFound)
	res.BodyString("Not Found")
	return nil
}

// match scans exact routes, then pattern routes, in registration order.
func (r *Router) match(method, path string) (*Route, map[string]string) {
	for _, rt := range r.exact {
		if _, ok := rt.Match(method, path); ok {
			return rt, nil
		}
	}
	for _, rt := range r.patterns {
		if params, ok := rt.Match(method, path); ok {
			return rt, params
		}
	}
	return nil, nil
}

// invoke runs the handler, turning a panic into an error.
func (r *Router) invoke(rt *Route, req *common.Request, res *common.Response, next *common.Next) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return rt.handler(req, res, next)
}

// handleError logs a handler failure and replaces the response with a 500.
func (r *Router) handleError(req *common.Request, res *common.Response, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", req.Method()),
		zap.String("path", req.Path()),
		zap.String("route", req.RoutePattern()),
	}
	if traceID := middleware.TraceID(req); r.config.EnableTraceID && traceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
	}
	r.logger.Error("Handler error", fields...)

	res.Error(err)
}

// ServeHTTP lets a router be used directly as an http.Handler, without a
// server or middleware chain. It freezes the router.
func (r *Router) ServeHTTP(w http.ResponseWriter, hr *http.Request) {
	r.Freeze()
	req := common.NewRequest(hr, nil)
	res := common.NewResponse()
	if err := r.Handle(req, res, common.Terminal()); err != nil {
		res.Error(err)
	}
	_, _ = res.Send(w)
}

// stripMountPrefix returns the part of full owned by a router mounted at
// prefix, re-rooted at "/".
func stripMountPrefix(full, prefix string) string {
	if prefix == "" || !strings.HasPrefix(full, prefix) {
		return full
	}
	return "/" + strings.TrimLeft(full[len(prefix):], "/")
}
