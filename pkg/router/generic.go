package router

import (
	"net/http"

	"github.com/suika-web/suika/pkg/common"
)

// RegisterGenericRoute registers a route with typed request and response data.
// This is a standalone function rather than a method because Go methods
// cannot have type parameters.
//
// A request that fails to decode gets a 400 response. Handler and encoding
// errors are returned to the router, which turns them into a 500.
func RegisterGenericRoute[Req any, Resp any](r *Router, route RouteConfig[Req, Resp]) error {
	if route.Handler == nil || route.Codec == nil {
		return ErrNilHandler
	}

	handler := func(req *common.Request, res *common.Response, _ *common.Next) error {
		data, err := route.Codec.Decode(req.Raw())
		if err != nil {
			res.SetStatus(http.StatusBadRequest)
			res.BodyString("Bad Request: " + err.Error())
			return nil
		}

		resp, err := route.Handler(req, data)
		if err != nil {
			return err
		}
		return route.Codec.Encode(res, resp)
	}

	return r.AddRoute(route.Method, route.Path, WithMiddleware(handler, route.Middlewares...))
}

// WithMiddleware wraps handler with route-scoped middleware. The middleware
// run in order before the handler; the handler still receives the router's
// outer continuation.
func WithMiddleware(handler common.Handler, middlewares ...common.Middleware) common.Handler {
	if len(middlewares) == 0 {
		return handler
	}
	stages := common.NewMiddlewareChain().Append(middlewares...)
	return func(req *common.Request, res *common.Response, next *common.Next) error {
		terminal := common.MiddlewareFunc(func(req *common.Request, res *common.Response, _ *common.Next) error {
			return handler(req, res, next)
		})
		return common.NewMiddlewareChain(terminal).Prepend(stages...).Run(req, res)
	}
}

// HTTPHandler adapts a net/http handler to a route handler. The handler writes
// into the buffered response.
func HTTPHandler(h http.Handler) common.Handler {
	return func(req *common.Request, res *common.Response, _ *common.Next) error {
		h.ServeHTTP(res, req.Raw())
		return nil
	}
}
