// Package common provides shared types and utilities used across the suika framework.
package common

// Handler is the signature of a route handler.
// It receives the request, the response to mutate and the continuation of the
// outer middleware chain. The returned error signals a pipeline-level failure;
// the response payload is communicated only by mutating res.
type Handler func(req *Request, res *Response, next *Next) error

// Middleware is a stage of the request pipeline.
// A middleware may act before calling next.Proceed, act after it returns,
// skip it entirely to short-circuit the chain, or return an error to abort.
type Middleware interface {
	Handle(req *Request, res *Response, next *Next) error
}

// MiddlewareFunc adapts an ordinary function to the Middleware interface.
type MiddlewareFunc func(req *Request, res *Response, next *Next) error

// Handle calls f(req, res, next).
func (f MiddlewareFunc) Handle(req *Request, res *Response, next *Next) error {
	return f(req, res, next)
}

// Freezer is implemented by middleware that accept configuration until the
// first request is served, such as routers.
type Freezer interface {
	Freeze()
}
