// Package router resolves requests to handlers.
// It supports exact and pattern routes, mounted sub-routers with path-prefix
// rewriting, and typed handlers with pluggable codecs.
package router

import (
	"errors"
	"net/http"

	"github.com/suika-web/suika/pkg/common"
	"go.uber.org/zap"
)

var (
	// ErrInvalidPattern wraps pattern compilation failures at registration time.
	ErrInvalidPattern = errors.New("router: invalid route pattern")

	// ErrFrozen is returned when routes or sub-routers are registered after the
	// router started serving requests.
	ErrFrozen = errors.New("router: registration after router was frozen")

	// ErrAlreadyMounted is returned when mounting a router that already has a parent.
	ErrAlreadyMounted = errors.New("router: router is already mounted")

	// ErrInvalidPrefix is returned when a mount prefix does not start with "/".
	ErrInvalidPrefix = errors.New("router: mount prefix must start with \"/\"")

	// ErrNilHandler is returned when registering a route without a handler.
	ErrNilHandler = errors.New("router: nil handler")

	// ErrNilRouter is returned when mounting a nil router.
	ErrNilRouter = errors.New("router: nil router")
)

// Config defines the configuration of a Router.
type Config struct {
	Logger        *zap.Logger // Logger for handler failures and routing diagnostics
	EnableTraceID bool        // Include the request trace ID in log entries when present
}

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware

// GenericHandler defines a handler function with typed request and response data.
// The framework decodes T from the request and encodes the returned U with the
// route's Codec.
type GenericHandler[T any, U any] func(req *common.Request, data T) (U, error)

// Codec defines an interface for marshaling and unmarshaling request and response data.
// The codec package provides JSON and Protocol Buffers implementations.
type Codec[T any, U any] interface {
	// Decode extracts and deserializes data from an HTTP request into a value of type T.
	Decode(r *http.Request) (T, error)

	// Encode serializes a value of type U and writes it to the response.
	Encode(w http.ResponseWriter, resp U) error
}

// RouteConfig defines a route with generic request and response types.
type RouteConfig[T any, U any] struct {
	Method      string               // HTTP method; empty matches any method
	Path        string               // Route pattern
	Codec       Codec[T, U]          // Codec for decoding the request and encoding the response
	Handler     GenericHandler[T, U] // Typed handler
	Middlewares []common.Middleware  // Middlewares applied to this route only
}
