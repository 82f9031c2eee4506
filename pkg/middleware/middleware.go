// Package middleware provides a collection of pipeline stages for the suika framework.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/suika-web/suika/pkg/common"
	"go.uber.org/zap"
)

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware

// Func is an alias for common.MiddlewareFunc.
type Func = common.MiddlewareFunc

// ErrTimeout is returned by the Timeout middleware when the downstream stages
// did not finish in time.
var ErrTimeout = errors.New("middleware: request timed out")

// Recovery is a middleware that recovers from panics in downstream stages.
// The panic is logged and the response replaced with a 500.
func Recovery(logger *zap.Logger) Middleware {
	return Func(func(req *common.Request, res *common.Response, next *common.Next) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("method", req.Method()),
					zap.String("path", req.Path()),
				)
				res.SetStatus(http.StatusInternalServerError)
				res.BodyString("Internal Server Error")
				err = nil
			}
		}()
		return next.Proceed(req, res)
	})
}

// Logging is a middleware that logs requests after the downstream stages finish.
// If enableTraceID is true, the trace ID is included when present.
func Logging(logger *zap.Logger, enableTraceID bool) Middleware {
	return Func(func(req *common.Request, res *common.Response, next *common.Next) error {
		start := time.Now()

		err := next.Proceed(req, res)

		duration := time.Since(start)
		status := res.Status()
		fields := []zap.Field{
			zap.String("method", req.Method()),
			zap.String("path", req.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		if traceID := TraceID(req); enableTraceID && traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		switch {
		case err != nil || status >= 500:
			logger.Error("Server error", fields...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		case duration > 1*time.Second:
			logger.Warn("Slow request", fields...)
		default:
			logger.Debug("Request", fields...)
		}
		return err
	})
}

// MaxBodySize is a middleware that limits the size of the request body.
// Reading past the limit fails inside the handler.
func MaxBodySize(maxSize int64) Middleware {
	return Func(func(req *common.Request, res *common.Response, next *common.Next) error {
		raw := req.Raw()
		if raw.ContentLength > maxSize {
			res.SetStatus(http.StatusRequestEntityTooLarge)
			res.BodyString("Request Entity Too Large")
			return nil
		}
		if raw.Body != nil {
			raw.Body = http.MaxBytesReader(res, raw.Body, maxSize)
		}
		return next.Proceed(req, res)
	})
}

// Timeout is a middleware that bounds the time spent in downstream stages.
// Downstream stages run on a copy of the request whose context is cancelled at
// the deadline, and write to a private response. Both are copied back only if
// they finish in time; otherwise the response becomes 408 and their output is
// discarded.
func Timeout(timeout time.Duration, logger *zap.Logger) Middleware {
	return Func(func(req *common.Request, res *common.Response, next *common.Next) error {
		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()

		innerReq := req.Clone(ctx)
		inner := common.NewResponse()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					done <- fmt.Errorf("panic: %v", rec)
				}
			}()
			done <- next.Proceed(innerReq, inner)
		}()

		select {
		case err := <-done:
			req.SetParams(innerReq.Params())
			req.SetRoutePattern(innerReq.RoutePattern())
			res.Replace(inner)
			return err
		case <-ctx.Done():
			logger.Error("Request timed out",
				zap.String("method", req.Method()),
				zap.String("path", req.Path()),
				zap.Duration("timeout", timeout),
				zap.Error(ErrTimeout),
			)
			res.SetStatus(http.StatusRequestTimeout)
			res.BodyString("Request Timeout")
			return nil
		}
	})
}

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	Origins []string // Allowed origins; "*" allows all
	Methods []string // Allowed methods
	Headers []string // Allowed request headers
	MaxAge  time.Duration
}

// CORS is a middleware that adds CORS headers and answers preflight requests
// without running the rest of the chain. Access-Control-Allow-Origin is "*"
// when all origins are allowed; otherwise it echoes the request's Origin if
// that origin is in the allow list, and is omitted if not.
func CORS(config CORSConfig) Middleware {
	anyOrigin := false
	allowed := make(map[string]struct{}, len(config.Origins))
	for _, o := range config.Origins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = struct{}{}
	}
	methods := strings.Join(config.Methods, ", ")
	headers := strings.Join(config.Headers, ", ")

	return Func(func(req *common.Request, res *common.Response, next *common.Next) error {
		h := res.Header()
		if anyOrigin {
			h.Set("Access-Control-Allow-Origin", "*")
		} else if origin := req.Header("Origin"); origin != "" {
			h.Add("Vary", "Origin")
			if _, ok := allowed[origin]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
			}
		}
		if methods != "" {
			h.Set("Access-Control-Allow-Methods", methods)
		}
		if headers != "" {
			h.Set("Access-Control-Allow-Headers", headers)
		}
		if config.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
		}

		if req.Method() == http.MethodOptions {
			res.SetStatus(http.StatusNoContent)
			return nil
		}
		return next.Proceed(req, res)
	})
}
