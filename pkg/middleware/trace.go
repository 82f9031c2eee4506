package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/suika-web/suika/pkg/common"
)

// traceIDKey is the key used to store the trace ID in the request context
type traceIDKey struct{}

// TraceIDHeader is the response header carrying the trace ID.
const TraceIDHeader = "X-Request-ID"

// Trace creates a middleware that assigns a unique trace ID to each request.
// An incoming X-Request-ID header is reused when present. The ID is stored in
// the request context and echoed on the response.
func Trace() Middleware {
	return Func(func(req *common.Request, res *common.Response, next *common.Next) error {
		traceID := req.Header(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		req.WithContext(context.WithValue(req.Context(), traceIDKey{}, traceID))
		res.Header().Set(TraceIDHeader, traceID)
		return next.Proceed(req, res)
	})
}

// TraceID extracts the trace ID from the request.
// Returns an empty string if no trace ID is found.
func TraceID(req *common.Request) string {
	return TraceIDFromContext(req.Context())
}

// TraceIDFromContext extracts the trace ID from a context.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}
