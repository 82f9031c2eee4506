package middleware

import (
	"context"
	"net"
	"strings"

	"github.com/suika-web/suika/pkg/common"
)

// IPSourceType defines where the client IP is read from.
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the connection's remote address.
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the first address of the X-Forwarded-For header.
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header.
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses the header named by IPConfig.CustomHeader.
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig configures client IP extraction.
type IPConfig struct {
	Source       IPSourceType
	CustomHeader string
	// TrustProxy enables header sources. When false the remote address is always used.
	TrustProxy bool
}

// DefaultIPConfig returns the default configuration: X-Forwarded-For behind a trusted proxy.
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

type clientIPKey struct{}

// ClientIP returns the client IP stored by the ClientIP middleware, or "".
func ClientIP(req *common.Request) string {
	if ip, ok := req.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware stores the client IP in the request context.
func ClientIPMiddleware(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}
	return Func(func(req *common.Request, res *common.Response, next *common.Next) error {
		ip := extractClientIP(req, config)
		req.WithContext(context.WithValue(req.Context(), clientIPKey{}, ip))
		return next.Proceed(req, res)
	})
}

func extractClientIP(req *common.Request, config *IPConfig) string {
	var ip string
	if config.TrustProxy {
		switch config.Source {
		case IPSourceXRealIP:
			ip = req.Header("X-Real-IP")
		case IPSourceCustomHeader:
			ip = req.Header(config.CustomHeader)
		case IPSourceRemoteAddr:
		default:
			ip = firstForwarded(req.Header("X-Forwarded-For"))
		}
	}
	if ip == "" {
		ip = req.Raw().RemoteAddr
	}
	return cleanIP(ip)
}

func firstForwarded(xff string) string {
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP strips the port and IPv6 brackets from addr.
func cleanIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
