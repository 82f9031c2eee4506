package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/suika-web/suika/pkg/common"
	"go.uber.org/zap"
)

// AuthProvider authenticates a request.
type AuthProvider interface {
	// Authenticate returns true if the request carries valid credentials.
	Authenticate(req *common.Request) bool
}

// AuthProviderFunc adapts a function to AuthProvider.
type AuthProviderFunc func(req *common.Request) bool

// Authenticate calls f(req).
func (f AuthProviderFunc) Authenticate(req *common.Request) bool { return f(req) }

// BasicAuthProvider provides HTTP Basic Authentication.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate checks the Basic credentials against the stored map.
func (p *BasicAuthProvider) Authenticate(req *common.Request) bool {
	username, password, ok := req.Raw().BasicAuth()
	if !ok {
		return false
	}
	expected, exists := p.Credentials[username]
	if !exists {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
}

// BearerTokenProvider provides Bearer Token Authentication.
type BearerTokenProvider struct {
	ValidTokens map[string]bool         // token -> valid
	Validator   func(token string) bool // optional token validator, used when set
}

// Authenticate validates the bearer token of the Authorization header.
func (p *BearerTokenProvider) Authenticate(req *common.Request) bool {
	token, ok := strings.CutPrefix(req.Header("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	if p.Validator != nil {
		return p.Validator(token)
	}
	return p.ValidTokens[token]
}

// APIKeyProvider provides API key authentication from a header or a query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]bool
	Header    string // header to read the key from
	Query     string // query parameter used when the header is absent
}

// Authenticate validates the API key.
func (p *APIKeyProvider) Authenticate(req *common.Request) bool {
	var key string
	if p.Header != "" {
		key = req.Header(p.Header)
	}
	if key == "" && p.Query != "" {
		key = req.Query(p.Query)
	}
	return key != "" && p.ValidKeys[key]
}

// Authentication rejects unauthenticated requests with 401 and never runs the
// rest of the chain for them.
func Authentication(provider AuthProvider, logger *zap.Logger) Middleware {
	return Func(func(req *common.Request, res *common.Response, next *common.Next) error {
		if provider.Authenticate(req) {
			return next.Proceed(req, res)
		}
		logger.Warn("Authentication failed",
			zap.String("method", req.Method()),
			zap.String("path", req.Path()),
			zap.String("remote_addr", req.Raw().RemoteAddr),
		)
		res.SetStatus(http.StatusUnauthorized)
		res.BodyString("Unauthorized")
		return nil
	})
}

// NewBasicAuthMiddleware creates a middleware that uses HTTP Basic Authentication.
func NewBasicAuthMiddleware(credentials map[string]string, logger *zap.Logger) Middleware {
	return Authentication(&BasicAuthProvider{Credentials: credentials}, logger)
}

// NewBearerTokenMiddleware creates a middleware that accepts the given bearer tokens.
func NewBearerTokenMiddleware(validTokens map[string]bool, logger *zap.Logger) Middleware {
	return Authentication(&BearerTokenProvider{ValidTokens: validTokens}, logger)
}

// NewBearerTokenValidatorMiddleware creates a middleware that validates bearer tokens with validator.
func NewBearerTokenValidatorMiddleware(validator func(string) bool, logger *zap.Logger) Middleware {
	return Authentication(&BearerTokenProvider{Validator: validator}, logger)
}

// NewAPIKeyMiddleware creates a middleware that accepts the given API keys from
// header, or from the query parameter when the header is absent.
func NewAPIKeyMiddleware(validKeys map[string]bool, header, query string, logger *zap.Logger) Middleware {
	return Authentication(&APIKeyProvider{ValidKeys: validKeys, Header: header, Query: query}, logger)
}
