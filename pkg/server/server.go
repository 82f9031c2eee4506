// Package server is the composition root of a suika application. It owns the
// middleware chain, usually ending in a root router, and runs one pipeline per
// accepted request.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/suika-web/suika/pkg/common"
	"github.com/suika-web/suika/pkg/middleware"
	"go.uber.org/zap"
)

var (
	// ErrFrozen is returned when middleware or modules are registered after
	// the server started handling requests.
	ErrFrozen = errors.New("server: registration after first request")

	// ErrNilMiddleware is returned by Use for a nil middleware.
	ErrNilMiddleware = errors.New("server: nil middleware")

	// ErrDuplicateModule is returned by UseModule when the name is taken.
	ErrDuplicateModule = errors.New("server: module already registered")
)

// DefaultAddr is used by Run when neither the argument nor Config.Addr is set.
const DefaultAddr = ":8080"

// Config defines the configuration of a Server.
type Config struct {
	Addr              string        // Listen address
	Logger            *zap.Logger   // Logger for pipeline failures and lifecycle events
	ReadTimeout       time.Duration // http.Server read timeout
	WriteTimeout      time.Duration // http.Server write timeout
	IdleTimeout       time.Duration // http.Server idle timeout
	EnableCompression bool          // gzip/deflate responses when the client accepts them
	EnableTraceID     bool          // Include the request trace ID in log entries when present
}

// Server runs the middleware chain for every request.
//
// Middleware and modules are registered during setup. The first request
// freezes both, along with every middleware implementing common.Freezer, so
// request handling reads them without locking.
type Server struct {
	config  Config
	logger  *zap.Logger
	chain   common.MiddlewareChain
	modules map[string]any

	mu         sync.Mutex
	frozen     bool
	freezeOnce sync.Once
	httpServer *http.Server

	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}
	return &Server{
		config:  config,
		logger:  logger,
		modules: make(map[string]any),
	}
}

// Use appends middleware to the chain. Middleware run in registration order.
func (s *Server) Use(mws ...common.Middleware) error {
	for _, mw := range mws {
		if mw == nil {
			return ErrNilMiddleware
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrFrozen
	}
	s.chain = s.chain.Append(mws...)
	return nil
}

// UseFunc appends a function middleware to the chain.
func (s *Server) UseFunc(fn common.MiddlewareFunc) error {
	if fn == nil {
		return ErrNilMiddleware
	}
	return s.Use(fn)
}

// UseModule registers a value shared by all requests under name. Handlers
// read it with Request.Module. The value must be safe for concurrent use.
func (s *Server) UseModule(name string, module any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrFrozen
	}
	if _, ok := s.modules[name]; ok {
		return ErrDuplicateModule
	}
	s.modules[name] = module
	return nil
}

// Freeze ends the setup phase. It is called on the first request.
func (s *Server) Freeze() {
	s.freezeOnce.Do(func() {
		s.mu.Lock()
		s.frozen = true
		s.mu.Unlock()
		for _, mw := range s.chain {
			if f, ok := mw.(common.Freezer); ok {
				f.Freeze()
			}
		}
	})
}

// ServeHTTP runs the pipeline for one request and sends the resulting response.
// An error that escapes the chain is logged and becomes a 500.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.wg.Add(1)
	if s.shutdown.Load() {
		s.wg.Done()
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	s.Freeze()

	req := common.NewRequest(r, s.modules)
	res := common.NewResponse()

	if err := s.chain.Run(req, res); err != nil {
		fields := []zap.Field{
			zap.Error(err),
			zap.String("method", req.Method()),
			zap.String("path", req.Path()),
		}
		if traceID := middleware.TraceID(req); s.config.EnableTraceID && traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}
		s.logger.Error("Pipeline error", fields...)
		res.Error(err)
	}

	if _, err := res.Send(w); err != nil {
		s.logger.Debug("Failed to write response",
			zap.Error(err),
			zap.String("method", req.Method()),
			zap.String("path", req.Path()),
		)
	}
}

// Handler returns the http.Handler to mount on a listener: the server itself,
// wrapped with compression when enabled.
func (s *Server) Handler() http.Handler {
	if s.config.EnableCompression {
		return handlers.CompressHandler(s)
	}
	return s
}

// Run listens on addr and serves requests until Shutdown is called.
// An empty addr falls back to Config.Addr, then DefaultAddr.
func (s *Server) Run(addr string) error {
	if addr == "" {
		addr = s.config.Addr
	}
	if addr == "" {
		addr = DefaultAddr
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown is called.
// It returns nil after a graceful shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.Freeze()

	hs := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     zap.NewStdLog(s.logger),
	}
	s.mu.Lock()
	s.httpServer = hs
	s.mu.Unlock()

	s.logger.Info("Server listening", zap.String("addr", l.Addr().String()))
	if err := hs.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)

	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()
	if hs != nil {
		if err := hs.Shutdown(ctx); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
