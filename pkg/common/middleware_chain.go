package common

import (
	"errors"
	"sync/atomic"
)

// ErrNextCalled is returned when Proceed is invoked more than once on the same continuation.
var ErrNextCalled = errors.New("next: continuation already invoked")

// MiddlewareChain represents an ordered chain of middleware
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	return middlewares
}

// Append adds middleware to the end of the chain
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	return append(c, middlewares...)
}

// Prepend adds middleware to the beginning of the chain
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// Len returns the number of stages in the chain
func (c MiddlewareChain) Len() int {
	return len(c)
}

// Start returns a fresh continuation positioned at the first stage.
// Each request gets its own continuation; the chain itself is never mutated.
func (c MiddlewareChain) Start() *Next {
	return &Next{chain: c}
}

// Run executes the chain from the first stage.
func (c MiddlewareChain) Run(req *Request, res *Response) error {
	return c.Start().Proceed(req, res)
}

// Next is a cursor into a MiddlewareChain. It represents "run the remaining
// pipeline stages" and is handed to every middleware and route handler.
type Next struct {
	chain MiddlewareChain
	index int
	used  atomic.Bool
}

// Proceed runs the stage at the cursor with a continuation advanced by one.
// At the end of the chain it is a no-op that returns nil.
// A continuation can be used once; later calls return ErrNextCalled without
// running anything.
func (n *Next) Proceed(req *Request, res *Response) error {
	if n == nil {
		return nil
	}
	if !n.used.CompareAndSwap(false, true) {
		return ErrNextCalled
	}
	if n.index >= len(n.chain) {
		return nil
	}
	return n.chain[n.index].Handle(req, res, &Next{chain: n.chain, index: n.index + 1})
}

// Position returns the index of the stage Proceed will run.
func (n *Next) Position() int {
	if n == nil {
		return 0
	}
	return n.index
}

// Remaining returns the number of stages left, including the one at the cursor.
func (n *Next) Remaining() int {
	if n == nil || n.index >= len(n.chain) {
		return 0
	}
	return len(n.chain) - n.index
}

// Used reports whether Proceed has already been called.
func (n *Next) Used() bool {
	return n != nil && n.used.Load()
}

// Terminal returns a continuation with nothing left to run.
// It is useful when invoking a Router or handler outside of a chain.
func Terminal() *Next {
	return &Next{}
}
