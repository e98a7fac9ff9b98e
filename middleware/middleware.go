// Package middleware implements the pre-signing request transformation
// chain: a service can register middleware that runs on every operation
// (e.g. adding a User-Agent header), and per-call middleware can be
// layered on top, both running before the request is signed.
package middleware

import (
	"context"

	"github.com/ethanadams/awscore/request"
)

// Middleware transforms a built, not-yet-signed AWSRequest. Handlers run
// in registration order: service-level middleware first, then
// client/call-level middleware, matching the precedence a generated
// client and its caller expect (the caller gets the last word).
type Middleware interface {
	ID() string
	HandleBuild(ctx context.Context, req *request.AWSRequest) (*request.AWSRequest, error)
}

// Func adapts a plain function to the Middleware interface.
type Func struct {
	Name string
	Fn   func(ctx context.Context, req *request.AWSRequest) (*request.AWSRequest, error)
}

func (f Func) ID() string { return f.Name }
func (f Func) HandleBuild(ctx context.Context, req *request.AWSRequest) (*request.AWSRequest, error) {
	return f.Fn(ctx, req)
}

// Chain runs an ordered sequence of Middleware.
type Chain struct {
	steps []Middleware
}

// NewChain builds a Chain from service-level middleware followed by
// call-level middleware, in that order.
func NewChain(service, call []Middleware) *Chain {
	steps := make([]Middleware, 0, len(service)+len(call))
	steps = append(steps, service...)
	steps = append(steps, call...)
	return &Chain{steps: steps}
}

// Run applies each middleware in order, threading the (possibly
// replaced) request through the chain and stopping at the first error.
func (c *Chain) Run(ctx context.Context, req *request.AWSRequest) (*request.AWSRequest, error) {
	var err error
	for _, mw := range c.steps {
		req, err = mw.HandleBuild(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return req, nil
}
