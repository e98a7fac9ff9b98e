// Package request builds a protocol-agnostic AWSRequest from an
// OperationDescriptor and a generated input shape's member bindings.
package request

import (
	"net/http"
	"net/url"
)

// Payload is a pre-rendered request body supplied directly by the
// caller (e.g. an S3 PutObject body), bypassing shape encoding.
type Payload struct {
	Bytes       []byte
	ContentType string
}

// AWSRequest is the protocol-agnostic request built by this package and
// threaded through the middleware chain, signer, and transport. Binding
// note: Header is an http.Header map, so it keeps no member order, and
// Build renders the URL's query string sorted by key.
type AWSRequest struct {
	Method string
	URL    *url.URL
	Header http.Header

	// Body is the request body bytes. Streaming operations leave this
	// nil and populate StreamBody instead.
	Body []byte

	// StreamBody carries a streaming.ChunkReader for operations that
	// support chunked/unsigned-payload uploads. Declared as `any` here
	// to avoid an import cycle with package streaming, which itself
	// depends on package signing; callers type-assert it back to
	// streaming.ChunkReader.
	StreamBody any

	// ContentLength is the declared length of Body, or the known total
	// size of StreamBody; -1 means unknown (chunked transfer only).
	ContentLength int64
}

// Clone returns a deep-enough copy of r for middleware that wants to
// compare before/after state, or for retry attempts that must not share
// mutable header state across attempts.
func (r *AWSRequest) Clone() *AWSRequest {
	cp := *r
	u := *r.URL
	cp.URL = &u
	cp.Header = r.Header.Clone()
	if r.Body != nil {
		cp.Body = append([]byte(nil), r.Body...)
	}
	return &cp
}
