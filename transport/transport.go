// Package transport defines the minimal HTTP contract the executor
// dispatches through. Deliberately excludes connection pooling, TLS
// configuration, and proxy handling — those are the embedder's concern;
// Default exists only so the module is usable out of the box.
package transport

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Request is the wire-ready form an AWSRequest is rendered into before
// dispatch.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    io.Reader
	Timeout time.Duration
}

// Response is the wire form returned by a Transport, before C5 decodes
// it into a typed output shape or error.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Transport performs one HTTP round trip. Implementations must respect
// ctx cancellation.
type Transport interface {
	RoundTrip(ctx context.Context, req Request) (Response, error)
}

// Default wraps a *http.Client (http.DefaultClient if client is nil).
func Default(client *http.Client) Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpTransport{client: client}
}

type httpTransport struct{ client *http.Client }

func (t *httpTransport) RoundTrip(ctx context.Context, req Request) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return Response{}, err
	}
	httpReq.Header = req.Header

	client := t.client
	if req.Timeout > 0 {
		c := *client
		c.Timeout = req.Timeout
		client = &c
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}
