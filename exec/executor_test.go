package exec

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethanadams/awscore/credential"
	"github.com/ethanadams/awscore/request"
	"github.com/ethanadams/awscore/response"
	"github.com/ethanadams/awscore/streaming"
	"github.com/ethanadams/awscore/transport"
)

// fakeTransport returns one canned status per call, in order, never an
// error, and counts how many times RoundTrip was invoked.
type fakeTransport struct {
	statuses []int
	calls    atomic.Int32
}

func (f *fakeTransport) RoundTrip(ctx context.Context, req transport.Request) (transport.Response, error) {
	i := int(f.calls.Add(1)) - 1
	status := f.statuses[i]
	return transport.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func testBuild() (*request.AWSRequest, error) {
	u, _ := url.Parse("https://example.amazonaws.com/")
	return &request.AWSRequest{Method: "GET", URL: u, Header: http.Header{}}, nil
}

func testDecode(resp transport.Response) (struct{}, error) {
	return struct{}{}, response.Decode(resp, response.ProtocolRestJSON, nil)
}

func newTestExecutor(maxAttempts int, ft *fakeTransport) *Executor {
	creds := credential.Static(credential.Credential{AccessKeyID: "AKID", SecretAccessKey: "secret"})
	return New(Config{
		ServiceID:   "test",
		SigningName: "svc",
		Region:      "us-east-1",
		Protocol:    response.ProtocolRestJSON,
		Timeout:     time.Second,
		MaxAttempts: maxAttempts,
	}, creds, ft, nil)
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	ft := &fakeTransport{statuses: []int{200}}
	ex := newTestExecutor(3, ft)

	_, err := Execute(context.Background(), ex, "GetThing", testBuild, testDecode)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ft.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", ft.calls.Load())
	}
}

func TestExecute_NonRetryableStatusStopsAfterOneAttempt(t *testing.T) {
	ft := &fakeTransport{statuses: []int{400, 400, 400}}
	ex := newTestExecutor(3, ft)

	_, err := Execute(context.Background(), ex, "GetThing", testBuild, testDecode)
	if err == nil {
		t.Fatal("expected error for a 400 response, got nil")
	}
	if ft.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (400 is not retryable)", ft.calls.Load())
	}
}

func TestExecute_RetriesTransientStatusUpToMaxAttempts(t *testing.T) {
	ft := &fakeTransport{statuses: []int{503, 503}}
	ex := newTestExecutor(2, ft)

	_, err := Execute(context.Background(), ex, "GetThing", testBuild, testDecode)
	if err == nil {
		t.Fatal("expected error after exhausting retries, got nil")
	}
	if ft.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (MaxAttempts)", ft.calls.Load())
	}
}

func TestExecute_RecoversAfterTransientRetry(t *testing.T) {
	ft := &fakeTransport{statuses: []int{503, 200}}
	ex := newTestExecutor(3, ft)

	_, err := Execute(context.Background(), ex, "GetThing", testBuild, testDecode)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ft.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", ft.calls.Load())
	}
}

func TestExecute_ShutdownRejectsNewCalls(t *testing.T) {
	ft := &fakeTransport{statuses: []int{200}}
	ex := newTestExecutor(3, ft)
	ex.Shutdown()

	_, err := Execute(context.Background(), ex, "GetThing", testBuild, testDecode)
	if err == nil {
		t.Fatal("expected error from a shut-down executor, got nil")
	}
	if ft.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0 (shutdown should prevent dispatch entirely)", ft.calls.Load())
	}
}

func TestExecute_BuildErrorIsNotRetried(t *testing.T) {
	ft := &fakeTransport{statuses: []int{200, 200, 200}}
	ex := newTestExecutor(3, ft)

	boom := io.ErrUnexpectedEOF
	build := func() (*request.AWSRequest, error) { return nil, boom }

	_, err := Execute(context.Background(), ex, "GetThing", build, testDecode)
	if err == nil {
		t.Fatal("expected build error to propagate")
	}
	if ft.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0 (transport should never be reached)", ft.calls.Load())
	}
}

// capturingTransport records the dispatched request's body (fully drained,
// since the framed aws-chunked reader is pull-based) and always succeeds.
type capturingTransport struct {
	gotBody          []byte
	gotContentLength string
}

func (c *capturingTransport) RoundTrip(ctx context.Context, req transport.Request) (transport.Response, error) {
	c.gotContentLength = req.Header.Get("Content-Length")
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return transport.Response{}, err
		}
		c.gotBody = b
	}
	return transport.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func streamingTestBuild(payload []byte) BuildFunc {
	return func() (*request.AWSRequest, error) {
		u, _ := url.Parse("https://examplebucket.s3.amazonaws.com/chunkObject.txt")
		req := &request.AWSRequest{Method: "PUT", URL: u, Header: http.Header{}}
		req.StreamBody = streaming.NewByteChunkReader(payload)
		return req, nil
	}
}

// TestExecute_StreamingBodyIsChunkedSignedAndDispatched is the regression
// test for the executor dropping a streaming upload's payload entirely:
// it asserts the transport actually receives the full aws-chunked framed
// body (not an empty one) and that it ends with a terminal frame.
func TestExecute_StreamingBodyIsChunkedSignedAndDispatched(t *testing.T) {
	ct := &capturingTransport{}
	creds := credential.Static(credential.Credential{AccessKeyID: "AKID", SecretAccessKey: "secret"})
	ex := New(Config{
		ServiceID:       "s3",
		SigningName:     "s3",
		Region:          "us-east-1",
		Protocol:        response.ProtocolRestXML,
		Timeout:         time.Second,
		MaxAttempts:     1,
		DoubleURIEncode: false,
	}, creds, ct, nil)

	payload := bytes.Repeat([]byte("x"), 150000)
	_, err := Execute(context.Background(), ex, "PutObject", streamingTestBuild(payload), testDecode)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(ct.gotBody) == 0 {
		t.Fatal("transport received an empty body for a streaming upload")
	}
	if !strings.Contains(string(ct.gotBody), "chunk-signature=") {
		t.Error("dispatched body is missing aws-chunked frame headers")
	}
	if !strings.HasSuffix(string(ct.gotBody), "\r\n\r\n") || !bytes.Contains(ct.gotBody, []byte("0;chunk-signature=")) {
		t.Error("dispatched body is missing the terminal zero-length chunk")
	}
	if ct.gotContentLength == "" {
		t.Error("Content-Length header was not set for a sized streaming upload")
	}
}

// TestExecute_S3DisableChunkedUploadsDrainsAndSignsBuffered covers the
// fallback configuration: the streaming body is buffered in full and
// dispatched as a plain, unframed request instead of aws-chunked.
func TestExecute_S3DisableChunkedUploadsDrainsAndSignsBuffered(t *testing.T) {
	ct := &capturingTransport{}
	creds := credential.Static(credential.Credential{AccessKeyID: "AKID", SecretAccessKey: "secret"})
	ex := New(Config{
		ServiceID:               "s3",
		SigningName:             "s3",
		Region:                  "us-east-1",
		Protocol:                response.ProtocolRestXML,
		Timeout:                 time.Second,
		MaxAttempts:             1,
		DoubleURIEncode:         false,
		S3DisableChunkedUploads: true,
	}, creds, ct, nil)

	payload := []byte("small upload body")
	_, err := Execute(context.Background(), ex, "PutObject", streamingTestBuild(payload), testDecode)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !bytes.Equal(ct.gotBody, payload) {
		t.Errorf("dispatched body = %q, want unframed %q", ct.gotBody, payload)
	}
	if strings.Contains(string(ct.gotBody), "chunk-signature=") {
		t.Error("S3DisableChunkedUploads should not produce aws-chunked framing")
	}
}

func TestExecute_RespectsCancelledContext(t *testing.T) {
	ft := &fakeTransport{statuses: []int{200}}
	ex := newTestExecutor(3, ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, ex, "GetThing", testBuild, testDecode)
	if err == nil {
		t.Fatal("expected error for an already-cancelled context")
	}
	if ft.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0 (context was already cancelled)", ft.calls.Load())
	}
}
