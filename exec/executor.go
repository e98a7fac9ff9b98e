// Package exec implements the request lifecycle: acquire credentials,
// build the request, run it through middleware, sign it, dispatch it,
// validate/decode the response, and retry with backoff on transient
// failures — all under the caller's context for cancellation.
package exec

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ethanadams/awscore/awserr"
	"github.com/ethanadams/awscore/credential"
	"github.com/ethanadams/awscore/internal/idgen"
	"github.com/ethanadams/awscore/internal/logging"
	"github.com/ethanadams/awscore/metrics"
	"github.com/ethanadams/awscore/middleware"
	"github.com/ethanadams/awscore/request"
	"github.com/ethanadams/awscore/response"
	"github.com/ethanadams/awscore/signing"
	"github.com/ethanadams/awscore/streaming"
	"github.com/ethanadams/awscore/transport"
)

// Config is the subset of service configuration the executor needs to
// build, sign, and classify requests for one service.
type Config struct {
	ServiceID       string
	SigningName     string
	Region          string
	Protocol        response.Protocol
	Timeout         time.Duration
	MaxAttempts     int // 0 defaults to 3
	Middlewares     []middleware.Middleware
	Logger          logging.Logger
	DoubleURIEncode bool // false for S3-shaped services

	// S3DisableChunkedUploads forces a streaming body to be drained into
	// memory and signed as a single UNSIGNED-PAYLOAD request instead of
	// framed aws-chunked signing, even when req.StreamBody is set.
	S3DisableChunkedUploads bool
	// ChunkSize overrides streaming.DefaultChunkSize for aws-chunked
	// uploads; 0 uses the default.
	ChunkSize int
}

// Executor runs operations against one service. An Executor is safe for
// concurrent use by multiple goroutines; it holds no per-request mutable
// state beyond what is passed into Execute.
type Executor struct {
	cfg       Config
	creds     credential.Provider
	transport transport.Transport
	signer    *signing.Signer
	metrics   *metrics.Collector
	ids       *idgen.Generator
	shutdown  shutdownFlag
}

// New constructs an Executor. mc may be nil to disable metrics.
func New(cfg Config, creds credential.Provider, t transport.Transport, mc *metrics.Collector) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop
	}
	return &Executor{
		cfg:       cfg,
		creds:     creds,
		transport: t,
		signer:    signing.New(signing.WithDoubleURIEncode(cfg.DoubleURIEncode)),
		metrics:   mc,
		ids:       idgen.New(),
	}
}

// Shutdown prevents any further Execute calls from starting a new
// attempt; in-flight attempts already dispatched are left to finish (or
// to observe ctx cancellation on their own).
func (e *Executor) Shutdown() { e.shutdown.set() }

// BuildFunc constructs the not-yet-signed AWSRequest for one attempt.
// Called once per attempt rather than once per Execute call so that
// per-attempt middleware (request id, retry count) sees a fresh request.
type BuildFunc func() (*request.AWSRequest, error)

// DecodeFunc turns a successful transport.Response into a typed result.
type DecodeFunc[Out any] func(transport.Response) (Out, error)

// Execute runs one operation end to end: build, middleware, sign,
// dispatch, decode, with retry on transient failure up to
// cfg.MaxAttempts.
func Execute[Out any](ctx context.Context, e *Executor, operation string, build BuildFunc, decode DecodeFunc[Out]) (Out, error) {
	var zero Out
	if e.shutdown.isSet() {
		return zero, awserr.AlreadyShutdown.New("executor for %s is shut down", e.cfg.ServiceID)
	}

	start := time.Now()
	reqID := e.ids.Next()
	logger := e.cfg.Logger.With(
		logging.F("request_id", reqID),
		logging.F("service", e.cfg.ServiceID),
		logging.F("operation", operation),
	)

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 100 * time.Millisecond
	boff.MaxInterval = 5 * time.Second

	var lastErr error
	errClass := ""
	attempts := 0

attemptLoop:
	for attempts = 1; attempts <= e.cfg.MaxAttempts; attempts++ {
		if err := ctx.Err(); err != nil {
			lastErr = awserr.Cancelled.Wrap(err)
			break
		}

		out, retryAfter, err := attemptGeneric(ctx, e, reqID, build, decode)
		if err == nil {
			e.record(operation, start, attempts, "")
			return out, nil
		}
		lastErr = err

		class := awserr.Classify(err)
		errClass = classString(class)
		if class != awserr.ClassThrottle && class != awserr.ClassTransient {
			break
		}
		if attempts == e.cfg.MaxAttempts {
			break
		}

		delay := boff.NextBackOff()
		if retryAfter > 0 {
			delay = retryAfter
		}
		logger.Warn("attempt %d/%d failed, retrying in %s: %v", attempts, e.cfg.MaxAttempts, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			lastErr = awserr.Cancelled.Wrap(ctx.Err())
			break attemptLoop
		}
	}

	e.record(operation, start, attempts, errClass)
	logger.Error("operation failed after %d attempt(s): %v", attempts, lastErr)
	return zero, lastErr
}

// attemptGeneric runs one build/middleware/sign/dispatch/decode cycle.
func attemptGeneric[Out any](ctx context.Context, e *Executor, reqID string, build BuildFunc, decode DecodeFunc[Out]) (Out, time.Duration, error) {
	var zero Out

	cred, err := e.creds.Retrieve(ctx)
	if err != nil {
		return zero, 0, awserr.CredentialUnavailable.Wrap(err)
	}

	req, err := build()
	if err != nil {
		return zero, 0, err
	}
	req.Header.Set("X-Amzn-RequestId", reqID)

	chain := middleware.NewChain(e.cfg.Middlewares, nil)
	req, err = chain.Run(ctx, req)
	if err != nil {
		return zero, 0, err
	}

	var cr streaming.ChunkReader
	if req.StreamBody != nil {
		var ok bool
		cr, ok = req.StreamBody.(streaming.ChunkReader)
		if !ok {
			return zero, 0, awserr.Unencodable.New("stream body for %T does not implement streaming.ChunkReader", req.StreamBody)
		}
	}

	var body io.Reader
	switch {
	case cr != nil && !e.cfg.S3DisableChunkedUploads:
		chunkSize := e.cfg.ChunkSize
		if chunkSize <= 0 {
			chunkSize = streaming.DefaultChunkSize
		}
		if size := cr.Size(); size >= 0 {
			req.ContentLength = signing.FramedContentLength(size, chunkSize)
			req.Header.Set("Content-Length", strconv.FormatInt(req.ContentLength, 10))
		}

		signCtx, err := e.signer.StartSigningChunks(ctx, req, cred, e.cfg.SigningName, e.cfg.Region, time.Now())
		if err != nil {
			return zero, 0, awserr.SigningFailure.Wrap(err)
		}
		body = streaming.NewChunkedSigningReader(ctx, cr, signCtx, chunkSize)

	case cr != nil:
		// S3DisableChunkedUploads: drain the stream into memory up front
		// and sign it as a single UNSIGNED-PAYLOAD request instead.
		drained, err := drainChunkReader(ctx, cr)
		if err != nil {
			return zero, 0, awserr.TransportError.Wrap(err)
		}
		req.Body = drained
		req.ContentLength = int64(len(drained))
		req.Header.Set("Content-Length", strconv.Itoa(len(drained)))
		if err := e.signer.SignHeaders(ctx, req, cred, e.cfg.SigningName, e.cfg.Region, signing.UnsignedPayloadDigest(), time.Now()); err != nil {
			return zero, 0, awserr.SigningFailure.Wrap(err)
		}
		body = bytes.NewReader(drained)

	default:
		if err := e.signer.SignHeaders(ctx, req, cred, e.cfg.SigningName, e.cfg.Region, signing.ByteBuffer(req.Body), time.Now()); err != nil {
			return zero, 0, awserr.SigningFailure.Wrap(err)
		}
		if req.Body != nil {
			body = bytes.NewReader(req.Body)
		}
	}

	tReq := transport.Request{
		Method:  req.Method,
		URL:     req.URL.String(),
		Header:  req.Header,
		Timeout: e.cfg.Timeout,
		Body:    body,
	}

	resp, err := e.transport.RoundTrip(ctx, tReq)
	if err != nil {
		return zero, 0, awserr.TransportError.Wrap(err)
	}

	var retryAfter time.Duration
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, perr := strconv.Atoi(v); perr == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
	}

	out, err := decode(resp)
	if err != nil {
		return zero, retryAfter, err
	}
	return out, retryAfter, nil
}

// drainChunkReader pulls cr to completion and concatenates its chunks,
// for the S3DisableChunkedUploads fallback where the whole payload must
// be buffered and signed as one block instead of framed per chunk.
func drainChunkReader(ctx context.Context, cr streaming.ChunkReader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, last, err := cr.Next(ctx, streaming.DefaultChunkSize)
		if err != nil {
			return nil, err
		}
		buf.Write(chunk)
		if last {
			return buf.Bytes(), nil
		}
	}
}

func (e *Executor) record(operation string, start time.Time, attempts int, errClass string) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordRequest(e.cfg.ServiceID, operation, time.Since(start), attempts, errClass)
}

func classString(c awserr.Classification) string {
	switch c {
	case awserr.ClassThrottle:
		return "throttle"
	case awserr.ClassTransient:
		return "transient"
	case awserr.ClassClient:
		return "client"
	case awserr.ClassNotFound:
		return "not_found"
	case awserr.ClassFatal:
		return "fatal"
	default:
		return ""
	}
}
