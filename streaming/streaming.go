// Package streaming adapts a caller-owned byte source into the aws-chunked
// wire framing used for S3-style streaming uploads, with each chunk
// signed against the previous chunk's signature.
package streaming

import (
	"context"
	"io"

	"github.com/ethanadams/awscore/signing"
)

// DefaultChunkSize matches the 64 KiB chunk size used by aws-sdk-go-v2's
// own aws-chunked encoder.
const DefaultChunkSize = 64 * 1024

// ChunkReader is a single-owner byte source: once Next is called, the
// bytes it returned belong to the stream adapter until it is done with
// them (copied into the frame), and Next must not be called again
// concurrently. It is not a restartable stream — a failed Next leaves
// the ChunkReader (and therefore the whole upload attempt) unusable; the
// caller must rebuild it before retrying.
type ChunkReader interface {
	// Size reports total payload size, or -1 if unknown.
	Size() int64
	// Next returns the next chunk of up to chunkSize bytes, and whether
	// this is the final chunk of the stream.
	Next(ctx context.Context, chunkSize int) (chunk []byte, last bool, err error)
}

// ByteChunkReader adapts a fixed []byte into a ChunkReader, for callers
// that already have the full payload in memory but still want aws-chunked
// framing (e.g. to avoid buffering the signature computation over the
// whole body at once).
type ByteChunkReader struct {
	data []byte
	pos  int
}

func NewByteChunkReader(data []byte) *ByteChunkReader {
	return &ByteChunkReader{data: data}
}

func (r *ByteChunkReader) Size() int64 { return int64(len(r.data)) }

func (r *ByteChunkReader) Next(ctx context.Context, chunkSize int) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if r.pos >= len(r.data) {
		return nil, true, nil
	}
	end := r.pos + chunkSize
	if end > len(r.data) {
		end = len(r.data)
	}
	chunk := r.data[r.pos:end]
	r.pos = end
	return chunk, r.pos >= len(r.data), nil
}

// ChunkedSigningReader composes a ChunkReader with a ChunkSigningContext
// to produce the framed, per-chunk-signed io.Reader the transport reads
// from. It pulls and signs one chunk at a time (never the whole body at
// once), matching the streaming executor's memory-bounded contract.
type ChunkedSigningReader struct {
	cr        ChunkReader
	signCtx   ChunkSigningContext
	chunkSize int
	pullCtx   context.Context

	buf  []byte
	done bool
	fin  bool
}

// ChunkSigningContext is an alias of signing.ChunkSigningContext, so
// callers of this package can name it here; package signing does not
// import package streaming.
type ChunkSigningContext = signing.ChunkSigningContext

// NewChunkedSigningReader returns an io.Reader that yields the fully
// framed aws-chunked body: each Read drains the currently buffered
// frame, pulling and signing the next chunk from cr once the buffer is
// exhausted, until the zero-length terminating frame has been emitted.
func NewChunkedSigningReader(ctx context.Context, cr ChunkReader, seed ChunkSigningContext, chunkSize int) *ChunkedSigningReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ChunkedSigningReader{cr: cr, signCtx: seed, chunkSize: chunkSize, pullCtx: ctx}
}

func (r *ChunkedSigningReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.fin {
			return 0, io.EOF
		}
		if err := r.fillNext(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *ChunkedSigningReader) fillNext() error {
	if r.done {
		frame, _ := r.signCtx.SignChunk(nil)
		r.buf = frame
		r.fin = true
		return nil
	}
	chunk, last, err := r.cr.Next(r.pullCtx, r.chunkSize)
	if err != nil {
		return err
	}
	if len(chunk) == 0 && last {
		// The source ended without a final data chunk: emit only the
		// terminating frame, not an empty data frame ahead of it.
		r.done = true
		return r.fillNext()
	}
	frame, next := r.signCtx.SignChunk(chunk)
	r.signCtx = next
	r.buf = frame
	r.done = last
	return nil
}
