package streaming

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ethanadams/awscore/credential"
	"github.com/ethanadams/awscore/request"
	"github.com/ethanadams/awscore/signing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

// seedSigningContext signs a PUT request's headers exactly as
// exec.attemptGeneric does before handing off to NewChunkedSigningReader.
func seedSigningContext(t *testing.T) (signing.ChunkSigningContext, *request.AWSRequest) {
	t.Helper()
	s := signing.New()
	req := &request.AWSRequest{
		Method: "PUT",
		URL:    mustURL(t, "https://examplebucket.s3.amazonaws.com/chunkObject.txt"),
		Header: http.Header{},
	}
	cred := credential.Credential{AccessKeyID: "AKID", SecretAccessKey: "secret"}
	ctx, err := s.StartSigningChunks(context.Background(), req, cred, "s3", "us-east-1", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("StartSigningChunks: %v", err)
	}
	return ctx, req
}

func TestByteChunkReader_YieldsWholeDataAcrossCallsThenEmpty(t *testing.T) {
	data := []byte(strings.Repeat("x", 10))
	r := NewByteChunkReader(data)
	if got := r.Size(); got != 10 {
		t.Fatalf("Size() = %d, want 10", got)
	}

	chunk1, last1, err := r.Next(context.Background(), 4)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(chunk1) != "xxxx" || last1 {
		t.Fatalf("first Next = (%q, %v), want (\"xxxx\", false)", chunk1, last1)
	}

	chunk2, last2, _ := r.Next(context.Background(), 4)
	if string(chunk2) != "xxxx" || last2 {
		t.Fatalf("second Next = (%q, %v), want (\"xxxx\", false)", chunk2, last2)
	}

	chunk3, last3, _ := r.Next(context.Background(), 4)
	if string(chunk3) != "xx" || !last3 {
		t.Fatalf("third Next = (%q, %v), want (\"xx\", true)", chunk3, last3)
	}

	chunk4, last4, _ := r.Next(context.Background(), 4)
	if len(chunk4) != 0 || !last4 {
		t.Fatalf("fourth Next = (%q, %v), want (\"\", true)", chunk4, last4)
	}
}

func TestByteChunkReader_HonorsCancelledContext(t *testing.T) {
	r := NewByteChunkReader([]byte("data"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.Next(ctx, 4); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// TestChunkedSigningReader_EndToEnd drives the same reader exec.attemptGeneric
// hands to the transport for a chunked upload, and checks the drained bytes
// exactly match an independent chunk-by-chunk SignChunk loop over the same
// payload and seed context — the production path and the hand-rolled loop
// must produce an identical wire body.
func TestChunkedSigningReader_EndToEnd(t *testing.T) {
	const payloadSize = 150000
	const chunkSize = 64 * 1024

	payload := make([]byte, payloadSize)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	seed, _ := seedSigningContext(t)
	cr := NewByteChunkReader(append([]byte(nil), payload...))
	reader := NewChunkedSigningReader(context.Background(), cr, seed, chunkSize)

	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	var want bytes.Buffer
	ctx := seed
	remaining := payload
	for len(remaining) > 0 {
		n := chunkSize
		if n > len(remaining) {
			n = len(remaining)
		}
		frame, next := ctx.SignChunk(remaining[:n])
		want.Write(frame)
		ctx = next
		remaining = remaining[n:]
	}
	termFrame, _ := ctx.SignChunk(nil)
	want.Write(termFrame)

	if !bytes.Equal(got, want.Bytes()) {
		t.Fatalf("drained %d bytes, want %d bytes matching independent SignChunk loop", len(got), want.Len())
	}
	if !strings.HasSuffix(string(got), "0;chunk-signature="+trailingSignature(want.Bytes())+"\r\n\r\n") {
		t.Error("drained body missing expected terminal frame")
	}
}

// TestChunkedSigningReader_MatchesFramedContentLength confirms the byte
// count a real transport would send for a sized stream equals what the
// executor precomputes via signing.FramedContentLength before dispatch.
func TestChunkedSigningReader_MatchesFramedContentLength(t *testing.T) {
	const payloadSize = 200 * 1024
	const chunkSize = 64 * 1024

	predicted := signing.FramedContentLength(payloadSize, chunkSize)

	seed, _ := seedSigningContext(t)
	cr := NewByteChunkReader(make([]byte, payloadSize))
	reader := NewChunkedSigningReader(context.Background(), cr, seed, chunkSize)

	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if int64(len(got)) != predicted {
		t.Errorf("drained %d bytes, FramedContentLength predicted %d", len(got), predicted)
	}
}

// TestChunkedSigningReader_SmallReadsYieldSameBytes checks that reading
// through Read in small, irregular increments (as net/http's transport
// does) returns the same bytes as one large io.ReadAll, proving the
// internal buffer bookkeeping in fillNext/Read doesn't drop or duplicate
// bytes across partial reads.
func TestChunkedSigningReader_SmallReadsYieldSameBytes(t *testing.T) {
	const payloadSize = 5000
	payload := make([]byte, payloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	seed, _ := seedSigningContext(t)
	full, err := io.ReadAll(NewChunkedSigningReader(context.Background(), NewByteChunkReader(append([]byte(nil), payload...)), seed, 1024))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	seed2, _ := seedSigningContext(t)
	reader := NewChunkedSigningReader(context.Background(), NewByteChunkReader(append([]byte(nil), payload...)), seed2, 1024)
	var piecemeal bytes.Buffer
	buf := make([]byte, 7) // deliberately not aligned to any frame/chunk boundary
	for {
		n, err := reader.Read(buf)
		piecemeal.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	if !bytes.Equal(full, piecemeal.Bytes()) {
		t.Fatalf("small-read drain (%d bytes) != full ReadAll drain (%d bytes)", piecemeal.Len(), len(full))
	}
}

func trailingSignature(framed []byte) string {
	s := string(framed)
	idx := strings.LastIndex(s, "0;chunk-signature=")
	if idx < 0 {
		return ""
	}
	rest := s[idx+len("0;chunk-signature="):]
	return strings.TrimSuffix(rest, "\r\n\r\n")
}
