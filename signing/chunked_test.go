package signing

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethanadams/awscore/credential"
	"github.com/ethanadams/awscore/request"
)

func seedContext(t *testing.T) (ChunkSigningContext, *request.AWSRequest) {
	t.Helper()
	s := New()
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

func TestStartSigningChunks_SeedMatchesAuthorizationSignature(t *testing.T) {
	ctx, req := seedContext(t)

	auth := req.Header.Get("Authorization")
	idx := strings.LastIndex(auth, "Signature=")
	if idx < 0 {
		t.Fatal("Authorization header missing Signature=")
	}
	want := auth[idx+len("Signature="):]
	if ctx.previousSignature != want {
		t.Errorf("seed previousSignature = %q, want %q (from Authorization header)", ctx.previousSignature, want)
	}
	if req.Header.Get("X-Amz-Content-Sha256") != StreamingPayload {
		t.Errorf("X-Amz-Content-Sha256 = %q, want %q", req.Header.Get("X-Amz-Content-Sha256"), StreamingPayload)
	}
}

func TestSignChunk_SignatureChainsAndAdvances(t *testing.T) {
	seed, _ := seedContext(t)

	frame1, next1 := seed.SignChunk([]byte("first chunk payload"))
	if next1.previousSignature == seed.previousSignature {
		t.Error("chunk signature did not advance past the seed signature")
	}
	if !strings.Contains(string(frame1), "chunk-signature=") {
		t.Errorf("frame missing chunk-signature: %q", frame1)
	}

	frame2, next2 := next1.SignChunk([]byte("second chunk payload"))
	if next2.previousSignature == next1.previousSignature {
		t.Error("second chunk signature did not advance")
	}
	if string(frame1) == string(frame2) {
		t.Error("two different payloads produced identical frames")
	}
}

func TestSignChunk_SamePayloadSameSignatureGivenSamePrevious(t *testing.T) {
	seed, _ := seedContext(t)
	frameA, nextA := seed.SignChunk([]byte("identical"))
	frameB, nextB := seed.SignChunk([]byte("identical"))
	if string(frameA) != string(frameB) {
		t.Errorf("expected identical frames for identical (previous, payload): %q vs %q", frameA, frameB)
	}
	if nextA.previousSignature != nextB.previousSignature {
		t.Error("expected identical resulting previousSignature")
	}
}

func TestSignChunk_TerminalFrameFormat(t *testing.T) {
	seed, _ := seedContext(t)
	frame, _ := seed.SignChunk(nil)
	s := string(frame)
	if !strings.HasPrefix(s, "0;chunk-signature=") {
		t.Fatalf("terminal frame = %q, want prefix 0;chunk-signature=", s)
	}
	if !strings.HasSuffix(s, "\r\n\r\n") {
		t.Fatalf("terminal frame = %q, want suffix \\r\\n\\r\\n", s)
	}
	sig := strings.TrimSuffix(strings.TrimPrefix(s, "0;chunk-signature="), "\r\n\r\n")
	if len(sig) != 64 {
		t.Errorf("terminal chunk signature length = %d, want 64 hex chars", len(sig))
	}
}

func TestSignChunk_FrameHexLengthMatchesPayload(t *testing.T) {
	seed, _ := seedContext(t)
	payload := make([]byte, 5000)
	frame, _ := seed.SignChunk(payload)
	s := string(frame)
	semi := strings.IndexByte(s, ';')
	if semi < 0 {
		t.Fatalf("frame missing ';' separator: %q", s)
	}
	n, err := strconv.ParseInt(s[:semi], 16, 64)
	if err != nil {
		t.Fatalf("parsing hex length: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("hex length = %d, want %d", n, len(payload))
	}
}

func TestFramedContentLength_MatchesDrainedReader(t *testing.T) {
	const payloadSize = 12 * 1024 * 1024 // 12 MiB
	const chunkSize = 64 * 1024          // 64 KiB

	predicted := FramedContentLength(payloadSize, chunkSize)

	seed, _ := seedContext(t)
	data := make([]byte, payloadSize)
	for i := range data {
		data[i] = byte(i % 251)
	}

	var total int64
	remaining := data
	ctx := seed
	chunkCount := 0
	for len(remaining) > 0 {
		n := chunkSize
		if n > len(remaining) {
			n = len(remaining)
		}
		frame, next := ctx.SignChunk(remaining[:n])
		total += int64(len(frame))
		ctx = next
		remaining = remaining[n:]
		chunkCount++
	}
	frame, _ := ctx.SignChunk(nil)
	total += int64(len(frame))
	chunkCount++

	if total != predicted {
		t.Errorf("drained total = %d, FramedContentLength predicted %d", total, predicted)
	}
	if chunkCount != 193 {
		t.Errorf("chunk count = %d, want 193 (192 data + 1 terminator)", chunkCount)
	}
}

// fakeChunkReader mimics streaming.ChunkReader's pull-one-chunk contract
// over a byte slice without importing package streaming (which itself
// imports signing), avoiding an import cycle while still exercising
// ChunkSigningContext the same way a real upload would.
type fakeChunkReader struct {
	data []byte
	pos  int
}

func (r *fakeChunkReader) next(chunkSize int) (chunk []byte, last bool) {
	if r.pos >= len(r.data) {
		return nil, true
	}
	end := r.pos + chunkSize
	if end > len(r.data) {
		end = len(r.data)
	}
	chunk = r.data[r.pos:end]
	r.pos = end
	return chunk, r.pos >= len(r.data)
}

// TestSignChunk_ReaderStyleDrain exercises the same pull-one-chunk-at-a-time
// loop streaming.ChunkedSigningReader runs, as an independent check that
// draining via repeated small reads doesn't change the signature chain.
func TestSignChunk_ReaderStyleDrain(t *testing.T) {
	seed, _ := seedContext(t)
	cr := &fakeChunkReader{data: []byte(strings.Repeat("x", 150000))}

	ctx := seed
	var buf []byte
	for {
		chunk, last := cr.next(64 * 1024)
		frame, next := ctx.SignChunk(chunk)
		ctx = next
		buf = append(buf, frame...)
		if last {
			break
		}
	}
	termFrame, _ := ctx.SignChunk(nil)
	buf = append(buf, termFrame...)

	drained, err := io.ReadAll(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(drained) != len(buf) {
		t.Fatalf("drained %d bytes, want %d", len(drained), len(buf))
	}
	if !strings.Contains(string(drained), "0;chunk-signature=") {
		t.Error("drained body missing terminal frame")
	}
}
