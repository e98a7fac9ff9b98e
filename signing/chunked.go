package signing

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethanadams/awscore/credential"
	"github.com/ethanadams/awscore/request"
)

// emptyPayloadHash is sha256("") — the fixed empty-hash line in every
// chunk's string-to-sign, ahead of the chunk's own payload hash.
var emptyPayloadHash = hashHex(nil)

// ChunkSigningContext carries the state needed to sign the next chunk of
// an aws-chunked streaming upload: the previous chunk's signature (the
// seed chunk's "previous signature" is the request's own Authorization
// signature), plus the fixed scope/key material that does not change
// across chunks.
type ChunkSigningContext struct {
	signer            *Signer
	signingKey        []byte
	scope             string
	amzDate           string
	previousSignature string
}

// StartSigningChunks signs req's headers for an aws-chunked upload (the
// X-Amz-Content-Sha256 header is set to STREAMING-AWS4-HMAC-SHA256-PAYLOAD
// and Content-Length must already reflect the total framed size, including
// chunk headers and the terminating chunk) and returns the seed signing
// context: its previousSignature is the request's own signature, per the
// aws-chunked spec.
func (s *Signer) StartSigningChunks(ctx context.Context, req *request.AWSRequest, cred credential.Credential, signingName, region string, t time.Time) (ChunkSigningContext, error) {
	if err := s.SignHeaders(ctx, req, cred, signingName, region, StreamingPayloadDigest(), t); err != nil {
		return ChunkSigningContext{}, err
	}

	auth := req.Header.Get("Authorization")
	idx := strings.LastIndex(auth, "Signature=")
	seedSignature := auth[idx+len("Signature="):]

	dateStamp := t.UTC().Format(dateFormat)
	return ChunkSigningContext{
		signer:            s,
		signingKey:        s.signingKey(cred.SecretAccessKey, dateStamp, region, signingName),
		scope:             credentialScope(dateStamp, region, signingName),
		amzDate:           t.UTC().Format(timeFormat),
		previousSignature: seedSignature,
	}, nil
}

// SignChunk signs one chunk of payload and returns the wire-framed bytes
// (hex length + chunk signature header + CRLF + payload + CRLF) along
// with the signing context to use for the next chunk. Pass a zero-length
// payload for the terminating chunk.
func (c ChunkSigningContext) SignChunk(payload []byte) ([]byte, ChunkSigningContext) {
	payloadHash := hashHex(payload)
	stringToSign := strings.Join([]string{
		ChunkedAlgorithm,
		c.amzDate,
		c.scope,
		c.previousSignature,
		emptyPayloadHash, // hash of the (empty) non-payload portion of the chunk's string-to-sign
		payloadHash,
	}, "\n")
	signature := hex.EncodeToString(hmacSHA256(c.signingKey, []byte(stringToSign)))

	frame := fmt.Sprintf("%s;chunk-signature=%s\r\n", strconv.FormatInt(int64(len(payload)), 16), signature)
	framed := make([]byte, 0, len(frame)+len(payload)+2)
	framed = append(framed, frame...)
	framed = append(framed, payload...)
	framed = append(framed, '\r', '\n')

	next := c
	next.previousSignature = signature
	return framed, next
}

// FramedContentLength computes the total Content-Length of an aws-chunked
// body given the unframed payload size and chunk size: every full chunk
// and the final partial chunk each carry a
// "<hex-len>;chunk-signature=<64 hex chars>\r\n" header and a trailing
// CRLF, plus a zero-length terminating chunk with the same framing.
func FramedContentLength(payloadSize int64, chunkSize int) int64 {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	var total int64
	remaining := payloadSize
	for remaining > 0 {
		n := int64(chunkSize)
		if n > remaining {
			n = remaining
		}
		total += chunkFrameOverhead(n) + n
		remaining -= n
	}
	total += chunkFrameOverhead(0) // terminating chunk
	return total
}

func chunkFrameOverhead(chunkLen int64) int64 {
	hexLen := len(strconv.FormatInt(chunkLen, 16))
	// "<hex>;chunk-signature=<64 chars>\r\n" + trailing "\r\n"
	return int64(hexLen) + int64(len(";chunk-signature=")) + 64 + 2 + 2
}
