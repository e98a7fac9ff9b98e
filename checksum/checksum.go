// Package checksum selects and applies an integrity checksum to a
// request body. Selection order is fixed, not a caller-tunable priority
// cascade: an operation that exposes the checksum-algorithm header lets
// the caller name any supported algorithm explicitly; otherwise an
// operation that requires a checksum gets MD5, and an operation that
// declares the legacy Content-MD5 header gets MD5 only when the
// CalculateMD5 option is set.
package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"

	"github.com/ethanadams/awscore/middleware"
	"github.com/ethanadams/awscore/request"
)

type Algorithm string

const (
	AlgorithmNone   Algorithm = ""
	AlgorithmCRC32C Algorithm = "CRC32C"
	AlgorithmCRC32  Algorithm = "CRC32"
	AlgorithmSHA1   Algorithm = "SHA1"
	AlgorithmSHA256 Algorithm = "SHA256"
	AlgorithmMD5    Algorithm = "MD5"
)

// checksumAlgorithmHeader is the header a caller sets to request a
// specific algorithm on an operation that declares ChecksumHeader.
const checksumAlgorithmHeader = "x-amz-sdk-checksum-algorithm"

var headerName = map[Algorithm]string{
	AlgorithmCRC32C: "x-amz-checksum-crc32c",
	AlgorithmCRC32:  "x-amz-checksum-crc32",
	AlgorithmSHA1:   "x-amz-checksum-sha1",
	AlgorithmSHA256: "x-amz-checksum-sha256",
	AlgorithmMD5:    "Content-MD5",
}

// OperationChecksumOptions mirrors OperationDescriptor's checksum-related
// option flags: whether the operation lets a caller name an algorithm
// explicitly, whether it requires some checksum unconditionally, and
// whether it falls back to the legacy Content-MD5 header.
type OperationChecksumOptions struct {
	ChecksumHeader    bool // caller may set x-amz-sdk-checksum-algorithm
	ChecksumRequired  bool // operation requires some checksum be present
	MD5ChecksumHeader bool // operation supports the legacy Content-MD5 fallback
}

// Options mirrors the service-level config knob affecting selection.
type Options struct {
	CalculateMD5 bool // config requests Content-MD5 for MD5ChecksumHeader operations
}

// Select picks the algorithm to apply, exactly in this order: an
// explicit x-amz-sdk-checksum-algorithm header (if the operation allows
// one), then checksumRequired (always MD5), then md5ChecksumHeader with
// CalculateMD5 configured (also MD5), otherwise AlgorithmNone.
func Select(req *request.AWSRequest, op OperationChecksumOptions, cfg Options) Algorithm {
	if op.ChecksumHeader {
		if v := req.Header.Get(checksumAlgorithmHeader); v != "" {
			return Algorithm(v)
		}
	}
	if op.ChecksumRequired {
		return AlgorithmMD5
	}
	if op.MD5ChecksumHeader && cfg.CalculateMD5 {
		return AlgorithmMD5
	}
	return AlgorithmNone
}

// Apply computes alg over req.Body and sets the corresponding header,
// unless that header is already present (idempotent: re-applying a
// checksum to an already-checksummed request is a no-op). A request with
// a streaming body (req.StreamBody set, req.Body nil) is left untouched;
// no checksum is computed for streaming bodies, and the chunked stream
// adapter sends no checksum trailer.
func Apply(req *request.AWSRequest, alg Algorithm) error {
	if alg == AlgorithmNone || req.StreamBody != nil {
		return nil
	}
	name := headerName[alg]
	if req.Header.Get(name) != "" {
		return nil
	}

	var encoded string
	switch alg {
	case AlgorithmCRC32C:
		encoded = base64CRC(crc32.Checksum(req.Body, crc32.MakeTable(crc32.Castagnoli)))
	case AlgorithmCRC32:
		encoded = base64CRC(crc32.ChecksumIEEE(req.Body))
	case AlgorithmSHA1:
		sum := sha1.Sum(req.Body)
		encoded = base64.StdEncoding.EncodeToString(sum[:])
	case AlgorithmSHA256:
		sum := sha256.Sum256(req.Body)
		encoded = base64.StdEncoding.EncodeToString(sum[:])
	case AlgorithmMD5:
		sum := md5.Sum(req.Body)
		encoded = base64.StdEncoding.EncodeToString(sum[:])
	default:
		return nil
	}

	req.Header.Set(name, encoded)
	return nil
}

// ApplyAll selects the algorithm for op/cfg and applies it to req.
func ApplyAll(req *request.AWSRequest, op OperationChecksumOptions, cfg Options) error {
	return Apply(req, Select(req, op, cfg))
}

// Middleware returns a build-stage middleware that selects and applies a
// checksum to every request built for one operation, per op and cfg. A
// generated client registers one of these per operation alongside its
// other call-level middleware, the same way it would register a
// User-Agent or header-injection step.
func Middleware(op OperationChecksumOptions, cfg Options) middleware.Middleware {
	return middleware.Func{
		Name: "Checksum",
		Fn: func(_ context.Context, req *request.AWSRequest) (*request.AWSRequest, error) {
			if err := ApplyAll(req, op, cfg); err != nil {
				return nil, err
			}
			return req, nil
		},
	}
}

func base64CRC(sum uint32) string {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], sum)
	return base64.StdEncoding.EncodeToString(buf[:])
}
