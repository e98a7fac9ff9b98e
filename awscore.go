// Package awscore is the request construction, signing, and dispatch core
// shared by a family of AWS-shaped service clients. It sits below a
// generated per-service API and above the raw HTTP transport, and owns
// SigV4 signing, integrity checksums, protocol-aware request building,
// middleware, execution/retry, response decoding, and pagination.
package awscore

import (
	"time"

	"github.com/ethanadams/awscore/checksum"
	"github.com/ethanadams/awscore/internal/logging"
	"github.com/ethanadams/awscore/middleware"
)

// Protocol identifies the wire protocol an operation is encoded with.
type Protocol string

const (
	ProtocolJSON     Protocol = "json"
	ProtocolRestJSON Protocol = "rest-json"
	ProtocolRestXML  Protocol = "rest-xml"
	ProtocolQuery    Protocol = "query"
	ProtocolEC2Query Protocol = "ec2-query"
)

// Options carries per-service behavioral switches that do not belong to
// any single component.
type Options struct {
	// S3DisableChunkedUploads forces UNSIGNED-PAYLOAD / in-memory signing
	// instead of aws-chunked streaming signatures, even when the operation
	// would otherwise stream.
	S3DisableChunkedUploads bool
	// CalculateMD5 requests a Content-MD5 checksum for operations that
	// declare the legacy MD5 checksum header, when neither an explicit
	// algorithm header nor a required checksum has already selected one
	// (only one algorithm is ever applied to a request).
	CalculateMD5 bool
}

// ServiceConfig describes one AWS-shaped service endpoint. It is built
// once by a generated client and never mutated afterward; every component
// in this module treats it as read-only.
type ServiceConfig struct {
	ServiceID    string
	SigningName  string
	Region       string
	Endpoint     string
	APIVersion   string
	Protocol     Protocol
	AmzTarget    string
	XMLNamespace string
	Timeout      time.Duration
	Options      Options

	Middlewares []middleware.Middleware
	Logger      logging.Logger
}

// OperationDescriptor names one API operation and how it is carried over
// the wire: its HTTP method, URI template, and checksum requirements. It
// is produced once per operation by a generated client, alongside an
// InputShape describing where each member of the request belongs.
type OperationDescriptor struct {
	Name           string
	HTTPMethod     string
	HTTPPath       string // e.g. "/{Bucket}/{Key+}"
	AmzTarget      string // overrides ServiceConfig.AmzTarget when set
	HasStreamingBody bool
	Checksum       ChecksumOptions
}

// ChecksumOptions controls whether and how a checksum is attached to an
// operation's request body. It is an alias of
// checksum.OperationChecksumOptions, so generated clients can name it
// from the root package.
type ChecksumOptions = checksum.OperationChecksumOptions

// PooledAllocator returns a byte-slice allocator backed by sync.Pools
// bucketed by power-of-two size class. The request builder has no
// allocator hook; nothing in this module calls the returned function.
func PooledAllocator() func(int) []byte {
	return newPooledAllocator()
}
