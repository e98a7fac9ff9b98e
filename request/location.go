package request

import "github.com/ethanadams/awscore/encoding"

// Location is a closed tagged variant describing where one input member
// belongs on the wire. Generated clients produce a []MemberBinding in
// declaration order; the builder never inspects a shape with reflection.
type Location interface{ isLocation() }

type Header struct{ Name string }
type HeaderPrefix struct{ Prefix string } // e.g. x-amz-meta-
type QueryParam struct{ Name string }
type Hostname struct{ Name string } // virtual-hosted bucket substitution

// URI binds a member into the operation's path template. The encoding
// follows the template itself: a "{name+}" placeholder is percent-encoded
// with '/' left intact, and a "{name}" placeholder has '/' encoded like
// any other byte. Greedy is carried alongside but does not change the
// encoding.
type URI struct {
	Name   string
	Greedy bool
}

// BodyMember binds a member into the serialized body (used by protocols
// whose body is a flat encoding of all non-location-bound members, e.g.
// json/query; rest-xml/rest-json instead use PayloadMember for the
// single body-carrying member, if any).
type BodyMember struct{ Name string }

func (Header) isLocation()       {}
func (HeaderPrefix) isLocation() {}
func (QueryParam) isLocation()   {}
func (Hostname) isLocation()     {}
func (URI) isLocation()          {}
func (BodyMember) isLocation()   {}

// MemberBinding pairs one input member's rendered value with where it
// belongs. Render is nil for a member bound nowhere in the location set
// (i.e. consumed only as part of the overall body encoding).
type MemberBinding struct {
	Name     string
	Location Location
	Render   func() (string, error)
}

// PayloadKind distinguishes the two ways an operation's HTTP body can be
// populated, replacing a runtime type switch over interface{} with a
// closed, explicit tag (mirrors signing.BodyDigest's tagged variant).
type PayloadKind int

const (
	// PayloadNone means the operation has no body member; the protocol's
	// default body encoding (or no body at all, for GET/DELETE-shaped
	// rest operations) applies.
	PayloadNone PayloadKind = iota
	// PayloadRaw means Raw carries pre-rendered bytes the builder writes
	// through unchanged (streaming uploads, S3 PutObject).
	PayloadRaw
	// PayloadShape means Shape must be encoded via its Encodable
	// implementation for the operation's protocol.
	PayloadShape
)

// PayloadMember names the operation's single HTTP-body-carrying member,
// for rest-json/rest-xml operations whose body is not "all non-location
// members" but one designated field (or the raw bytes of a streaming
// upload).
type PayloadMember struct {
	Kind  PayloadKind
	Raw   Payload
	Shape encoding.Encodable
	// XMLRoot overrides the root element name used when Shape is encoded
	// as REST-XML; empty uses "<OperationName>Request", or "Payload" when
	// Shape is nil.
	XMLRoot string
}
