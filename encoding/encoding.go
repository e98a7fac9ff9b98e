// Package encoding defines the contracts between a generated service
// client's input/output shapes and this module's request builder and
// response decoder. It deliberately does not implement the JSON/XML/Query
// codecs themselves — those are generated per shape — only the
// interfaces the builder and decoder call through.
package encoding

import "encoding/xml"

// Renderable produces the wire text for one non-body member: a header
// value, a query parameter, or a URI placeholder substitution. Scalar
// shape fields (string, number, bool, timestamp, blob) implement this
// directly; generated clients supply the rendering per AWS's documented
// per-type rules (RFC 3339/Unix timestamp formats, base64 blobs, etc).
type Renderable interface {
	Render() (string, error)
}

// Encodable is a shape that can serialize itself as a protocol body. A
// generated input shape implements whichever of these methods its
// service's protocol requires; the request builder calls exactly one,
// selected by ServiceConfig.Protocol.
type Encodable interface {
	EncodeJSON() ([]byte, error)
	EncodeXML(root xml.Name, namespace string) ([]byte, error)
	EncodeQuery(action, version string) (Values, error)
}

// Values is a flattened multi-map suitable for rendering as an
// application/x-www-form-urlencoded body (query and ec2-query
// protocols). The request builder copies the pairs into a url.Values and
// renders them sorted by key, so only the relative order of values that
// share one key reaches the wire.
type Values [][2]string

// Decodable is an output shape that can populate itself from a decoded
// response body. The response package calls exactly one method depending
// on ServiceConfig.Protocol.
type Decodable interface {
	DecodeJSON(body []byte) error
	DecodeXML(body []byte) error
}
