package request

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ethanadams/awscore/awserr"
	"github.com/ethanadams/awscore/encoding"
)

// InputShape is what a generated operation's input type must supply to
// the builder: an ordered list of member bindings (consulted for
// header/query/URI/hostname placement) plus, for protocols that encode
// the whole shape as the body (json, query, ec2-query), the shape's own
// Encodable implementation.
type InputShape interface {
	Bindings() []MemberBinding
	Payload() PayloadMember // PayloadNone if the protocol owns the whole body
	Body() encoding.Encodable
}

// ServiceConfig is the subset of awscore.ServiceConfig the builder
// needs. Declared locally to avoid an import cycle (package awscore
// imports checksum and middleware, which both import this package).
type ServiceConfig struct {
	Endpoint     string
	Protocol     Protocol
	AmzTarget    string
	XMLNamespace string
	APIVersion   string
}

type Protocol string

const (
	ProtocolJSON     Protocol = "json"
	ProtocolRestJSON Protocol = "rest-json"
	ProtocolRestXML  Protocol = "rest-xml"
	ProtocolQuery    Protocol = "query"
	ProtocolEC2Query Protocol = "ec2-query"
)

// Descriptor is the subset of awscore.OperationDescriptor the builder
// needs.
type Descriptor struct {
	Name       string
	HTTPMethod string
	HTTPPath   string
	AmzTarget  string
}

// pathEscape keeps the AWS SigV4 canonical-URI unreserved set:
// A-Z a-z 0-9 - _ . ~. Everything else is percent-encoded, including a
// literal '/' unless keepSlash is set (greedy placeholder values).
func pathEscape(s string, keepSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isUnreserved(c):
			b.WriteByte(c)
		case c == '/' && keepSlash:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

// queryEscape percent-encodes s against the unreserved set, for query
// strings and form-urlencoded bodies. Unlike url.QueryEscape (which
// follows application/x-www-form-urlencoded and turns a space into '+'),
// this never preserves '+' for space — the wire value must decode back
// to exactly what the signature was computed over.
func queryEscape(s string) string {
	return pathEscape(s, false)
}

// encodeQueryValues renders values as a query/form-urlencoded string
// using queryEscape, sorted by key for determinism — the strict-encoding
// equivalent of url.Values.Encode.
func encodeQueryValues(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		ek := queryEscape(k)
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(ek)
			b.WriteByte('=')
			b.WriteString(queryEscape(v))
		}
	}
	return b.String()
}

// Build constructs an AWSRequest from a descriptor, a service config, and
// an input shape's member bindings, per the operation's protocol.
func Build(cfg ServiceConfig, op Descriptor, in InputShape) (*AWSRequest, error) {
	bindings := in.Bindings()

	path, query, headers, hostPrefix, err := distribute(op.HTTPPath, bindings)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, awserr.InvalidURL.Wrap(err)
	}
	if hostPrefix != "" {
		base.Host = hostPrefix + "." + base.Host
	}
	// path is already percent-encoded by substitutePath; RawPath carries
	// that encoding verbatim and Path carries its decoded form, so
	// url.URL.String() (via EscapedPath) reuses RawPath instead of
	// re-escaping an already-escaped string.
	rawPath := strings.TrimRight(base.EscapedPath(), "/") + path
	decodedPath, decErr := url.PathUnescape(rawPath)
	if decErr != nil {
		return nil, awserr.InvalidURL.Wrap(decErr)
	}
	base.Path = decodedPath
	base.RawPath = rawPath
	base.RawQuery = encodeQueryValues(query)

	req := &AWSRequest{
		Method: op.HTTPMethod,
		URL:    base,
		Header: headers,
	}

	if target := op.AmzTarget; target != "" {
		req.Header.Set("X-Amz-Target", target)
	} else if cfg.AmzTarget != "" {
		req.Header.Set("X-Amz-Target", cfg.AmzTarget+"."+op.Name)
	}

	body, contentType, err := buildBody(cfg, op, in)
	if err != nil {
		return nil, err
	}
	req.Body = body
	req.ContentLength = int64(len(body))
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	}

	return req, nil
}

func distribute(pathTemplate string, bindings []MemberBinding) (path string, query url.Values, headers http.Header, hostPrefix string, err error) {
	query = url.Values{}
	headers = http.Header{}

	rendered := make(map[string]string, len(bindings))
	for _, b := range bindings {
		if b.Render == nil {
			continue
		}
		v, rerr := b.Render()
		if rerr != nil {
			return "", nil, nil, "", awserr.Unencodable.Wrap(rerr)
		}
		rendered[b.Name] = v

		switch loc := b.Location.(type) {
		case Header:
			if v != "" {
				headers.Set(loc.Name, v)
			}
		case HeaderPrefix:
			if v != "" {
				headers.Set(loc.Prefix+b.Name, v)
			}
		case QueryParam:
			if v != "" {
				query.Add(loc.Name, v)
			}
		case Hostname:
			hostPrefix = v
		case URI, BodyMember:
			// URI substitution happens below once all bindings are
			// known; BodyMember places nothing here (buildBody encodes
			// the shape's Body() and does not read bindings).
		}
	}

	path, err = substitutePath(pathTemplate, bindings, rendered)
	return path, query, headers, hostPrefix, err
}

func substitutePath(tmpl string, bindings []MemberBinding, rendered map[string]string) (string, error) {
	greedy := map[string]bool{}
	for _, b := range bindings {
		if u, ok := b.Location.(URI); ok {
			greedy[u.Name] = u.Greedy
		}
	}

	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] != '{' {
			c := tmpl[i]
			if isUnreserved(c) || c == '/' {
				out.WriteByte(c)
			} else {
				fmt.Fprintf(&out, "%%%02X", c)
			}
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			return "", awserr.InvalidURL.New("unterminated placeholder in %q", tmpl)
		}
		name := tmpl[i+1 : i+end]
		isGreedy := strings.HasSuffix(name, "+")
		name = strings.TrimSuffix(name, "+")

		val, ok := rendered[name]
		if !ok {
			return "", awserr.ValidationError.New("missing required URI member %q", name)
		}
		out.WriteString(pathEscape(val, isGreedy))
		i += end + 1
	}
	return out.String(), nil
}
