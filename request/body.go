package request

import (
	"encoding/xml"
	"net/url"

	"github.com/ethanadams/awscore/awserr"
)

// buildBody renders the operation's HTTP body per cfg.Protocol, returning
// the body bytes and the Content-Type to set (empty if the builder
// should not touch Content-Type, e.g. a raw payload that set its own).
func buildBody(cfg ServiceConfig, op Descriptor, in InputShape) ([]byte, string, error) {
	if payload := in.Payload(); payload.Kind != PayloadNone {
		return buildPayloadBody(cfg, op, payload)
	}

	switch cfg.Protocol {
	case ProtocolJSON:
		// JSON-RPC-style protocol (e.g. DynamoDB): the operation is named
		// by X-Amz-Target rather than the URL, and the body is always
		// application/x-amz-json-1.0 regardless of what buildJSONBody
		// would otherwise pick.
		b, _, err := buildJSONBody(in)
		return b, "application/x-amz-json-1.0", err
	case ProtocolRestJSON:
		// rest-json operations with no designated payload member and a
		// body-carrying Encodable still serialize the remaining members
		// as a flat JSON object, same as plain json.
		return buildJSONBody(in)
	case ProtocolRestXML:
		return buildRestXMLBody(cfg, op, in)
	case ProtocolQuery, ProtocolEC2Query:
		return buildQueryBody(cfg, op, in)
	default:
		return nil, "", awserr.Unencodable.New("unknown protocol %q", cfg.Protocol)
	}
}

func buildPayloadBody(cfg ServiceConfig, op Descriptor, payload PayloadMember) ([]byte, string, error) {
	switch payload.Kind {
	case PayloadRaw:
		return payload.Raw.Bytes, payload.Raw.ContentType, nil
	case PayloadShape:
		if payload.Shape == nil {
			// A nil shape-bearing payload still produces a body: a
			// self-closing root element for rest-xml, or "null" would
			// be wrong for JSON, so an empty body with no Content-Type
			// is used for everything except rest-xml.
			if cfg.Protocol == ProtocolRestXML {
				root := payload.XMLRoot
				if root == "" {
					root = "Payload"
				}
				return []byte("<" + root + "/>"), "application/xml", nil
			}
			return nil, "", nil
		}
		if cfg.Protocol == ProtocolRestXML {
			root := payload.XMLRoot
			if root == "" {
				root = op.Name + "Request"
			}
			b, err := payload.Shape.EncodeXML(xml.Name{Local: root}, cfg.XMLNamespace)
			if err != nil {
				return nil, "", awserr.Unencodable.Wrap(err)
			}
			return b, "application/xml", nil
		}
		b, err := payload.Shape.EncodeJSON()
		if err != nil {
			return nil, "", awserr.Unencodable.Wrap(err)
		}
		return b, "application/json", nil
	default:
		return nil, "", nil
	}
}

func buildJSONBody(in InputShape) ([]byte, string, error) {
	enc := in.Body()
	if enc == nil {
		return []byte("{}"), "application/json", nil
	}
	b, err := enc.EncodeJSON()
	if err != nil {
		return nil, "", awserr.Unencodable.Wrap(err)
	}
	if b == nil {
		b = []byte("{}")
	}
	return b, "application/json", nil
}

func buildRestXMLBody(cfg ServiceConfig, op Descriptor, in InputShape) ([]byte, string, error) {
	enc := in.Body()
	if enc == nil {
		return nil, "", nil
	}
	root := xml.Name{Local: op.Name + "Request"}
	b, err := enc.EncodeXML(root, cfg.XMLNamespace)
	if err != nil {
		return nil, "", awserr.Unencodable.Wrap(err)
	}
	return b, "application/xml", nil
}

func buildQueryBody(cfg ServiceConfig, op Descriptor, in InputShape) ([]byte, string, error) {
	enc := in.Body()
	var values url.Values
	if enc != nil {
		flat, err := enc.EncodeQuery(op.Name, cfg.APIVersion)
		if err != nil {
			return nil, "", awserr.Unencodable.Wrap(err)
		}
		values = url.Values{}
		for _, kv := range flat {
			values.Add(kv[0], kv[1])
		}
	} else {
		values = url.Values{}
	}
	values.Set("Action", op.Name)
	if cfg.APIVersion != "" {
		values.Set("Version", cfg.APIVersion)
	}
	return []byte(encodeQueryValues(values)), "application/x-www-form-urlencoded; charset=utf-8", nil
}
