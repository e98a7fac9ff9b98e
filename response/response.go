// Package response validates an HTTP response's status code and decodes
// its body into a typed output shape, or into the closed awserr error
// hierarchy when the status indicates failure.
package response

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"strings"

	"github.com/ethanadams/awscore/awserr"
	"github.com/ethanadams/awscore/encoding"
	"github.com/ethanadams/awscore/transport"
)

type Protocol string

const (
	ProtocolJSON     Protocol = "json"
	ProtocolRestJSON Protocol = "rest-json"
	ProtocolRestXML  Protocol = "rest-xml"
	ProtocolQuery    Protocol = "query"
	ProtocolEC2Query Protocol = "ec2-query"
)

// Decode reads resp's body, classifying it as success or error by status
// code. On success it is handed to out's Decodable implementation; on
// failure it is parsed into the appropriate awserr class and returned as
// the error.
func Decode(resp transport.Response, protocol Protocol, out encoding.Decodable) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return awserr.TransportError.Wrap(err)
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, resp.Header.Get("x-amzn-RequestId"), body, protocol)
	}

	if out == nil || len(body) == 0 {
		return nil
	}

	switch protocol {
	case ProtocolJSON, ProtocolRestJSON:
		if err := out.DecodeJSON(body); err != nil {
			return awserr.DecodeError.Wrap(err)
		}
	case ProtocolRestXML, ProtocolQuery, ProtocolEC2Query:
		if err := out.DecodeXML(body); err != nil {
			return awserr.DecodeError.Wrap(err)
		}
	}
	return nil
}

// jsonErrorEnvelope matches the "json"/"rest-json" error body shape:
// {"__type": "...", "message": "..."} (or "Message" in some services).
type jsonErrorEnvelope struct {
	Type    string `json:"__type"`
	Code    string `json:"Code"`
	Message string `json:"message"`
	Msg2    string `json:"Message"`
}

// xmlErrorEnvelope matches the rest-xml/query error body shape:
// <Error><Code/><Message/><RequestId/></Error>, either as the root
// element or wrapped in an outer <ErrorResponse>.
type xmlErrorEnvelope struct {
	XMLName     xml.Name
	Code        string `xml:"Error>Code"`
	Message     string `xml:"Error>Message"`
	BareCode    string `xml:"Code"`
	BareMessage string `xml:"Message"`
	RequestID   string `xml:"RequestId"`
}

func decodeError(status int, requestID string, body []byte, protocol Protocol) error {
	se := &awserr.ServiceError{Status: status, RequestID: requestID}

	switch protocol {
	case ProtocolJSON, ProtocolRestJSON:
		var env jsonErrorEnvelope
		if err := json.Unmarshal(body, &env); err == nil {
			se.Code = normalizeErrorCode(env.Type, env.Code)
			se.Message = firstNonEmpty(env.Message, env.Msg2)
		}
	case ProtocolRestXML, ProtocolQuery, ProtocolEC2Query:
		var env xmlErrorEnvelope
		if err := xml.Unmarshal(body, &env); err == nil {
			se.Code = firstNonEmpty(env.Code, env.BareCode)
			se.Message = firstNonEmpty(env.Message, env.BareMessage)
			if se.RequestID == "" {
				se.RequestID = env.RequestID
			}
		}
	}
	if se.Code == "" {
		se.Code = "Unknown"
	}

	return classifiedError(se)
}

// normalizeErrorCode strips a "__type" value's namespace prefix, e.g.
// "com.amazonaws.dynamodb.v20120810#ResourceNotFoundException" ->
// "ResourceNotFoundException", falling back to an explicit Code field.
func normalizeErrorCode(typ, code string) string {
	if typ != "" {
		if i := strings.LastIndexByte(typ, '#'); i >= 0 {
			return typ[i+1:]
		}
		return typ
	}
	return code
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// classifiedError wraps se in Throttle when the code matches a known
// throttling exception name, otherwise in HTTPError. Either way se
// remains retrievable with errors.As for status/code/message detail.
func classifiedError(se *awserr.ServiceError) error {
	if awserr.IsThrottlingCode(se.Code) {
		return awserr.Throttle.Wrap(se)
	}
	return awserr.HTTPError.Wrap(se)
}
