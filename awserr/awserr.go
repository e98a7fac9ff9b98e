// Package awserr defines the closed error hierarchy produced anywhere in
// this module: signing, request construction, transport, and response
// decoding all wrap their failures in one of these classes so callers can
// branch on error kind with errors.Is/errors.As instead of string
// matching.
package awserr

import (
	"errors"
	"fmt"

	"github.com/zeebo/errs"
)

var (
	InvalidURL            = errs.Class("invalid url")
	ValidationError       = errs.Class("validation")
	MissingContentLength  = errs.Class("missing content length")
	Unencodable           = errs.Class("unencodable")
	SigningFailure        = errs.Class("signing failure")
	CredentialUnavailable = errs.Class("credential unavailable")
	TransportError        = errs.Class("transport")
	Throttle              = errs.Class("throttle")
	HTTPError             = errs.Class("http error")
	DecodeError           = errs.Class("decode")
	Cancelled             = errs.Class("cancelled")
	AlreadyShutdown       = errs.Class("already shutdown")
	PaginationLimit       = errs.Class("pagination limit exceeded")
)

// FieldError is the structured cause wrapped by ValidationError when a
// specific input member failed validation.
type FieldError struct {
	FieldPath string
	Reason    string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.FieldPath, e.Reason)
}

// ServiceError is the structured cause wrapped by HTTPError (or a more
// specific class, for recognized error codes) when a service returns a
// non-2xx response with a parsed error envelope.
type ServiceError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *ServiceError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (status %d, request id %s)", e.Code, e.Message, e.Status, e.RequestID)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
}

// throttlingCodes are service error codes that mean "throttled" even when
// the HTTP status (503) is shared with plain server errors.
var throttlingCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"RequestThrottled":                       true,
	"TooManyRequestsException":               true,
	"ProvisionedThroughputExceededException": true,
}

// IsThrottlingCode reports whether code names a recognized throttling
// error, independent of HTTP status.
func IsThrottlingCode(code string) bool { return throttlingCodes[code] }

// Classification buckets a decoded error for retry/backoff decisions.
type Classification int

const (
	ClassFatal Classification = iota
	ClassThrottle
	ClassTransient
	ClassClient
	ClassNotFound
)

// Classify inspects an error produced by this module and reports how the
// executor should react to it.
func Classify(err error) Classification {
	switch {
	case Throttle.Has(err):
		return ClassThrottle
	case TransportError.Has(err), Cancelled.Has(err):
		return ClassTransient
	case ValidationError.Has(err), Unencodable.Has(err), MissingContentLength.Has(err):
		return ClassClient
	case HTTPError.Has(err):
		var se *ServiceError
		if errors.As(err, &se) {
			if se.Status == 404 {
				return ClassNotFound
			}
			if se.Status == 429 || (se.Status == 503 && IsThrottlingCode(se.Code)) {
				return ClassThrottle
			}
			if se.Status >= 500 {
				return ClassTransient
			}
			return ClassClient
		}
		return ClassFatal
	default:
		return ClassFatal
	}
}
