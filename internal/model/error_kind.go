package model

import (
	"fmt"
	"strings"
)

// ErrorKind classifies why a fetch attempt failed.
//
// Design decision: We use iota-based constants rather than string constants
// for cheap comparisons, and implement encoding.TextMarshaler so that JSON
// reports and the archive store a stable, human-readable name instead of a
// number that would change if constants were reordered.
type ErrorKind int

const (
	// ErrorKindOther covers failures that fit no other category, such as a
	// body that could not be read or a malformed response.
	ErrorKindOther ErrorKind = iota

	// ErrorKindTimeout indicates the request did not complete in time.
	ErrorKindTimeout

	// ErrorKindConnectionFailed indicates the transport could not reach the
	// server: DNS failures, refused connections, TLS handshake errors.
	ErrorKindConnectionFailed

	// ErrorKindHTTPStatus indicates the server answered with a non-2xx status.
	// The status code is carried in CrawlError.StatusCode.
	ErrorKindHTTPStatus
)

// String returns the stable name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindOther:
		return "other"
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindConnectionFailed:
		return "connection_failed"
	case ErrorKindHTTPStatus:
		return "http_status"
	default:
		return "unknown"
	}
}

// ParseErrorKind converts a name produced by String back into an ErrorKind.
// Matching is case-insensitive.
func ParseErrorKind(s string) (ErrorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "other":
		return ErrorKindOther, nil
	case "timeout":
		return ErrorKindTimeout, nil
	case "connection_failed":
		return ErrorKindConnectionFailed, nil
	case "http_status":
		return ErrorKindHTTPStatus, nil
	default:
		return ErrorKindOther, fmt.Errorf("unknown error kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	parsed, err := ParseErrorKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// AllErrorKinds returns every error kind in declaration order.
// Report writers use it to print per-kind counts in a stable order.
func AllErrorKinds() []ErrorKind {
	return []ErrorKind{
		ErrorKindTimeout,
		ErrorKindConnectionFailed,
		ErrorKindHTTPStatus,
		ErrorKindOther,
	}
}
