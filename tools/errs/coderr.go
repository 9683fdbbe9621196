// Package errs implements the router's error taxonomy: a small set of
// stable numeric codes carried alongside a human-readable message, with
// enough structure for call sites to branch on kind without string
// matching.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Kind classifies an error for propagation-policy purposes.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthenticationFailure
	KindProtocolViolation
	KindTransientTransportError
	KindUnavailableRecipient
	KindConnectionNotFound
	KindFatal
	KindEvicted
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticationFailure:
		return "authentication_failure"
	case KindProtocolViolation:
		return "protocol_violation"
	case KindTransientTransportError:
		return "transient_transport_error"
	case KindUnavailableRecipient:
		return "unavailable_recipient"
	case KindConnectionNotFound:
		return "connection_not_found"
	case KindFatal:
		return "fatal"
	case KindEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Well-known codes. These double as WebSocket close codes where the kind
// results in closing a connection (see service/chat's closeWithError).
const (
	CodeUnauthorized         = 4001
	CodeInvalidQueryParams   = 4002
	CodeInvalidPayload       = 4003
	CodeMessageTooBig        = 4004
	CodeInactiveConnection   = 4005
	CodePolicyViolation      = 1008
	CodeTransientTransport   = 5001
	CodeUnavailableRecipient = 5002
	CodeConnectionNotFound   = 5003
	CodeFatal                = 5000
	CodeInternal             = 5999
)

// CodeError is the router's concrete error type: a stable numeric code, a
// short message and an optional free-form detail.
type CodeError struct {
	Code   int    `json:"code"`
	Kind   Kind   `json:"kind"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
	cause  error
}

func New(code int, kind Kind, msg string) *CodeError {
	return &CodeError{Code: code, Kind: kind, Msg: msg}
}

func (e *CodeError) Error() string {
	parts := make([]string, 0, 3)
	parts = append(parts, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, ": ")
}

func (e *CodeError) Unwrap() error { return e.cause }

// WithDetail returns a copy of e carrying an additional detail string,
// joined to any existing detail with a comma.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Kind: e.Kind, Msg: e.Msg, Detail: d, cause: e.cause}
}

// Wrap attaches err as the cause of a copy of e, preserving e's code/kind.
func (e *CodeError) Wrap(err error) *CodeError {
	return &CodeError{Code: e.Code, Kind: e.Kind, Msg: e.Msg, Detail: e.Detail, cause: err}
}

// Is reports whether err is (or wraps) a CodeError with the same code.
func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// Authentication, Protocol, etc. are constructors for the kinds named in
// the error taxonomy; each carries the close code it maps to when the
// kind results in ending a connection.
func Authentication(msg string) *CodeError {
	return New(CodeUnauthorized, KindAuthenticationFailure, msg)
}

func Protocol(code int, msg string) *CodeError {
	return New(code, KindProtocolViolation, msg)
}

func TransientTransport(msg string) *CodeError {
	return New(CodeTransientTransport, KindTransientTransportError, msg)
}

func UnavailableRecipient(msg string) *CodeError {
	return New(CodeUnavailableRecipient, KindUnavailableRecipient, msg)
}

func ConnectionNotFound(msg string) *CodeError {
	return New(CodeConnectionNotFound, KindConnectionNotFound, msg)
}

func Fatal(msg string) *CodeError {
	return New(CodeFatal, KindFatal, msg)
}

// Evicted builds a server-initiated close: the connection itself is being
// torn down by policy (override, inactivity), not rejecting something the
// client sent.
func Evicted(code int, msg string) *CodeError {
	return New(code, KindEvicted, msg)
}

// As reports whether err is a *CodeError, returning it if so.
func As(err error) (*CodeError, bool) {
	var ce *CodeError
	ok := errors.As(err, &ce)
	return ce, ok
}
