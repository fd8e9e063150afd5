package ntn

import "fmt"

// Kind enumerates the fatal error categories a session can fail with,
// per spec.md §7.
type Kind string

const (
	KindConnect            Kind = "ConnectError"
	KindFraming            Kind = "FramingError"
	KindCbor               Kind = "CborError"
	KindHandshakeRefused   Kind = "HandshakeRefused"
	KindHandshakeUnexpected Kind = "HandshakeUnexpected"
	KindProtocol           Kind = "ProtocolError"
	KindTimeout            Kind = "Timeout"
	KindIo                 Kind = "IoError"
)

// Error is the structured error every fatal failure surfaces as: a
// Kind naming the category plus a one-line diagnostic, with an
// optional wrapped cause for errors.Is/As chains.
type Error struct {
	Kind   Kind
	Detail string
	// Scope further qualifies a Timeout (connect, session, protocol
	// name) or a ProtocolError (the mini-protocol id).
	Scope string
	Cause error
}

func (e *Error) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Scope, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func WrapError(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func ScopedError(kind Kind, scope, detail string, cause error) *Error {
	return &Error{Kind: kind, Scope: scope, Detail: detail, Cause: cause}
}

// Coerce returns err unchanged if it is already a structured *Error
// (e.g. a decode failure, which cborcodec already wraps with
// KindCbor), or wraps it under fallbackKind otherwise — the case for
// a raw connection-level error (io.EOF, a closed pipe) delivered to a
// mini-protocol mailbox by Dispatcher.broadcastFatal.
func Coerce(err error, fallbackKind Kind, detail string) error {
	if err == nil {
		return nil
	}
	if nerr, ok := err.(*Error); ok {
		return nerr
	}
	return WrapError(fallbackKind, detail, err)
}
