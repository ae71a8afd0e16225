// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault defines the outcome taxonomy shared by every sandboxed
// file operation and tail session.
//
// Five kinds exist. [Forbidden] and [Disabled] are always decided before
// any filesystem I/O. [NotFound] and [IOError] come from the filesystem
// call itself. [Malformed] covers client input that cannot be parsed
// into a request at all. None of them are retried automatically; the
// caller reports them and ends the request or session.
//
// Kinds map to HTTP statuses via [HTTPStatus] and to websocket close
// codes via [CloseCode], so the browse layer never has to inspect
// error strings.
package fault

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// Kind classifies a rejected or failed operation.
type Kind int

const (
	// Unknown is the kind of errors that did not originate here. They
	// are reported as internal failures.
	Unknown Kind = iota
	Forbidden
	Disabled
	NotFound
	IOError
	Malformed
)

// String returns the lowercase name used in logs and diagnostics.
func (k Kind) String() string {
	switch k {
	case Forbidden:
		return "forbidden"
	case Disabled:
		return "disabled"
	case NotFound:
		return "not found"
	case IOError:
		return "i/o error"
	case Malformed:
		return "malformed"
	default:
		return "internal error"
	}
}

// Error is an outcome with a short human-readable message. Err, when
// set, is the underlying cause and is exposed through Unwrap but never
// shown to clients (it may contain absolute paths).
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Public returns the client-facing text: kind and message, no cause.
func (e *Error) Public() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, cause error, format string, args []any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Forbiddenf reports a path that escapes the sandbox.
func Forbiddenf(format string, args ...any) *Error {
	return newError(Forbidden, nil, format, args)
}

// Disabledf reports an operation whose capability flag is off.
func Disabledf(format string, args ...any) *Error {
	return newError(Disabled, nil, format, args)
}

// NotFoundf reports a target that does not exist.
func NotFoundf(cause error, format string, args ...any) *Error {
	return newError(NotFound, cause, format, args)
}

// IOErrorf reports a filesystem failure during a permitted operation.
func IOErrorf(cause error, format string, args ...any) *Error {
	return newError(IOError, cause, format, args)
}

// Malformedf reports unparsable client input.
func Malformedf(format string, args ...any) *Error {
	return newError(Malformed, nil, format, args)
}

// KindOf returns the Kind of the first *Error in err's chain, or
// Unknown.
func KindOf(err error) Kind {
	var faultErr *Error
	if errors.As(err, &faultErr) {
		return faultErr.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the text a client may see for err. Errors from
// outside this package are reduced to a generic message.
func PublicMessage(err error) string {
	var faultErr *Error
	if errors.As(err, &faultErr) {
		return faultErr.Public()
	}
	return "internal error"
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Forbidden, Disabled:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Malformed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CloseCode maps a kind to the websocket close status sent after a
// stream diagnostic.
func CloseCode(kind Kind) websocket.StatusCode {
	switch kind {
	case Forbidden, Disabled, NotFound, Malformed:
		return websocket.StatusPolicyViolation
	default:
		return websocket.StatusInternalError
	}
}
