package service

import (
	"errors"
	"fmt"

	"github.com/web3-forum-api/internal/validation"
)

// ErrorKind is the machine-readable error classification surfaced to
// clients; the API layer maps kinds to HTTP statuses.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindNotFound           ErrorKind = "not_found"
	KindDuplicate          ErrorKind = "duplicate_submission"
	KindReplayDetected     ErrorKind = "replay_detected"
	KindChainVerification  ErrorKind = "chain_verification_failed"
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindInternal           ErrorKind = "internal"
)

// Error is a typed service error carrying its kind and, for validation
// failures, the per-field details.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []validation.ValidationError
}

func (e *Error) Error() string {
	return e.Message
}

// AsServiceError extracts a typed service error, defaulting unknown
// errors to KindInternal
func AsServiceError(err error) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return &Error{Kind: KindInternal, Message: err.Error()}
}

func errInvalidInput(fields []validation.ValidationError) *Error {
	return &Error{Kind: KindInvalidInput, Message: "validation failed", Fields: fields}
}

func errInvalidInputMsg(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func errPermissionDenied(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

func errNotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func errDuplicate(format string, args ...interface{}) *Error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...)}
}

func errReplay(format string, args ...interface{}) *Error {
	return &Error{Kind: KindReplayDetected, Message: fmt.Sprintf(format, args...)}
}

func errChainVerification(format string, args ...interface{}) *Error {
	return &Error{Kind: KindChainVerification, Message: fmt.Sprintf(format, args...)}
}

func errInternal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

func errBackendUnavailable(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBackendUnavailable, Message: fmt.Sprintf(format, args...)}
}
