package quizbot

import "errors"

// ErrorKind classifies engine failures
type ErrorKind string

const (
	KindMalformedPayload ErrorKind = "MALFORMED_PAYLOAD"
	KindShapeMismatch    ErrorKind = "SHAPE_MISMATCH"
	KindFilterMismatch   ErrorKind = "FILTER_MISMATCH"
	KindGenerationFailed ErrorKind = "GENERATION_FAILED"
	KindServiceTimeout   ErrorKind = "SERVICE_TIMEOUT"
	KindSessionNotFound  ErrorKind = "SESSION_NOT_FOUND"
	KindBackendFailed    ErrorKind = "BACKEND_FAILED"
	KindInvalidRequest   ErrorKind = "INVALID_REQUEST"
)

// Error is the typed error returned by every engine operation
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// Retryable reports whether the caller may reissue the same request unchanged
func (e *Error) Retryable() bool {
	return e.Kind == KindServiceTimeout
}

var (
	ErrMalformedPayload = &Error{Kind: KindMalformedPayload}
	ErrShapeMismatch    = &Error{Kind: KindShapeMismatch}
	ErrFilterMismatch   = &Error{Kind: KindFilterMismatch}
	ErrGenerationFailed = &Error{Kind: KindGenerationFailed}
	ErrServiceTimeout   = &Error{Kind: KindServiceTimeout}
	ErrSessionNotFound  = &Error{Kind: KindSessionNotFound}
	ErrBackendFailed    = &Error{Kind: KindBackendFailed}
	ErrInvalidRequest   = &Error{Kind: KindInvalidRequest}
)

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
