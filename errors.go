package trino

import (
	"fmt"
	"strings"
)

// errorKind tags a ClientError with one of the six kinds of the
// taxonomy from spec §7. The kind itself is unexported; callers
// dispatch with errors.As on the exported types built around
// ClientError (ProtocolError, ServerError, TimeoutError,
// CancellationError, DecodeError, ProgrammingError).
type errorKind int

const (
	kindProtocol errorKind = iota
	kindServer
	kindTimeout
	kindCancellation
	kindDecode
	kindProgramming
)

// ClientError is the common shape behind every error kind this package
// returns from the engine itself (as opposed to a *ServerError, which
// wraps a failure reported by the coordinator).
type ClientError struct {
	kind    errorKind
	Message string
	// Cause is the underlying error, if any (e.g. a network failure
	// wrapped as a ProtocolError).
	Cause error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ClientError) Unwrap() error { return e.Cause }

func newClientError(kind errorKind, msg string, cause error) *ClientError {
	return &ClientError{kind: kind, Message: msg, Cause: cause}
}

// ProtocolError reports a malformed header, invalid response body, or
// unexpected HTTP status from the coordinator.
type ProtocolError struct {
	*ClientError
	StatusCode int
	Body       string
}

func newProtocolError(msg string, statusCode int, body string, cause error) *ProtocolError {
	return &ProtocolError{
		ClientError: newClientError(kindProtocol, msg, cause),
		StatusCode:  statusCode,
		Body:        body,
	}
}

// TimeoutError reports that a per-statement wall-clock timeout elapsed.
type TimeoutError struct {
	*ClientError
}

func newTimeoutError(msg string) *TimeoutError {
	return &TimeoutError{ClientError: newClientError(kindTimeout, msg, nil)}
}

// CancellationError reports that the statement was canceled, either by
// the caller (Dispose/Cancel) or an external cancellation token.
type CancellationError struct {
	*ClientError
	Reason string
}

func newCancellationError(reason string) *CancellationError {
	return &CancellationError{
		ClientError: newClientError(kindCancellation, "statement canceled: "+reason, nil),
		Reason:      reason,
	}
}

// DecodeError reports a type-mismatch, precision overflow, or malformed
// encoding (base64, timestamp regex) while decoding a server value.
type DecodeError struct {
	*ClientError
	DeclaredType string
}

func newDecodeError(declaredType, msg string, cause error) *DecodeError {
	return &DecodeError{
		ClientError:  newClientError(kindDecode, msg, cause),
		DeclaredType: declaredType,
	}
}

// ProgrammingError reports caller misuse: concurrent PageStream.Next
// calls, a zero PageQueue buffer budget, or a required nil argument.
// It is never retryable.
type ProgrammingError struct {
	*ClientError
}

func newProgrammingError(msg string) *ProgrammingError {
	return &ProgrammingError{ClientError: newClientError(kindProgramming, msg, nil)}
}

// ErrorLocation is a line/column pointer into the submitted SQL text.
type ErrorLocation struct {
	LineNumber   int `json:"lineNumber"`
	ColumnNumber int `json:"columnNumber"`
}

// StackFrame is one frame of a server-side failure's stack trace.
type StackFrame string

// FailureInfo is the cyclic error tree the coordinator returns for a
// server-side failure. It references itself through Cause and
// Suppressed, mirroring TrinoErrorCause's self-referential shape (see
// DESIGN.md "cyclic error structure").
type FailureInfo struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	Location   *ErrorLocation `json:"errorLocation,omitempty"`
	Stack      []StackFrame   `json:"stack,omitempty"`
	Suppressed []*FailureInfo `json:"suppressed,omitempty"`
	Cause      *FailureInfo   `json:"cause,omitempty"`
}

// ServerError is the error object embedded in a statement response page.
type ServerError struct {
	*ClientError
	Type        string         `json:"type"`
	ErrorCode   int            `json:"errorCode"`
	ErrorName   string         `json:"errorName"`
	ErrorType   string         `json:"errorType"`
	Location    *ErrorLocation `json:"errorLocation,omitempty"`
	FailureInfo *FailureInfo   `json:"failureInfo,omitempty"`
}

func newServerError(rawMessage, typ, errorName, errorType string, errorCode int, loc *ErrorLocation, fi *FailureInfo) *ServerError {
	return &ServerError{
		ClientError: newClientError(kindServer, rawMessage, nil),
		Type:        typ,
		ErrorCode:   errorCode,
		ErrorName:   errorName,
		ErrorType:   errorType,
		Location:    loc,
		FailureInfo: fi,
	}
}

// MultiError aggregates the errors captured by a PageQueue's background
// fetcher. Unlike errors.Join, callers can still index into Errors to
// find e.g. the *TimeoutError buried among transport failures, and
// errors.As over the aggregate finds the first match.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d errors occurred: %s", len(m.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the inner errors to errors.Is/errors.As via the
// multi-error unwrapping convention introduced by errors.Join.
func (m *MultiError) Unwrap() []error { return m.Errors }

// errorBag is a thread-safe bag of captured errors, as used by the
// PageQueue's background fetcher. Any consumer read must drain it first.
type errorBag struct {
	mu   chan struct{}
	errs []error
}

func newErrorBag() *errorBag {
	b := &errorBag{mu: make(chan struct{}, 1)}
	b.mu <- struct{}{}
	return b
}

func (b *errorBag) add(err error) {
	if err == nil {
		return
	}
	<-b.mu
	b.errs = append(b.errs, err)
	b.mu <- struct{}{}
}

func (b *errorBag) hasErrors() bool {
	<-b.mu
	n := len(b.errs)
	b.mu <- struct{}{}
	return n > 0
}

// throwIfErrors returns the aggregated MultiError if any error was
// captured, or nil otherwise.
func (b *errorBag) throwIfErrors() error {
	<-b.mu
	defer func() { b.mu <- struct{}{} }()
	if len(b.errs) == 0 {
		return nil
	}
	if len(b.errs) == 1 {
		return b.errs[0]
	}
	cp := make([]error, len(b.errs))
	copy(cp, b.errs)
	return &MultiError{Errors: cp}
}
