package errors

import "fmt"

// Severity buckets a call error by how the session must react to it.
type Severity string

const (
	// SeverityFatal means the session cannot proceed; the UI replaces
	// the whole view with an error panel and a single recovery action.
	SeverityFatal Severity = "fatal"
	// SeverityDegraded means a feature is unavailable but the session
	// continues; shown as a dismissible banner.
	SeverityDegraded Severity = "degraded"
	// SeverityTransient marks best-effort failures that are logged and
	// never surfaced as blocking.
	SeverityTransient Severity = "transient"
)

// Code identifies the failing operation class.
type Code string

const (
	CodeAuth        Code = "AUTH"
	CodeCapacity    Code = "CAPACITY"
	CodeNotStarted  Code = "NOT_STARTED"
	CodeJoinFailed  Code = "JOIN_FAILED"
	CodePermission  Code = "PERMISSION_DENIED"
	CodeScreenShare Code = "SCREEN_SHARE_UNAVAILABLE"
	CodeRoster      Code = "ROSTER_UNAVAILABLE"
	CodeTeardown    Code = "TEARDOWN_PARTIAL"
	CodeTransport   Code = "TRANSPORT"
	CodeInternal    Code = "INTERNAL"
)

// CallError is an error classified at an operation boundary.
type CallError struct {
	Code     Code
	Severity Severity
	Message  string
	Cause    error
}

func (e *CallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CallError) Unwrap() error { return e.Cause }

// New creates a classified error without a cause.
func New(code Code, severity Severity, message string) *CallError {
	return &CallError{Code: code, Severity: severity, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(err error, code Code, severity Severity, message string) *CallError {
	return &CallError{Code: code, Severity: severity, Message: message, Cause: err}
}

// Common constructors.

func Fatal(code Code, message string, cause error) *CallError {
	return &CallError{Code: code, Severity: SeverityFatal, Message: message, Cause: cause}
}

func Degraded(code Code, message string, cause error) *CallError {
	return &CallError{Code: code, Severity: SeverityDegraded, Message: message, Cause: cause}
}

func Transient(code Code, message string, cause error) *CallError {
	return &CallError{Code: code, Severity: SeverityTransient, Message: message, Cause: cause}
}

// SeverityOf extracts the severity from an error chain. Unclassified
// errors default to fatal so nothing slips through as ignorable.
func SeverityOf(err error) Severity {
	if ce := AsCallError(err); ce != nil {
		return ce.Severity
	}
	return SeverityFatal
}

// IsFatal reports whether the error chain carries a fatal classification.
func IsFatal(err error) bool {
	return err != nil && SeverityOf(err) == SeverityFatal
}

// AsCallError extracts a CallError from an error chain, or nil.
func AsCallError(err error) *CallError {
	for err != nil {
		if ce, ok := err.(*CallError); ok {
			return ce
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}
