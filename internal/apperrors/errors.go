// Package apperrors defines the structured error taxonomy shared by the
// upstream client, collectors, analyzers and scheduler.
package apperrors

import (
	"fmt"
	"runtime"
	"time"
)

// Kind enumerates the error taxonomy from the error handling design: these
// are error KINDS, not Go types, so a single wrapped error can be tested
// against one with Is.
type Kind string

const (
	KindUpstreamTransport Kind = "upstream_transport"
	KindUpstreamRateLimit Kind = "upstream_ratelimit"
	KindUpstreamServer    Kind = "upstream_server"
	KindUpstreamClient    Kind = "upstream_client"
	KindDataValidation    Kind = "data_validation"
	KindConfig            Kind = "config"
	KindAnalysis          Kind = "analysis"
	KindStoreConflict     Kind = "store_conflict"
)

// Severity mirrors alert severity vocabulary so job-run and alert logging
// can share one scale.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Error is the structured error type produced across the pipeline.
type Error struct {
	Kind      Kind
	Message   string
	Details   map[string]interface{}
	Severity  Severity
	Timestamp time.Time
	File      string
	Line      int
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a diagnostic key/value to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new Error of the given kind.
func New(kind Kind, message string) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		Kind:      kind,
		Message:   message,
		Severity:  defaultSeverity(kind),
		Timestamp: time.Now(),
		File:      file,
		Line:      line,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	err := New(kind, fmt.Sprintf(format, args...))
	return err
}

// Wrap wraps cause with kind and message; returns nil if cause is nil.
func Wrap(cause error, kind Kind, message string) *Error {
	if cause == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		Kind:      kind,
		Message:   message,
		Severity:  defaultSeverity(kind),
		Timestamp: time.Now(),
		File:      file,
		Line:      line,
		Cause:     cause,
	}
}

// Wrapf wraps cause with a formatted message.
func Wrapf(cause error, kind Kind, format string, args ...interface{}) *Error {
	return Wrap(cause, kind, fmt.Sprintf(format, args...))
}

// GetKind extracts the Kind from an error chain, empty string if none.
func GetKind(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return ""
}

// As walks err's Unwrap chain looking for *Error.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// IsRetryable reports whether the error's kind should be retried by the
// upstream client per the §4.2 retry contract: transport errors, 429s and
// 5xx are retryable; everything else fails fast.
func IsRetryable(err error) bool {
	switch GetKind(err) {
	case KindUpstreamTransport, KindUpstreamRateLimit, KindUpstreamServer:
		return true
	default:
		return false
	}
}

// Truncate clamps an error message to the job-run storage limit (§7: ≤ 500
// chars).
func Truncate(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	return msg[:limit]
}

func defaultSeverity(kind Kind) Severity {
	switch kind {
	case KindUpstreamServer, KindConfig, KindStoreConflict:
		return SeverityHigh
	case KindUpstreamTransport, KindUpstreamRateLimit, KindAnalysis:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
