// Package errs defines the closed set of failure kinds the pipeline
// propagates in per-filing outcomes. Every error raised inside a filing's
// processing scope is classified into exactly one Kind at the orchestrator
// boundary via KindOf.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a failure class. The set is closed: downstream consumers
// (outcome records, the run report) switch on these values.
type Kind string

const (
	// KindConfig is fatal: missing contact email or sink credentials.
	// The supervisor aborts before any fetch.
	KindConfig Kind = "ConfigError"

	// KindNotFound covers unresolved CIKs, empty filing lists, and 404s.
	KindNotFound Kind = "NotFound"

	// KindRateLimited is a 429 that survived all retries.
	KindRateLimited Kind = "RateLimited"

	// KindFetch is any other network or HTTP failure.
	KindFetch Kind = "FetchError"

	// KindParse means every parsing strategy refused the document.
	KindParse Kind = "ParseError"

	// KindSerialize means the serializer produced no output or the sink
	// refused the write. The partial artifact is never committed.
	KindSerialize Kind = "SerializeError"

	// KindFiscalAmbiguous is warning-grade: attribution proceeded with
	// reduced confidence.
	KindFiscalAmbiguous Kind = "FiscalAmbiguous"

	// KindUnknown is returned by KindOf for errors raised outside the
	// classified paths (programming errors, context cancellation).
	KindUnknown Kind = "Unknown"
)

// Error pairs a Kind with an underlying cause. It supports errors.Is/As so
// classification survives wrapping by eris or fmt.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error from a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf walks the error chain and returns the first classified Kind,
// or KindUnknown when the chain carries none.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Fatal reports whether the error must abort the whole run rather than a
// single filing or ticker.
func Fatal(err error) bool {
	return IsKind(err, KindConfig)
}
