// Package errors classifies pipeline failures so callers can tell a
// recoverable per-file problem from a batch-fatal one.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure.
type Kind int

const (
	// KindParse - one file failed to parse; logged, file skipped, batch continues.
	KindParse Kind = iota
	// KindResolve - one symbol could not be resolved; the edge is dropped.
	KindResolve
	// KindIO - transient I/O failure; the batch fails with the error attached.
	KindIO
	// KindInvariant - a programming error (e.g. duplicate UUIDs in a batch);
	// the batch must fail and report the offending set.
	KindInvariant
	// KindCollaborator - graph store, embedding or vision failure; propagates
	// upward, captured metadata stays intact.
	KindCollaborator
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindResolve:
		return "resolve"
	case KindIO:
		return "io"
	case KindInvariant:
		return "invariant"
	case KindCollaborator:
		return "collaborator"
	default:
		return "unknown"
	}
}

// Error is a classified pipeline failure.
type Error struct {
	Kind    Kind
	Subject string // file path, symbol name, or collaborator name
	Cause   error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s failure (%s): %v", e.Kind, e.Subject, e.Cause)
	}
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Fatal reports whether the failure must abort its batch. Parse and resolve
// failures are recovered locally; everything else propagates.
func (e *Error) Fatal() bool {
	return e.Kind != KindParse && e.Kind != KindResolve
}

// New wraps a cause with a kind and subject.
func New(kind Kind, subject string, cause error) *Error {
	return &Error{Kind: kind, Subject: subject, Cause: cause}
}

// Parse marks a per-file parse failure.
func Parse(file string, cause error) *Error {
	return New(KindParse, file, cause)
}

// Resolve marks a per-symbol resolution failure.
func Resolve(symbol string, cause error) *Error {
	return New(KindResolve, symbol, cause)
}

// IO marks a transient I/O failure.
func IO(path string, cause error) *Error {
	return New(KindIO, path, cause)
}

// Invariant marks a programming error that must fail the batch.
func Invariant(subject string, cause error) *Error {
	return New(KindInvariant, subject, cause)
}

// Collaborator marks a failure in an external collaborator.
func Collaborator(name string, cause error) *Error {
	return New(KindCollaborator, name, cause)
}

// KindOf extracts the kind from an error chain; ok is false for
// unclassified errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsFatal reports whether an error chain carries a batch-fatal failure.
// Unclassified errors are treated as fatal.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal()
	}
	return err != nil
}
