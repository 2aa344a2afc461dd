// Package errkind classifies sync errors so the engine's retry policy can
// decide whether a cycle failure is worth retrying without string-matching.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies the origin of a sync error.
type Kind int

const (
	// Other is an unclassified error; treated the same as a transient one.
	Other Kind = iota
	// Network covers TLS/dial/read/write failures against the IMAP server.
	Network
	// Protocol covers missing capabilities and malformed server responses
	// that are fatal to a cycle but not to the process (a misbehaving
	// server is transient, not fatal).
	Protocol
	// Db covers cache database errors other than "row not found".
	Db
	// Maildir covers filesystem errors against the Maildir, other than
	// deleting a file that is already gone.
	Maildir
	// Cancelled means the engine was asked to exit; never retried.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Protocol:
		return "protocol"
	case Db:
		return "db"
	case Maildir:
		return "maildir"
	case Cancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// SyncError pairs an error with its Kind so callers can classify it with
// errors.As without parsing messages.
type SyncError struct {
	Kind  Kind
	Cause error
}

func (e *SyncError) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Wrap tags err with kind. Returns nil if err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &SyncError{Kind: kind, Cause: err}
}

// Wrapf tags a newly formatted error with kind.
func Wrapf(kind Kind, format string, args ...interface{}) error {
	return &SyncError{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// Is reports whether err (or something it wraps) was tagged with kind.
func Is(err error, kind Kind) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf returns the Kind of the first SyncError found by unwrapping err,
// or Other if none is found.
func KindOf(err error) Kind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return Other
}

// Retryable reports whether a cycle-level error should be retried after the
// backoff sleep rather than treated as fatal to the process. Every kind
// except Cancelled is retried — a misbehaving server (Protocol) is treated
// transiently, same as a network blip.
func Retryable(err error) bool {
	return KindOf(err) != Cancelled
}
