// Package redo implements the append-only redo-log: a durable
// segmented-file backend and an in-memory ephemeral backend, following the
// teacher's pkg/database/proof_artifact_repository.go length-prefixed
// record convention and pkg/database/errors.go's sentinel-error style.
package redo

import "errors"

// ErrKind classifies a redo-log failure into the taxonomy the spec
// describes: Serialization, IO, or Corruption.
type ErrKind string

const (
	ErrKindSerialization ErrKind = "serialization"
	ErrKindIO            ErrKind = "io"
	ErrKindCorruption    ErrKind = "corruption"
)

// Error wraps an underlying cause with a redo-log error kind.
type Error struct {
	Kind  ErrKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return "redo: " + string(e.Kind)
	}
	return "redo: " + string(e.Kind) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

func wrap(kind ErrKind, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: cause}
}

// Sentinel errors for common redo-log conditions.
var (
	ErrClosed       = errors.New("redo: log is closed")
	ErrOffsetBounds = errors.New("redo: offset out of bounds")
)
