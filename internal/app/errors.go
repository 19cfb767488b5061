package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCardDetected means the extraction provider answered with its
	// "no card or text detected" sentinel instead of a field mapping.
	ErrNoCardDetected = errors.New("no card or text detected")

	// ErrNoTranscript means transcription returned no usable text.
	ErrNoTranscript = errors.New("no transcript produced")

	// ErrSessionNotFound means the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError reports bad caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamFormatError means an upstream model response could not be parsed
// as the expected JSON object. Raw carries the verbatim response text.
type UpstreamFormatError struct {
	Raw string
	Err error
}

func (e *UpstreamFormatError) Error() string {
	return fmt.Sprintf("unparseable upstream response: %v", e.Err)
}

func (e *UpstreamFormatError) Unwrap() error { return e.Err }

// ClassificationError means both the initial decode and the repair re-ask
// failed. Raw carries the last raw model output for operator diagnosis.
type ClassificationError struct {
	Raw string
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("lead classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
