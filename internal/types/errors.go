package types

import (
	"errors"
	"fmt"
)

// ErrEngineUnavailable is returned when no analysis engine could be loaded.
var ErrEngineUnavailable = errors.New("mediainfo engine unavailable")

// MalformedInputError is returned when an engine document is not well-formed
// markup, or when a track node is missing its type attribute.
type MalformedInputError struct {
	Message string
	Err     error
	Line    int
	Offset  int64
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed document at line %d (offset %d): %s", e.Line, e.Offset, e.Message)
	}
	return fmt.Sprintf("malformed document at offset %d: %s", e.Offset, e.Message)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a local path handed to the engine does not
// exist and does not look like a URL.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no such file", e.Path)
}

// EngineError is returned when the engine fails to open or process a source
// for a reason other than a missing local file.
type EngineError struct {
	Source string
	Reason string
	Err    error
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("an error occurred while opening %s with the engine", e.Source)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports caller misuse detected before the engine is
// touched: a text-mode or unseekable stream, an out-of-range option value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// Warning represents a non-fatal issue encountered while acquiring a document.
//
// Warnings indicate problems that don't prevent metadata extraction but may
// make the result unreliable. Examples include:
//   - Pass-through options on an engine that cannot reset them
//   - Options the detected engine version does not understand
type Warning struct {
	// Stage where the warning occurred ("options", "engine", "document")
	Stage string

	// Warning message
	Message string
}

// String returns a human-readable warning message.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}
