package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	CLI-facing error taxonomy
//
// ===========================================================================

// ConfigurationError reports a malformed, missing or unknown configuration value.
// It is raised while building a model, before any data is loaded.
type ConfigurationError struct {
	Key        string
	Reason     string
	Suggestion string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("automl: configuration error")
	if e.Key != "" {
		fmt.Fprintf(&b, " at %q", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	return b.String()
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("key", e.Key).
		Str("reason", e.Reason).
		Str("suggestion", e.Suggestion).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(key, reason string) error {
	return errors.WithStack(&ConfigurationError{Key: key, Reason: reason})
}

// NewConfigurationErrorf is NewConfigurationError with a formatted reason.
func NewConfigurationErrorf(key, format string, args ...interface{}) error {
	return NewConfigurationError(key, fmt.Sprintf(format, args...))
}

// NewUnknownNameError reports that name is not one of candidates and
// suggests the closest candidate when one is near enough.
func NewUnknownNameError(key, kind, name string, candidates []string) error {
	return errors.WithStack(&ConfigurationError{
		Key:        key,
		Reason:     fmt.Sprintf("unknown %s %q (available: %s)", kind, name, strings.Join(candidates, ", ")),
		Suggestion: ClosestName(name, candidates),
	})
}

// UnsupportedFormatError reports a data path whose extension has no decoder.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("automl: unsupported file format: %s", e.Path)
	}
	return fmt.Sprintf("automl: unsupported file format %q: %s", e.Ext, e.Path)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *UnsupportedFormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("ext", e.Ext).
		Str("type", "UnsupportedFormatError")
}

// NewUnsupportedFormatError creates an UnsupportedFormatError with a stack trace.
func NewUnsupportedFormatError(path, ext string) error {
	return errors.WithStack(&UnsupportedFormatError{Path: path, Ext: ext})
}

// DataFormatError reports a decodable file with unusable content.
type DataFormatError struct {
	Path   string
	Column string
	Row    int // -1 when the problem is not tied to a row
	Reason string
}

func (e *DataFormatError) Error() string {
	var b strings.Builder
	b.WriteString("automl: invalid data")
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %q", e.Column)
	}
	if e.Row >= 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *DataFormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("column", e.Column).
		Int("row", e.Row).
		Str("reason", e.Reason).
		Str("type", "DataFormatError")
}

// NewDataFormatError creates a DataFormatError that is not tied to a row.
func NewDataFormatError(path, column, reason string) error {
	return errors.WithStack(&DataFormatError{Path: path, Column: column, Row: -1, Reason: reason})
}

// NewDataFormatErrorAt creates a DataFormatError for a single cell.
func NewDataFormatErrorAt(path, column string, row int, reason string) error {
	return errors.WithStack(&DataFormatError{Path: path, Column: column, Row: row, Reason: reason})
}

// MissingTargetError reports a file without the target column where one is required.
type MissingTargetError struct {
	Column string
	Path   string
}

func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("automl: target column %q does not exist in %s", e.Column, e.Path)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *MissingTargetError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("path", e.Path).
		Str("type", "MissingTargetError")
}

// NewMissingTargetError creates a MissingTargetError with a stack trace.
func NewMissingTargetError(column, path string) error {
	return errors.WithStack(&MissingTargetError{Column: column, Path: path})
}

// UntrainedModelError reports an operation that needs a fitted estimator on a model without one.
type UntrainedModelError struct {
	Model string
	Op    string
}

func (e *UntrainedModelError) Error() string {
	return fmt.Sprintf("automl: %s: model is not trained yet, run train before %s", e.Model, e.Op)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *UntrainedModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model", e.Model).
		Str("operation", e.Op).
		Str("type", "UntrainedModelError")
}

// NewUntrainedModelError creates an UntrainedModelError with a stack trace.
func NewUntrainedModelError(model, op string) error {
	return errors.WithStack(&UntrainedModelError{Model: model, Op: op})
}

// BackendUnavailableError reports an engine that was not compiled into this binary.
type BackendUnavailableError struct {
	Backend  string
	BuildTag string
}

func (e *BackendUnavailableError) Error() string {
	if e.BuildTag != "" {
		return fmt.Sprintf("automl: backend %q is not available in this build (built with tag %s?)", e.Backend, e.BuildTag)
	}
	return fmt.Sprintf("automl: backend %q is not available in this build", e.Backend)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *BackendUnavailableError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("backend", e.Backend).
		Str("build_tag", e.BuildTag).
		Str("type", "BackendUnavailableError")
}

// NewBackendUnavailableError creates a BackendUnavailableError with a stack trace.
func NewBackendUnavailableError(backend, buildTag string) error {
	return errors.WithStack(&BackendUnavailableError{Backend: backend, BuildTag: buildTag})
}
