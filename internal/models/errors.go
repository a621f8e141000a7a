package models

import (
	"errors"
	"fmt"
)

// Error classes. Typed errors below match these with errors.Is.
var (
	// ErrConfiguration marks invalid configuration detected before any work starts.
	ErrConfiguration = errors.New("configuration error")

	// ErrSourceRead marks a source that could not be opened or parsed.
	ErrSourceRead = errors.New("source read error")

	// ErrEmbedding marks a failed or cancelled embedding call.
	ErrEmbedding = errors.New("embedding error")

	// ErrStore marks a failed vector store operation.
	ErrStore = errors.New("store error")

	// ErrMixedSourceTypes is returned by the single-type ingestion path for a batch spanning several extensions.
	ErrMixedSourceTypes = errors.New("mixed source types in single-type ingestion")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// ConfigurationError describes an invalid configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError returns a ConfigurationError for field.
func NewConfigurationError(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SourceReadError wraps a failure to read one source.
type SourceReadError struct {
	Source string
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("read source %s: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

func (e *SourceReadError) Is(target error) bool { return target == ErrSourceRead }

// EmbeddingError wraps a failed embedding call for one item.
type EmbeddingError struct {
	ItemID string
	Source string
	Err    error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed item %s (source %s): %v", e.ItemID, e.Source, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// StoreError wraps a failed vector store operation. Uncertain is set when the collection
// may have been left in a partial state (e.g. a failed drop).
type StoreError struct {
	Op        string
	ItemID    string
	Uncertain bool
	Err       error
}

func (e *StoreError) Error() string {
	msg := "store " + e.Op
	if e.ItemID != "" {
		msg += " " + e.ItemID
	}
	if e.Uncertain {
		msg += " (collection state uncertain)"
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }
