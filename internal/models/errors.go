package models

import (
	"errors"
	"fmt"
)

// Error kinds. Only ErrSourceUnavailable escapes a load; the document and
// analytics kinds are absorbed per entity and logged.
var (
	ErrSourceUnavailable    = errors.New("source unavailable")
	ErrDocumentMissing      = errors.New("document missing")
	ErrDocumentMalformed    = errors.New("document malformed")
	ErrAnalyticsUnavailable = errors.New("analytics unavailable")

	ErrUnknownRow    = errors.New("unknown row")
	ErrUnknownField  = errors.New("unknown field")
	ErrReadOnlyField = errors.New("read-only field")
	ErrInvalidValue  = errors.New("invalid value")
)

// SourceError reports that a load root could not be read at all
type SourceError struct {
	Root string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Root, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Is matches ErrSourceUnavailable
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// DocumentError reports a per-entity document that was absent or unparseable.
// Kind is ErrDocumentMissing or ErrDocumentMalformed.
type DocumentError struct {
	Path string
	Kind error
	Err  error
}

func (e *DocumentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

func (e *DocumentError) Is(target error) bool {
	return target == e.Kind
}
