package core

import (
	"errors"
	"fmt"
)

// FailureKind classifies pipeline and export failures.
type FailureKind string

const (
	KindUnsupportedFileType  FailureKind = "unsupported file type"
	KindParseFailure         FailureKind = "parse failure"
	KindUnsupportedStructure FailureKind = "unsupported structure"
	KindEmptyDataset         FailureKind = "empty dataset"
	KindExportLibraryMissing FailureKind = "export library missing"
	KindExportFailure        FailureKind = "export failure"
)

// ParseFormat names which interpretation a ParseFailure came from.
type ParseFormat string

const (
	FormatJSON      ParseFormat = "json"
	FormatDelimited ParseFormat = "delimited"
)

// Sentinel errors. FailureError values match these with errors.Is.
var (
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrParseJSON            = errors.New("parse failure (json)")
	ErrParseDelimited       = errors.New("parse failure (delimited)")
	ErrUnsupportedStructure = errors.New("unsupported structure")
	ErrDepthExceeded        = errors.New("nesting depth exceeded")
	ErrEmptyDataset         = errors.New("empty dataset")
	ErrExportLibraryMissing = errors.New("export library missing")
	ErrExportFailure        = errors.New("export failure")
	ErrPageOutOfRange       = errors.New("page out of range")
	ErrFileTooLarge         = errors.New("file too large")
	ErrSessionNotFound      = errors.New("session not found")
	ErrNoFile               = errors.New("no file provided")
)

// FailureError carries the kind of a failure, a short detail for logs, and
// the underlying cause.
type FailureError struct {
	Kind   FailureKind
	Format ParseFormat // set for KindParseFailure
	Detail string
	Err    error
}

func (e *FailureError) Error() string {
	msg := string(e.Kind)
	if e.Format != "" {
		msg += " (" + string(e.Format) + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FailureError) Unwrap() error { return e.Err }

// Is matches the sentinel that corresponds to the failure kind.
func (e *FailureError) Is(target error) bool {
	switch target {
	case ErrUnsupportedFileType:
		return e.Kind == KindUnsupportedFileType
	case ErrParseJSON:
		return e.Kind == KindParseFailure && e.Format == FormatJSON
	case ErrParseDelimited:
		return e.Kind == KindParseFailure && e.Format == FormatDelimited
	case ErrUnsupportedStructure:
		return e.Kind == KindUnsupportedStructure
	case ErrEmptyDataset:
		return e.Kind == KindEmptyDataset
	case ErrExportLibraryMissing:
		return e.Kind == KindExportLibraryMissing
	case ErrExportFailure:
		return e.Kind == KindExportFailure
	}
	return false
}

func unsupportedFileType(mime string) error {
	return &FailureError{Kind: KindUnsupportedFileType, Detail: fmt.Sprintf("%q", mime)}
}

func parseFailure(format ParseFormat, err error) error {
	return &FailureError{Kind: KindParseFailure, Format: format, Err: err}
}

func unsupportedStructure(detail string) error {
	return &FailureError{Kind: KindUnsupportedStructure, Detail: detail}
}

func emptyDataset(detail string) error {
	return &FailureError{Kind: KindEmptyDataset, Detail: detail}
}

func exportLibraryMissing(format ExportFormat) error {
	return &FailureError{Kind: KindExportLibraryMissing, Detail: string(format)}
}

func exportFailure(format ExportFormat, err error) error {
	return &FailureError{Kind: KindExportFailure, Detail: string(format), Err: err}
}
