package model

import (
	"github.com/tastebase/recipe-migrate/internal/errors"
)

// ErrorKind classifies an import failure. It mirrors the error categories
// of internal/errors so exhaustive handling is enforced by the type rather
// than by string comparison.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindServer     ErrorKind = "server"
	ErrorKindUnknown    ErrorKind = "unknown"
)

// ClassifyError maps an error to its import error kind.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.IsCategory(err, errors.CategoryValidation):
		return ErrorKindValidation
	case errors.IsCategory(err, errors.CategoryNetwork), errors.IsCategory(err, errors.CategoryTimeout):
		return ErrorKindNetwork
	case errors.IsCategory(err, errors.CategoryServer):
		return ErrorKindServer
	default:
		return ErrorKindUnknown
	}
}

// ImportResult is the unit of information flowing out of every import
// attempt and into both the progress tracker and the report generator.
type ImportResult struct {
	Success    bool      `json:"success"`
	Kind       RecordKind `json:"kind"`
	LegacyID   int64     `json:"legacyId"`
	Label      string    `json:"label,omitempty"`
	NewID      string    `json:"newId,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"errorType,omitempty"`
	RetryCount int       `json:"retryCount,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// Succeeded builds a success result for a record.
func Succeeded(rec Record, newID string, retries int) ImportResult {
	return ImportResult{
		Success:    true,
		Kind:       rec.Kind(),
		LegacyID:   rec.GetLegacyID(),
		Label:      rec.Label(),
		NewID:      newID,
		RetryCount: retries,
	}
}

// Failed builds a failure result for a record, classifying the error.
func Failed(rec Record, err error, retries int) ImportResult {
	return ImportResult{
		Success:    false,
		Kind:       rec.Kind(),
		LegacyID:   rec.GetLegacyID(),
		Label:      rec.Label(),
		Error:      err.Error(),
		ErrorKind:  ClassifyError(err),
		RetryCount: retries,
	}
}
