// Package errors provides centralized error handling with category metadata
// used by the retry classifier and the error reports.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

// CategorizedError is an interface for errors that can specify their own category
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	// The four import error kinds. Validation and Unknown are terminal,
	// Network and Server are retryable.
	CategoryValidation ErrorCategory = "validation"
	CategoryNetwork    ErrorCategory = "network"
	CategoryServer     ErrorCategory = "server"
	CategoryUnknown    ErrorCategory = "unknown"

	// Categories for the surrounding plumbing
	CategoryDatabase      ErrorCategory = "database"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryCheckpoint    ErrorCategory = "checkpoint"
	CategoryMapping       ErrorCategory = "id-mapping"
	CategoryReport        ErrorCategory = "report"
	CategoryVerification  ErrorCategory = "verification"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryCancellation  ErrorCategory = "cancellation"
	CategoryGeneric       ErrorCategory = "generic"
)

// ComponentUnknown is used when the component is not set by the caller.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where error occurred
	Category  ErrorCategory  // Error category for better grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	mu        sync.RWMutex   // Protects Context reads
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking; two enhanced errors match when their
// categories match, which is what the retry classifier relies on.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// ErrorCategory implements CategorizedError.
func (ee *EnhancedError) ErrorCategory() ErrorCategory {
	return ee.Category
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetMessage returns the error message
func (ee *EnhancedError) GetMessage() string {
	if ee.Err != nil {
		return ee.Err.Error()
	}
	return ""
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// LegacyID records the originating legacy id so a human can cross-reference
// the error log against the source record.
func (eb *ErrorBuilder) LegacyID(id int64) *ErrorBuilder {
	return eb.Context("legacy_id", id)
}

// Timing adds performance timing context
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context["operation"] = operation
	eb.context["duration_ms"] = duration.Milliseconds()
	return eb
}

// Build creates the EnhancedError
func (eb *ErrorBuilder) Build() *EnhancedError {
	component := eb.component
	if component == "" {
		component = ComponentUnknown
	}
	category := eb.category
	if category == "" {
		category = detectCategory(eb.err)
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: component,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// detectCategory propagates the category from an already-categorized error
// in the chain, falling back to generic. Deliberately no message sniffing:
// classification happens where the error originates.
func detectCategory(err error) ErrorCategory {
	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}
	return CategoryGeneric
}

// Convenience constructors for common error patterns

// ValidationError creates a terminal validation error
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).Category(CategoryValidation).Build()
}

// NetworkError wraps a transport-level error
func NetworkError(err error) *EnhancedError {
	return New(err).Category(CategoryNetwork).Build()
}

// Standard library passthrough functions
// These allow this package to be a drop-in replacement for the standard errors package

// NewStd creates a new standard error (passthrough to standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target (passthrough to standard library)
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target (passthrough to standard library)
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err (passthrough to standard library)
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors (passthrough to standard library)
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if an error carries the specified category anywhere in
// its chain.
func IsCategory(err error, category ErrorCategory) bool {
	var catErr CategorizedError
	return As(err, &catErr) && catErr.ErrorCategory() == category
}

// IsRetryable reports whether the error should be retried by the import
// retry policy: network and server failures are retryable, validation and
// unknown failures are terminal.
func IsRetryable(err error) bool {
	return IsCategory(err, CategoryNetwork) || IsCategory(err, CategoryServer) || IsCategory(err, CategoryTimeout)
}
