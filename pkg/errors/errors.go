// Package errors provides structured error types for the head view renderer.
// Errors carry a code, a category, key/value context and suggestions.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Category classifies errors for consistent handling and display.
type Category string

const (
	CategoryConfig     Category = "config"     // Configuration loading/parsing errors
	CategoryValidation Category = "validation" // Input shape and index errors
	CategoryCommand    Category = "command"    // Shell command errors
	CategoryIO         Category = "io"         // File, input document and display errors
	CategoryInternal   Category = "internal"   // Unexpected states
)

// Error is a structured error with context and suggestions.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code identifies the error type (e.g. "SHAPE_MISMATCH").
	Code string

	// Category classifies this error.
	Category Category

	// Message describes what went wrong.
	Message string

	// Context provides additional key-value details.
	Context map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Suggestions are remediation steps for the user.
	Suggestions []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an Error with the given code, category, and message.
func New(code string, category Category, message string) *Error {
	return &Error{
		Code:     code,
		Category: category,
		Message:  message,
		Context:  make(map[string]string),
	}
}

// Newf creates an Error with a formatted message.
func Newf(code string, category Category, format string, args ...interface{}) *Error {
	return New(code, category, fmt.Sprintf(format, args...))
}

// Wrap wraps err with a new Error.
func Wrap(err error, code string, category Category, message string) *Error {
	return New(code, category, message).WithCause(err)
}

// WithContext adds a context key-value pair.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithSuggestion appends a remediation suggestion.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// HasContext returns true if the error has context information.
func (e *Error) HasContext() bool {
	return len(e.Context) > 0
}

// HasSuggestions returns true if the error has suggestions.
func (e *Error) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// ContextString returns the context entries as sorted key="value" pairs.
func (e *Error) ContextString() string {
	if len(e.Context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, e.Context[k]))
	}
	return strings.Join(parts, ", ")
}

// As attempts to convert err to an *Error, following the wrap chain.
func As(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// IsCode checks if err is (or wraps) an *Error with the given code.
func IsCode(err error, code string) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}

// IsCategory checks if err is (or wraps) an *Error with the given category.
func IsCategory(err error, category Category) bool {
	if e, ok := As(err); ok {
		return e.Category == category
	}
	return false
}
