// Package errors provides structured, coded errors for atomik's CLI and
// configuration surfaces. Engine errors stay plain (see pkg/atomik); these
// carry suggestions and details for human-readable terminal output.
package errors

import "strings"

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryStorage Category = "storage"
	CategoryCLI     Category = "cli"
)

// AtomikError is a structured error with a stable code, a short message,
// and optional detail and suggestions.
type AtomikError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (config, storage, cli).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestions are actionable hints for fixing the error.
	Suggestions []string

	// Err is the wrapped underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *AtomikError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AtomikError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a longer explanation.
func (e *AtomikError) WithDetail(d string) *AtomikError {
	e.Detail = d
	return e
}

// WithSuggestion appends an actionable hint.
func (e *AtomikError) WithSuggestion(s string) *AtomikError {
	e.Suggestions = append(e.Suggestions, s)
	return e
}

// Wrap attaches an underlying error.
func (e *AtomikError) Wrap(err error) *AtomikError {
	e.Err = err
	return e
}

// Format renders the error for terminal output, one suggestion per line.
func (e *AtomikError) Format() string {
	var b strings.Builder
	b.WriteString("error ")
	b.WriteString(e.Error())
	for _, s := range e.Suggestions {
		b.WriteString("\n  hint: ")
		b.WriteString(s)
	}
	return b.String()
}
