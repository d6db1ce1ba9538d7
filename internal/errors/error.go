package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryBundle  Category = "bundle"
	CategoryHTTP    Category = "http"
	CategoryRouting Category = "routing"
	CategoryConfig  Category = "config"
	CategoryCLI     Category = "cli"
)

// Registered error codes used across kiln.
const (
	CodeConfigInvalid  = "E120"
	CodeConfigNotFound = "E141"
	CodeBuildFailed    = "E142"
	CodePublishFailed  = "E150"
	CodeScaffold       = "E160"

	CodeResolution     = "E201"
	CodeDepthExceeded  = "E202"
	CodeRead           = "E203"
	CodeTimeout        = "E204"
	CodeBadRequest     = "E205"
	CodeMissingHandler = "E206"
)

// KilnError is a structured error with a code, details and suggestions.
type KilnError struct {
	// Code is a unique error identifier (e.g., "E201").
	Code string

	// Category is the error type (bundle, http, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Module is the root-relative module the error occurred in.
	Module string

	// Specifier is the import specifier being resolved, if any.
	Specifier string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *KilnError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if loc := e.location(); loc != "" {
		msg += " [" + loc + "]"
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *KilnError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *KilnError) WithSuggestion(s string) *KilnError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *KilnError) WithDetail(d string) *KilnError {
	e.Detail = d
	return e
}

// WithDetailf is WithDetail with fmt formatting.
func (e *KilnError) WithDetailf(format string, args ...any) *KilnError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// InModule records the module the error occurred in.
func (e *KilnError) InModule(path string) *KilnError {
	e.Module = path
	return e
}

// WithSpecifier records the import specifier that failed.
func (e *KilnError) WithSpecifier(spec string) *KilnError {
	e.Specifier = spec
	return e
}

// location renders Module and Specifier as `import "./x" in src/a.js`.
func (e *KilnError) location() string {
	switch {
	case e.Specifier != "" && e.Module != "":
		return fmt.Sprintf("import %q in %s", e.Specifier, e.Module)
	case e.Specifier != "":
		return fmt.Sprintf("import %q", e.Specifier)
	default:
		return e.Module
	}
}

// Wrap wraps another error.
func (e *KilnError) Wrap(err error) *KilnError {
	e.Wrapped = err
	return e
}

// New creates a KilnError from a registered error code.
func New(code string) *KilnError {
	template, ok := registry[code]
	if !ok {
		return &KilnError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &KilnError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new KilnError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *KilnError {
	return &KilnError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a KilnError.
// An error that already is (or wraps) a KilnError is returned as that KilnError.
func FromError(err error, code string) *KilnError {
	if err == nil {
		return nil
	}
	var ke *KilnError
	if stderrors.As(err, &ke) {
		return ke
	}
	return New(code).Wrap(err)
}

// CodeOf returns the code of the first KilnError in err's chain, or "".
func CodeOf(err error) string {
	var ke *KilnError
	if stderrors.As(err, &ke) {
		return ke.Code
	}
	return ""
}

// HasCode reports whether any KilnError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if ke, ok := err.(*KilnError); ok && ke.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
