// Package errors provides structured, actionable error messages for kiln.
//
// Every error carries a code (e.g. "E201") that maps to a registered
// template with a category, a short message and a detailed explanation.
// Errors can be enriched with details and suggestions, wrap an
// underlying cause, and be rendered for the terminal.
//
// # Error Categories
//
//   - bundle: dependency resolution and bundle assembly
//   - http: malformed requests reaching the distribution handler
//   - routing: route construction and matching
//   - config: kiln.json loading and validation
//   - cli: command line operations (init, build, publish)
//
// # Usage
//
//	err := errors.New(errors.CodeResolution).
//	    InModule("src/main.js").
//	    WithSpecifier("./missing").
//	    WithSuggestion("Check the import path and the configured extensions")
//
//	errors.Print(os.Stderr, err, "text")
//
// Print renders the whole chain of coded errors: "text" for the
// terminal, "compact" for one line prefixed with the HTTP status, and
// "json" for nested objects.
//
// # HTTP Mapping
//
// HTTPStatus maps any error to the status code the distribution handler
// reports. Only E205 (bad request) surfaces as a 4xx; every other coded
// or uncoded error is a 500.
package errors
