package router

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
)

// Context carries a matched request through middleware and the handler.
type Context struct {
	Request  *http.Request
	Response http.ResponseWriter

	// Params holds the route parameters extracted from the path.
	Params map[string]string

	// Query holds the decoded query string.
	Query map[string]string

	// Route is the matched route.
	Route *Route
}

// Param returns a route parameter, or "".
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// QueryValue returns a query parameter, or "".
func (c *Context) QueryValue(name string) string {
	return c.Query[name]
}

// Context returns the request context.
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// Text writes a plain-text response.
func (c *Context) Text(status int, body string) error {
	c.Response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.Response.WriteHeader(status)
	_, err := c.Response.Write([]byte(body))
	return err
}

// JSON writes v as a JSON response.
func (c *Context) JSON(status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Response.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.Response.WriteHeader(status)
	_, err = c.Response.Write(b)
	return err
}

// HandlerFunc handles a matched request. A returned error is rendered as an
// error page by the router.
type HandlerFunc func(c *Context) error

// Middleware wraps route handling. Implementations call next to continue
// the chain.
type Middleware interface {
	Handle(c *Context, next func() error) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(c *Context, next func() error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(c *Context, next func() error) error {
	return f(c, next)
}

// Route is a built, immutable route.
type Route struct {
	Method     string
	Pattern    string
	Handler    HandlerFunc
	Middleware []Middleware
	Metadata   *Metadata
}

// Metadata documents a route.
type Metadata struct {
	Summary     string
	Description string
	Tags        []string
	Params      []ParamDoc
	Responses   map[int]string
}

// ParamDoc documents one route or query parameter.
type ParamDoc struct {
	Name        string
	In          string // "path" or "query"
	Description string
	Required    bool
}

// StatusError is a handler error with an explicit status. Its message is
// shown to clients.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// Error returns a StatusError. An empty message uses the status text.
func Error(code int, message string) error {
	if message == "" {
		message = http.StatusText(code)
	}
	return &StatusError{Code: code, Message: message}
}

func asStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}
