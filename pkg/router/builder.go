package router

import (
	"net/http"
	"strings"

	"github.com/vango-dev/kiln/internal/errors"
)

// RouteBuilder assembles a Route. Method and pattern are fixed at
// construction; everything else is attached with chained calls.
type RouteBuilder struct {
	method     string
	pattern    string
	handler    HandlerFunc
	middleware []Middleware
	meta       Metadata
}

// NewRoute starts a route for method and pattern.
func NewRoute(method, pattern string) *RouteBuilder {
	return &RouteBuilder{
		method:  strings.ToUpper(method),
		pattern: pattern,
	}
}

// Handler sets the route handler.
func (b *RouteBuilder) Handler(h HandlerFunc) *RouteBuilder {
	b.handler = h
	return b
}

// HTTPHandler sets a plain http.Handler as the route handler.
func (b *RouteBuilder) HTTPHandler(h http.Handler) *RouteBuilder {
	if h == nil {
		b.handler = nil
		return b
	}
	b.handler = func(c *Context) error {
		h.ServeHTTP(c.Response, c.Request)
		return nil
	}
	return b
}

// Use appends route middleware.
func (b *RouteBuilder) Use(mw ...Middleware) *RouteBuilder {
	b.middleware = append(b.middleware, mw...)
	return b
}

// Summary sets a one-line summary.
func (b *RouteBuilder) Summary(s string) *RouteBuilder {
	b.meta.Summary = s
	return b
}

// Describe sets the route description.
func (b *RouteBuilder) Describe(s string) *RouteBuilder {
	b.meta.Description = s
	return b
}

// Tags appends documentation tags.
func (b *RouteBuilder) Tags(tags ...string) *RouteBuilder {
	b.meta.Tags = append(b.meta.Tags, tags...)
	return b
}

// Param documents a path parameter.
func (b *RouteBuilder) Param(name, description string) *RouteBuilder {
	b.meta.Params = append(b.meta.Params, ParamDoc{Name: name, In: "path", Description: description, Required: true})
	return b
}

// QueryParam documents a query parameter.
func (b *RouteBuilder) QueryParam(name, description string, required bool) *RouteBuilder {
	b.meta.Params = append(b.meta.Params, ParamDoc{Name: name, In: "query", Description: description, Required: required})
	return b
}

// Response documents a response status.
func (b *RouteBuilder) Response(status int, description string) *RouteBuilder {
	if b.meta.Responses == nil {
		b.meta.Responses = make(map[int]string)
	}
	b.meta.Responses[status] = description
	return b
}

// Build returns the route, or a MissingHandlerError (E206) when no handler
// was set.
func (b *RouteBuilder) Build() (*Route, error) {
	if b.handler == nil {
		return nil, errors.New(errors.CodeMissingHandler).
			WithDetailf("%s %s", b.method, b.pattern).
			WithSuggestion("Call Handler before Build")
	}

	meta := b.meta
	meta.Tags = append([]string(nil), b.meta.Tags...)
	meta.Params = append([]ParamDoc(nil), b.meta.Params...)
	if b.meta.Responses != nil {
		meta.Responses = make(map[int]string, len(b.meta.Responses))
		for k, v := range b.meta.Responses {
			meta.Responses[k] = v
		}
	}

	return &Route{
		Method:     b.method,
		Pattern:    b.pattern,
		Handler:    b.handler,
		Middleware: append([]Middleware(nil), b.middleware...),
		Metadata:   &meta,
	}, nil
}

// MustBuild is Build that panics on error, for static route tables.
func (b *RouteBuilder) MustBuild() *Route {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}
