package router

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/internal/logging"
	"github.com/vango-dev/kiln/pkg/errorpage"
)

// Router dispatches requests to the first matching route. Registration and
// dispatch are safe for concurrent use.
type Router struct {
	mu         sync.RWMutex
	routes     []*Route
	middleware []Middleware

	notFound http.Handler
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for handler errors.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = logging.OrDiscard(l) }
}

// WithNotFound sets the handler for unmatched paths. The default writes a
// 404 error page.
func WithNotFound(h http.Handler) Option {
	return func(r *Router) { r.notFound = h }
}

// New creates an empty Router.
func New(opts ...Option) *Router {
	r := &Router{logger: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add appends a built route. Routes match in the order they were added.
func (r *Router) Add(route *Route) {
	if route == nil {
		return
	}
	r.mu.Lock()
	r.routes = append(r.routes, route)
	r.mu.Unlock()
}

// Handle builds and adds a route in one step.
func (r *Router) Handle(method, pattern string, h HandlerFunc, mw ...Middleware) error {
	route, err := NewRoute(method, pattern).Handler(h).Use(mw...).Build()
	if err != nil {
		return err
	}
	r.Add(route)
	return nil
}

// Get adds a GET route.
func (r *Router) Get(pattern string, h HandlerFunc, mw ...Middleware) error {
	return r.Handle(http.MethodGet, pattern, h, mw...)
}

// Post adds a POST route.
func (r *Router) Post(pattern string, h HandlerFunc, mw ...Middleware) error {
	return r.Handle(http.MethodPost, pattern, h, mw...)
}

// Use appends middleware that runs before every route's own middleware.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	r.middleware = append(r.middleware, mw...)
	r.mu.Unlock()
}

// Routes returns the registered routes in match order.
func (r *Router) Routes() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Route(nil), r.routes...)
}

// Match returns the first route registered for method whose pattern matches
// path, with its parameters.
func (r *Router) Match(path, method string) (*Route, map[string]string, bool) {
	method = strings.ToUpper(method)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, route := range r.routes {
		if route.Method == method && Matches(route.Pattern, path) {
			return route, ExtractParams(route.Pattern, path), true
		}
	}
	return nil, nil, false
}

// allowed lists the methods of routes whose pattern matches path.
func (r *Router) allowed(path string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var methods []string
	for _, route := range r.routes {
		if !seen[route.Method] && Matches(route.Pattern, path) {
			seen[route.Method] = true
			methods = append(methods, route.Method)
		}
	}
	sort.Strings(methods)
	return methods
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	route, params, ok := r.Match(req.URL.Path, req.Method)
	if !ok {
		if methods := r.allowed(req.URL.Path); len(methods) > 0 {
			w.Header().Set("Allow", strings.Join(methods, ", "))
			errorpage.Write(w, http.StatusMethodNotAllowed, "")
			return
		}
		if r.notFound != nil {
			r.notFound.ServeHTTP(w, req)
			return
		}
		errorpage.Write(w, http.StatusNotFound, "")
		return
	}

	c := &Context{
		Request:  req,
		Response: w,
		Params:   params,
		Query:    ExtractQuery(req.URL.RequestURI()),
		Route:    route,
	}

	r.mu.RLock()
	chain := make([]Middleware, 0, len(r.middleware)+len(route.Middleware))
	chain = append(chain, r.middleware...)
	r.mu.RUnlock()
	chain = append(chain, route.Middleware...)

	err := ComposeMiddleware(c, chain, func() error {
		return route.Handler(c)
	})
	if err != nil {
		r.handleError(c, err)
	}
}

func (r *Router) handleError(c *Context, err error) {
	if se, ok := asStatusError(err); ok {
		r.logger.WarnContext(c.Context(), "handler returned status",
			"method", c.Route.Method, "pattern", c.Route.Pattern, "status", se.Code, "error", err)
		errorpage.Write(c.Response, se.Code, se.Message)
		return
	}

	status := errors.HTTPStatus(err)
	r.logger.ErrorContext(c.Context(), "handler failed",
		"method", c.Route.Method, "pattern", c.Route.Pattern, "status", status, "error", err)
	errorpage.Write(c.Response, status, errors.PublicMessage(err))
}
