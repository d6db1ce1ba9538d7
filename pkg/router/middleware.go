package router

import "net/http"

// ComposeMiddleware builds a handler chain from middleware and a final handler.
// Middleware is executed in order (first to last), with the handler at the end.
func ComposeMiddleware(c *Context, mw []Middleware, handler func() error) error {
	if len(mw) == 0 {
		return handler()
	}

	// Build chain from end to start
	chain := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func() error {
			return m.Handle(c, next)
		}
	}

	return chain()
}

// Chain creates a middleware that combines multiple middleware in order.
func Chain(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(c *Context, next func() error) error {
		return ComposeMiddleware(c, middleware, next)
	})
}

// Skip bypasses mw when condition holds.
func Skip(condition func(c *Context) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(c *Context, next func() error) error {
		if condition(c) {
			return next()
		}
		return mw.Handle(c, next)
	})
}

// Only runs mw only when condition holds.
func Only(condition func(c *Context) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(c *Context, next func() error) error {
		if !condition(c) {
			return next()
		}
		return mw.Handle(c, next)
	})
}

// FromHTTP adapts net/http middleware to route middleware. The wrapped
// handler continues the chain; a wrapper that does not call it stops the
// chain without error.
func FromHTTP(wrap func(http.Handler) http.Handler) Middleware {
	return MiddlewareFunc(func(c *Context, next func() error) error {
		var err error
		wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Response, c.Request = w, r
			err = next()
		})).ServeHTTP(c.Response, c.Request)
		return err
	})
}
