// Package router matches HTTP requests to routes and runs their
// middleware chains.
//
// Routes are registered in order and the first route whose method and
// pattern match a request wins; there is no best-match ranking.
//
// # Patterns
//
// A pattern is a slash-separated path whose segments are either literal or
// parameters:
//
//	/users              literal
//	/users/:id         :id matches any single non-empty segment
//	/files/:name?      the "?" is dropped from the parameter name
//
// Matching is segment-count exact. /users/:id matches /users/42 but not
// /users or /users/42/profile. A "?" marker names an optional parameter but
// does not make the segment optional: /files/:name? still needs two
// segments.
//
// # Building routes
//
// Routes are assembled with a RouteBuilder and are immutable once built:
//
//	route, err := router.NewRoute("GET", "/users/:id").
//	    Handler(showUser).
//	    Use(requireAuth).
//	    Describe("Fetch a user").
//	    Param("id", "User ID").
//	    Response(200, "The user").
//	    Build()
//
// Route metadata feeds Router.OpenAPI, which documents the registered
// routes as an OpenAPI 3.0 document.
//
// # Middleware
//
// Middleware wraps route handlers. Global middleware added with Router.Use
// runs before a route's own middleware:
//
//	r.Use(router.MiddlewareFunc(func(c *router.Context, next func() error) error {
//	    start := time.Now()
//	    err := next()
//	    log.Printf("%s took %s", c.Request.URL.Path, time.Since(start))
//	    return err
//	}))
package router
