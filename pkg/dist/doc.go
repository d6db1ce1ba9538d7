// Package dist serves bundles over HTTP.
//
// A request names its entry point in the query string:
//
//	GET /_kiln/bundle?entry=main.js&minify=true
//
// The handler builds the bundle through the bundle cache, answers
// conditional requests with 304 when If-None-Match carries the bundle's
// ETag, and compresses the body with the best encoding both sides accept.
// Bad requests get a 400 page; every other failure gets a generic 500 page
// and the details are logged.
package dist
