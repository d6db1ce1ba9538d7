package server

import (
	"io/fs"
	"log/slog"

	"github.com/vango-dev/kiln/pkg/middleware"
	"github.com/vango-dev/kiln/pkg/router"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the base logger. Components derive from it.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRouter sets the application router requests fall through to.
func WithRouter(r *router.Router) Option {
	return func(s *Server) {
		if r != nil {
			s.router = r
		}
	}
}

// WithDev enables the file watcher and the live-reload endpoints.
func WithDev(dev bool) Option {
	return func(s *Server) { s.dev = dev }
}

// WithBundleFS replaces the bundle root directory.
func WithBundleFS(fsys fs.FS) Option {
	return func(s *Server) { s.bundleFS = fsys }
}

// WithStaticFS replaces the static directory.
func WithStaticFS(fsys fs.FS) Option {
	return func(s *Server) { s.staticFS = fsys }
}

// WithTracing passes options to the tracing middleware.
func WithTracing(opts ...middleware.OTelOption) Option {
	return func(s *Server) { s.tracing = append(s.tracing, opts...) }
}

// WithMiddleware registers a named middleware factory that
// server.middleware may reference.
func WithMiddleware(name string, f middleware.Factory) Option {
	return func(s *Server) {
		if s.extra == nil {
			s.extra = make(map[string]middleware.Factory)
		}
		s.extra[name] = f
	}
}
