package server

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/kiln/internal/config"
	"github.com/vango-dev/kiln/internal/dev"
	"github.com/vango-dev/kiln/pkg/assets"
	"github.com/vango-dev/kiln/pkg/bundle"
	"github.com/vango-dev/kiln/pkg/bundlecache"
	"github.com/vango-dev/kiln/pkg/dist"
	"github.com/vango-dev/kiln/pkg/middleware"
	"github.com/vango-dev/kiln/pkg/router"
	"github.com/vango-dev/kiln/pkg/static"
)

// RoutesPath serves the OpenAPI document of the application routes.
const RoutesPath = "/_kiln/routes"

// Server is the kiln HTTP server.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	dev    bool

	router   *router.Router
	bundleFS fs.FS
	staticFS fs.FS
	tracing  []middleware.OTelOption
	extra    map[string]middleware.Factory

	gen      *bundle.Generator
	cache    *bundlecache.Cache
	dist     *dist.Handler
	metrics  *middleware.Metrics
	registry *prometheus.Registry
	reload   *dev.ReloadServer
	handler  http.Handler

	mu         sync.Mutex
	httpServer *http.Server
}

// New wires a server from cfg. The config is not modified.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	if s.router == nil {
		s.router = router.New(router.WithLogger(s.logger))
	}
	if s.bundleFS == nil {
		s.bundleFS = os.DirFS(cfg.BundleRootPath())
	}
	if s.staticFS == nil {
		s.staticFS = os.DirFS(cfg.PublicPath())
	}

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = middleware.NewMetrics(middleware.WithRegistry(s.registry))

	s.gen = bundle.NewGenerator(s.bundleFS, bundle.WithLogger(s.logger))
	s.cache = bundlecache.New(
		bundlecache.WithMaxEntries(cfg.Cache.MaxEntries),
		bundlecache.WithTTL(cfg.CacheTTL()),
		bundlecache.WithBuildTimeout(cfg.BuildTimeout()),
		bundlecache.WithObserver(s.metrics),
	)
	s.dist = dist.New(s.gen, s.cache,
		dist.WithDefaults(bundle.OptionsFromConfig(cfg.Bundle)),
		dist.WithPath(cfg.Distribution.Path),
		dist.WithCacheMaxAge(time.Duration(cfg.Distribution.CacheMaxAge)*time.Second),
		dist.WithCompression(cfg.Distribution.Compression...),
		dist.WithMinCompressSize(cfg.Distribution.MinCompressSize),
		dist.WithLogger(s.logger),
	)
	if s.dev {
		s.reload = dev.NewReloadServer(s.logger)
	}

	handler, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.handler = handler
	return s, nil
}

// NewFromWorkingDir loads kiln.json from the working directory or the
// nearest parent and wires a server from it.
func NewFromWorkingDir(opts ...Option) (*Server, error) {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

func (s *Server) routes() (http.Handler, error) {
	reg := middleware.DefaultRegistry(middleware.Deps{
		Config:  s.cfg,
		Logger:  s.logger,
		Metrics: s.metrics,
		Tracing: s.tracing,
	})
	for name, f := range s.extra {
		reg.Register(name, f)
	}
	chain, err := reg.Build(s.cfg.Server.Middleware)
	if err != nil {
		return nil, err
	}

	mux := chi.NewRouter()
	mux.Use(chain...)

	mux.Method(http.MethodGet, s.cfg.Distribution.Path, s.dist)
	mux.Method(http.MethodHead, s.cfg.Distribution.Path, s.dist)
	if s.cfg.Server.MetricsPath != "" {
		mux.Method(http.MethodGet, s.cfg.Server.MetricsPath,
			promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	mux.Get(RoutesPath, s.serveRoutes)
	if s.reload != nil {
		mux.Get(dev.ReloadPath, s.reload.HandleWebSocket)
		mux.Get(dev.ReloadScriptPath, s.reload.ServeScript)
	}

	mux.NotFound(s.fallback().ServeHTTP)
	return mux, nil
}

// fallback serves built files, then the static directory, then the app
// router.
func (s *Server) fallback() http.Handler {
	staticCfg := static.Config{
		Prefix:       s.cfg.Static.Prefix,
		CacheControl: s.cfg.Static.CacheControl,
		Headers:      s.cfg.Static.Headers,
	}
	if s.dev {
		staticCfg.CacheControl = static.CacheControlNone
	}

	var h http.Handler = s.router
	h = static.New(s.staticFS, staticCfg).Middleware(h)
	if !s.dev && s.hasBuild() {
		built := os.DirFS(filepath.Join(s.cfg.OutputPath(), "public"))
		h = static.New(built, staticCfg).Middleware(h)
	}
	if s.dev {
		h = injectReload(h)
	}
	return h
}

func (s *Server) serveRoutes(w http.ResponseWriter, r *http.Request) {
	doc, err := s.router.OpenAPI(router.OpenAPIInfo{Title: s.cfg.Name})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "openapi document", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(doc)
}

func (s *Server) hasBuild() bool {
	_, err := os.Stat(s.cfg.ManifestPath())
	return err == nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Router returns the application router. Routes may be added at any time.
func (s *Server) Router() *router.Router { return s.router }

// Cache returns the bundle cache.
func (s *Server) Cache() *bundlecache.Cache { return s.cache }

// Metrics returns the Prometheus collectors of this server.
func (s *Server) Metrics() *middleware.Metrics { return s.metrics }

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger { return s.logger }

// Assets returns a resolver for entry and static file URLs. With a build
// manifest present it points at fingerprinted files under the static
// prefix, otherwise at the on-demand distribution URL.
func (s *Server) Assets() assets.Resolver {
	if m, err := assets.Load(s.cfg.ManifestPath()); err == nil {
		return assets.NewResolver(m, s.cfg.Static.Prefix)
	}
	return assets.NewDistResolver(s.cfg.Distribution.Path)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or serving fails. In dev mode a
// file watcher runs alongside; changes clear the bundle cache and notify
// reload clients.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var watcher *dev.Watcher
	if s.dev {
		w, err := dev.NewWatcher(dev.WatcherConfig{
			Paths:    dev.CollectWatchPaths(s.cfg),
			Ignore:   s.cfg.Dev.Ignore,
			Debounce: s.cfg.DevDebounce(),
			Logger:   s.logger,
		})
		if err != nil {
			ln.Close()
			return err
		}
		watcher = w
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", "address", ln.Addr().String(), "dev", s.dev)
		if err := srv.Serve(ln); !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	})

	if watcher != nil {
		watcher.OnChange(s.onChange)
		g.Go(func() error {
			defer watcher.Close()
			return watcher.Start(gctx)
		})
	}

	return g.Wait()
}

func (s *Server) onChange(changes []dev.Change) {
	s.cache.Clear()
	s.logger.Info("files changed", "count", len(changes))
	if s.reload == nil {
		return
	}

	for _, c := range changes {
		if c.Type != dev.ChangeCSS {
			s.reload.NotifyReload()
			return
		}
	}
	for _, c := range changes {
		s.reload.NotifyCSS(filepath.Base(c.Path))
	}
}

// Shutdown gracefully shuts down the server within server.shutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout())
	defer cancel()

	if s.reload != nil {
		s.reload.Close()
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
