package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/kiln/internal/config"
	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/internal/logging"
)

// Func is net/http middleware.
type Func = func(http.Handler) http.Handler

// Factory builds a middleware.
type Factory func() (Func, error)

// Registry maps middleware names to factories. It is populated at startup
// and read when the server is assembled.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Build returns the middleware for names, outermost first. An unknown name
// is a configuration error.
func (r *Registry) Build(names []string) ([]Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := make([]Func, 0, len(names))
	for _, name := range names {
		f, ok := r.factories[name]
		if !ok {
			return nil, errors.New(errors.CodeConfigInvalid).
				WithDetailf("unknown middleware %q", name).
				WithSuggestion(fmt.Sprintf("Use one of %v", r.namesLocked()))
		}
		mw, err := f()
		if err != nil {
			return nil, errors.New(errors.CodeConfigInvalid).
				WithDetailf("middleware %q", name).
				Wrap(err)
		}
		chain = append(chain, mw)
	}
	return chain, nil
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deps are the shared values the default middleware are built from.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *Metrics
	Tracing []OTelOption
}

// DefaultRegistry registers the built-in middleware.
func DefaultRegistry(deps Deps) *Registry {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.New()
	}
	logger := logging.OrDiscard(deps.Logger)

	r := NewRegistry()
	r.Register("requestid", static(chimw.RequestID))
	r.Register("realip", static(chimw.RealIP))
	r.Register("recoverer", static(chimw.Recoverer))
	r.Register("canonical", static(Canonical))
	r.Register("logger", func() (Func, error) {
		return Logger(logger.With("component", "http")), nil
	})
	r.Register("security", func() (Func, error) {
		return Security(cfg.Security), nil
	})
	r.Register("cors", func() (Func, error) {
		return CORS(cfg.CORS), nil
	})
	r.Register("metrics", func() (Func, error) {
		if deps.Metrics == nil {
			return nil, fmt.Errorf("metrics collectors are not configured")
		}
		return deps.Metrics.Handler, nil
	})
	r.Register("tracing", func() (Func, error) {
		return Tracing(deps.Tracing...), nil
	})
	return r
}

func static(mw Func) Factory {
	return func() (Func, error) { return mw, nil }
}
