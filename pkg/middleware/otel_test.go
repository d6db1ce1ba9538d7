package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordedSpan struct {
	noop.Span
	mu     sync.Mutex
	name   string
	status codes.Code
	ended  bool
}

func (s *recordedSpan) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

func (s *recordedSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
}

type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	spans []*recordedSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := &recordedSpan{name: name}
	t.mu.Lock()
	t.spans = append(t.spans, s)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, s), s
}

func TestTracingNamesSpanByRoute(t *testing.T) {
	tracer := &recordingTracer{}

	var inHandler trace.Span
	mux := chi.NewRouter()
	mux.Use(Tracing(WithTracer(tracer)))
	mux.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		inHandler = trace.SpanFromContext(r.Context())
	})
	mux.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/42", nil))
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	if len(tracer.spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(tracer.spans))
	}
	first := tracer.spans[0]
	if first.name != "GET /users/{id}" {
		t.Errorf("span name = %q, want route pattern", first.name)
	}
	if inHandler != trace.Span(first) {
		t.Error("handler should see the server span in its context")
	}
	if !first.ended || first.status != codes.Ok {
		t.Errorf("first span ended=%v status=%v", first.ended, first.status)
	}
	if tracer.spans[1].status != codes.Error {
		t.Errorf("5xx span status = %v, want Error", tracer.spans[1].status)
	}
}

func TestTracingFilter(t *testing.T) {
	tracer := &recordingTracer{}
	h := Tracing(
		WithTracer(tracer),
		WithRequestFilter(func(r *http.Request) bool { return r.URL.Path != "/healthz" }),
	)(okHandler(http.StatusOK))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if len(tracer.spans) != 0 {
		t.Errorf("filtered request produced %d spans", len(tracer.spans))
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/app", nil))
	if len(tracer.spans) != 1 || tracer.spans[0].name != "GET /app" {
		t.Errorf("spans = %+v", tracer.spans)
	}
}
