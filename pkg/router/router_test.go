package router

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/vango-dev/kiln/internal/errors"
)

func text(body string) HandlerFunc {
	return func(c *Context) error {
		return c.Text(http.StatusOK, body)
	}
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRouterMatchParams(t *testing.T) {
	r := New()
	if err := r.Get("/users/:id", func(c *Context) error {
		return c.Text(http.StatusOK, "user "+c.Param("id")+" tab "+c.QueryValue("tab"))
	}); err != nil {
		t.Fatal(err)
	}

	rec := serve(r, http.MethodGet, "/users/42?tab=posts")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "user 42 tab posts" {
		t.Errorf("body = %q", got)
	}

	route, params, ok := r.Match("/users/7", "get")
	if !ok || route.Pattern != "/users/:id" || params["id"] != "7" {
		t.Errorf("Match = %v %v %v", route, params, ok)
	}
	if _, _, ok := r.Match("/users/7/profile", http.MethodGet); ok {
		t.Error("extra segment should not match")
	}

	route, params, ok = r.Match("/users/", http.MethodGet)
	if !ok || route.Pattern != "/users/:id" {
		t.Fatalf("empty segment: Match = %v %v", route, ok)
	}
	if id, present := params["id"]; !present || id != "" {
		t.Errorf("params = %v, want id present and empty", params)
	}
}

func TestRouterFirstMatchWins(t *testing.T) {
	r := New()
	_ = r.Get("/users/:id", text("param"))
	_ = r.Get("/users/me", text("literal"))

	if got := serve(r, http.MethodGet, "/users/me").Body.String(); got != "param" {
		t.Errorf("body = %q, want the first registered route", got)
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := New()
	_ = r.Get("/items", text("list"))
	_ = r.Post("/items", text("create"))

	rec := serve(r, http.MethodDelete, "/items")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("Allow = %q, want %q", got, "GET, POST")
	}

	if got := serve(r, http.MethodPost, "/items").Body.String(); got != "create" {
		t.Errorf("POST body = %q", got)
	}
}

func TestRouterNotFound(t *testing.T) {
	r := New()
	_ = r.Get("/", text("home"))

	rec := serve(r, http.MethodGet, "/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "404 Not Found") {
		t.Errorf("body = %q", rec.Body.String())
	}

	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r = New(WithNotFound(fallback))
	if rec := serve(r, http.MethodGet, "/missing"); rec.Code != http.StatusTeapot {
		t.Errorf("custom not found status = %d", rec.Code)
	}
}

func TestRouterMiddlewareOrder(t *testing.T) {
	var order []string
	r := New()
	r.Use(recordMW("global", &order))

	route := NewRoute(http.MethodGet, "/").
		Use(recordMW("route", &order)).
		Handler(func(c *Context) error {
			order = append(order, "handler")
			return nil
		}).
		MustBuild()
	r.Add(route)

	serve(r, http.MethodGet, "/")
	if want := []string{"global", "route", "handler"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestRouterHandlerErrors(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	r := New(WithLogger(logger))
	_ = r.Get("/boom", func(c *Context) error {
		return fmt.Errorf("open /secret/path: permission denied")
	})
	_ = r.Get("/teapot", func(c *Context) error {
		return Error(http.StatusTeapot, "short and stout")
	})
	_ = r.Get("/bad", func(c *Context) error {
		return errors.New(errors.CodeBadRequest).WithSuggestion("Pass an id")
	})

	tests := []struct {
		path   string
		status int
		want   string
		hidden string
	}{
		{"/boom", http.StatusInternalServerError, "Internal Server Error", "/secret/path"},
		{"/teapot", http.StatusTeapot, "short and stout", ""},
		{"/bad", http.StatusBadRequest, "Pass an id", ""},
	}
	for _, tt := range tests {
		rec := serve(r, http.MethodGet, tt.path)
		if rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.status)
		}
		body := rec.Body.String()
		if !strings.Contains(body, tt.want) {
			t.Errorf("%s: body missing %q", tt.path, tt.want)
		}
		if tt.hidden != "" && strings.Contains(body, tt.hidden) {
			t.Errorf("%s: body leaks %q", tt.path, tt.hidden)
		}
	}
	if !strings.Contains(logs.String(), "/secret/path") {
		t.Error("internal error should be logged")
	}
}

func TestRouterHTTPHandler(t *testing.T) {
	r := New()
	r.Add(NewRoute("get", "/raw").HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("raw"))
	})).MustBuild())

	if got := serve(r, http.MethodGet, "/raw").Body.String(); got != "raw" {
		t.Errorf("body = %q", got)
	}
}

func TestBuildRequiresHandler(t *testing.T) {
	_, err := NewRoute(http.MethodGet, "/x").Summary("no handler").Build()
	if !errors.HasCode(err, errors.CodeMissingHandler) {
		t.Errorf("err = %v, want %s", err, errors.CodeMissingHandler)
	}

	r := New()
	if err := r.Get("/x", nil); err == nil {
		t.Error("Get with nil handler should fail")
	}
	if len(r.Routes()) != 0 {
		t.Error("failed route should not be registered")
	}

	defer func() {
		if recover() == nil {
			t.Error("MustBuild should panic without a handler")
		}
	}()
	NewRoute(http.MethodGet, "/x").MustBuild()
}

func TestBuildCopiesMetadata(t *testing.T) {
	b := NewRoute(http.MethodGet, "/x").
		Handler(text("x")).
		Tags("a").
		Response(http.StatusOK, "ok")
	first := b.MustBuild()

	b.Tags("b").Response(http.StatusNotFound, "missing")
	second := b.MustBuild()

	if len(first.Metadata.Tags) != 1 || len(first.Metadata.Responses) != 1 {
		t.Errorf("first route metadata changed: %+v", first.Metadata)
	}
	if len(second.Metadata.Tags) != 2 || len(second.Metadata.Responses) != 2 {
		t.Errorf("second route metadata = %+v", second.Metadata)
	}
}

func TestRoutesOrder(t *testing.T) {
	r := New()
	_ = r.Get("/a", text("a"))
	_ = r.Post("/b", text("b"))
	r.Add(nil)

	routes := r.Routes()
	if len(routes) != 2 {
		t.Fatalf("len = %d, want 2", len(routes))
	}
	if routes[0].Pattern != "/a" || routes[1].Method != http.MethodPost {
		t.Errorf("routes = %+v, %+v", routes[0], routes[1])
	}
}
