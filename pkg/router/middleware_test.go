package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func testContext() *Context {
	return &Context{
		Request:  httptest.NewRequest(http.MethodGet, "/", nil),
		Response: httptest.NewRecorder(),
	}
}

func recordMW(name string, order *[]string) Middleware {
	return MiddlewareFunc(func(c *Context, next func() error) error {
		*order = append(*order, name)
		return next()
	})
}

func TestComposeMiddlewareEmpty(t *testing.T) {
	called := false
	err := ComposeMiddleware(nil, nil, func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Errorf("ComposeMiddleware() error = %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestComposeMiddlewareOrder(t *testing.T) {
	var order []string
	mw := []Middleware{recordMW("a", &order), recordMW("b", &order), recordMW("c", &order)}

	err := ComposeMiddleware(testContext(), mw, func() error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c", "handler"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestMiddlewareShortCircuit(t *testing.T) {
	sentinel := errors.New("stop")
	halt := MiddlewareFunc(func(c *Context, next func() error) error {
		return sentinel
	})

	called := false
	err := ComposeMiddleware(testContext(), []Middleware{halt}, func() error {
		called = true
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want %v", err, sentinel)
	}
	if called {
		t.Error("handler should not run after short circuit")
	}
}

func TestChain(t *testing.T) {
	var order []string
	mw := Chain(recordMW("a", &order), recordMW("b", &order))

	err := mw.Handle(testContext(), func() error {
		order = append(order, "next")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b", "next"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestSkipAndOnly(t *testing.T) {
	always := func(*Context) bool { return true }
	never := func(*Context) bool { return false }

	tests := []struct {
		name string
		mw   func(*[]string) Middleware
		ran  bool
	}{
		{"skip true", func(o *[]string) Middleware { return Skip(always, recordMW("m", o)) }, false},
		{"skip false", func(o *[]string) Middleware { return Skip(never, recordMW("m", o)) }, true},
		{"only true", func(o *[]string) Middleware { return Only(always, recordMW("m", o)) }, true},
		{"only false", func(o *[]string) Middleware { return Only(never, recordMW("m", o)) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			nextCalled := false
			err := tt.mw(&order).Handle(testContext(), func() error {
				nextCalled = true
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if got := len(order) == 1; got != tt.ran {
				t.Errorf("middleware ran = %v, want %v", got, tt.ran)
			}
			if !nextCalled {
				t.Error("next should always be called")
			}
		})
	}
}

func TestFromHTTP(t *testing.T) {
	setHeader := FromHTTP(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Wrapped", "yes")
			next.ServeHTTP(w, r)
		})
	})

	c := testContext()
	called := false
	if err := setHeader.Handle(c, func() error {
		called = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("next was not called")
	}
	if got := c.Response.Header().Get("X-Wrapped"); got != "yes" {
		t.Errorf("X-Wrapped = %q, want yes", got)
	}

	block := FromHTTP(func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})
	called = false
	if err := block.Handle(testContext(), func() error {
		called = true
		return nil
	}); err != nil {
		t.Errorf("blocked chain returned %v", err)
	}
	if called {
		t.Error("next should not run when the wrapper does not call it")
	}
}
