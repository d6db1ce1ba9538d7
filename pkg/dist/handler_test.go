package dist

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/vango-dev/kiln/pkg/bundle"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"main.js": {Data: []byte("import util from './util.js';\nexport function mount(el) {\n  el.textContent = util();\n}\n")},
		"util.js": {Data: []byte("// helper\nexport default function () {\n  return \"hello from util\";\n}\n")},
	}
}

type countingBuilder struct {
	Builder

	mu    sync.Mutex
	calls int
	last  bundle.Options
}

func (b *countingBuilder) Generate(ctx context.Context, entry string, opts bundle.Options) (*bundle.Result, error) {
	b.mu.Lock()
	b.calls++
	b.last = opts
	b.mu.Unlock()
	return b.Builder.Generate(ctx, entry, opts)
}

func (b *countingBuilder) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func newTestHandler(opts ...Option) (*Handler, *countingBuilder) {
	b := &countingBuilder{Builder: bundle.NewGenerator(testFS())}
	return New(b, nil, opts...), b
}

func get(h http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeBundle(t *testing.T) {
	h, _ := newTestHandler()
	rec := get(h, "/_kiln/bundle?entry=main.js", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	hdr := rec.Header()
	if got := hdr.Get("Content-Type"); got != "application/javascript; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := hdr.Get("Cache-Control"); got != "max-age=300" {
		t.Errorf("Cache-Control = %q", got)
	}
	if hdr.Get("X-Content-Type-Options") != "nosniff" || hdr.Get("Vary") != "Accept-Encoding" {
		t.Error("missing nosniff or Vary header")
	}
	etag := hdr.Get("ETag")
	if len(etag) != 34 || etag[0] != '"' {
		t.Errorf("ETag = %q, want quoted 32-hex hash", etag)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `define("util.js"`) || !strings.Contains(body, `define("main.js"`) {
		t.Error("body should contain both module registrations")
	}
	if bundle.Hash(body) != strings.Trim(etag, `"`) {
		t.Error("ETag should be the hash of the body")
	}
}

func TestConditionalGet(t *testing.T) {
	h, b := newTestHandler()
	first := get(h, "/_kiln/bundle?entry=main.js", nil)
	etag := first.Header().Get("ETag")
	bare := strings.Trim(etag, `"`)

	for _, inm := range []string{etag, "W/" + etag, bare, `"other", ` + etag, "*"} {
		rec := get(h, "/_kiln/bundle?entry=main.js", map[string]string{"If-None-Match": inm})
		if rec.Code != http.StatusNotModified {
			t.Errorf("If-None-Match %s: status = %d, want 304", inm, rec.Code)
			continue
		}
		if rec.Body.Len() != 0 {
			t.Errorf("304 must have an empty body")
		}
		if rec.Header().Get("ETag") != etag || rec.Header().Get("Cache-Control") == "" {
			t.Error("304 should carry ETag and Cache-Control")
		}
		if rec.Header().Get("Content-Type") != "" {
			t.Error("304 should not carry Content-Type")
		}
	}

	stale := get(h, "/_kiln/bundle?entry=main.js", map[string]string{"If-None-Match": `"stale"`})
	if stale.Code != http.StatusOK || stale.Body.Len() == 0 {
		t.Errorf("stale If-None-Match: status = %d, body %d bytes", stale.Code, stale.Body.Len())
	}
	if stale.Header().Get("ETag") != etag {
		t.Error("200 should carry the current ETag")
	}

	if n := b.Calls(); n != 1 {
		t.Errorf("generator ran %d times, want 1 (cached)", n)
	}
}

func TestBadRequests(t *testing.T) {
	h, b := newTestHandler()
	for _, target := range []string{
		"/_kiln/bundle",
		"/_kiln/bundle?entry=",
		"/_kiln/bundle?entry=../secret.js",
		"/_kiln/bundle?entry=main.js&minify=maybe",
		"/_kiln/bundle?entry=main.js&target=deno",
		"/_kiln/bundle?entry=main.js&map=x",
	} {
		rec := get(h, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Bad bundle request") {
			t.Errorf("%s: body = %s", target, rec.Body.String())
		}
		if rec.Header().Get("Content-Type") != "text/html; charset=utf-8" {
			t.Errorf("%s: error page should be HTML", target)
		}
	}
	if b.Calls() != 0 {
		t.Error("bad requests must not reach the generator")
	}
}

func TestBuildFailureIsGeneric(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h, _ := newTestHandler(WithLogger(logger))

	rec := get(h, "/_kiln/bundle?entry=secret/missing.js", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Internal Server Error") {
		t.Errorf("body = %s", body)
	}
	if strings.Contains(body, "secret/missing.js") || strings.Contains(body, "E203") {
		t.Error("internal details leaked into the response")
	}
	if rec.Header().Get("ETag") != "" {
		t.Error("error responses must not carry an ETag")
	}
	if !strings.Contains(logs.String(), "bundle build failed") || !strings.Contains(logs.String(), "secret/missing.js") {
		t.Errorf("failure not logged: %s", logs.String())
	}
}

type failingBuilder struct{ err error }

func (f failingBuilder) Generate(context.Context, string, bundle.Options) (*bundle.Result, error) {
	return nil, f.err
}

func TestBuilderErrorsAre500(t *testing.T) {
	h := New(failingBuilder{err: stderrors.New("disk on fire")}, nil)
	rec := get(h, "/_kiln/bundle?entry=main.js", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Error("error text leaked")
	}
}

func TestMethods(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/_kiln/bundle?entry=main.js", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, HEAD" {
		t.Errorf("POST: status = %d, Allow = %q", rec.Code, rec.Header().Get("Allow"))
	}

	req = httptest.NewRequest(http.MethodHead, "/_kiln/bundle?entry=main.js", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD: status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("HEAD must not write a body")
	}
	if rec.Header().Get("Content-Length") == "" || rec.Header().Get("ETag") == "" {
		t.Error("HEAD should carry Content-Length and ETag")
	}
}

func decode(t *testing.T, enc string, body []byte) string {
	t.Helper()
	var r io.Reader
	var err error
	switch enc {
	case "gzip":
		r, err = gzip.NewReader(bytes.NewReader(body))
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case "deflate":
		r, err = zlib.NewReader(bytes.NewReader(body))
	default:
		return string(body)
	}
	if err != nil {
		t.Fatalf("%s reader: %v", enc, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("%s decode: %v", enc, err)
	}
	return string(out)
}

func TestCompression(t *testing.T) {
	h, _ := newTestHandler(WithCompression("br", "gzip", "deflate"))
	identity := get(h, "/_kiln/bundle?entry=main.js", nil).Body.String()

	tests := []struct {
		accept string
		want   string
	}{
		{"gzip", "gzip"},
		{"br", "br"},
		{"deflate", "deflate"},
		{"gzip, deflate, br", "br"},
		{"gzip;q=1.0, br;q=0.5", "gzip"},
		{"br;q=0, gzip;q=0", ""},
		{"*", "br"},
		{"*;q=0.1, br;q=0", "gzip"},
		{"identity", ""},
		{"", ""},
	}
	for _, tt := range tests {
		rec := get(h, "/_kiln/bundle?entry=main.js", map[string]string{"Accept-Encoding": tt.accept})
		if got := rec.Header().Get("Content-Encoding"); got != tt.want {
			t.Errorf("Accept-Encoding %q: Content-Encoding = %q, want %q", tt.accept, got, tt.want)
			continue
		}
		if got := decode(t, tt.want, rec.Body.Bytes()); got != identity {
			t.Errorf("Accept-Encoding %q: decoded body differs from identity", tt.accept)
		}
	}
}

func TestCompressionDisabledAndThreshold(t *testing.T) {
	h, _ := newTestHandler(WithCompression())
	if rec := get(h, "/_kiln/bundle?entry=main.js", map[string]string{"Accept-Encoding": "gzip"}); rec.Header().Get("Content-Encoding") != "" {
		t.Error("compression should be off with no encodings")
	}

	h, _ = newTestHandler(WithMinCompressSize(1 << 20))
	if rec := get(h, "/_kiln/bundle?entry=main.js", map[string]string{"Accept-Encoding": "gzip"}); rec.Header().Get("Content-Encoding") != "" {
		t.Error("small bodies should not be compressed")
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, stderrors.New("broken") }
func (brokenWriter) Close() error              { return nil }

func TestCompressionFailureFallsBack(t *testing.T) {
	orig := compressors[EncodingGzip]
	compressors[EncodingGzip] = func(io.Writer) (io.WriteCloser, error) { return brokenWriter{}, nil }
	t.Cleanup(func() { compressors[EncodingGzip] = orig })

	h, _ := newTestHandler(WithCompression("gzip"))
	rec := get(h, "/_kiln/bundle?entry=main.js", map[string]string{"Accept-Encoding": "gzip"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "" {
		t.Error("failed compression should fall back to identity")
	}
	if !strings.Contains(rec.Body.String(), `define("main.js"`) {
		t.Error("identity body expected")
	}
}

func TestOverridesAndSourceMap(t *testing.T) {
	h, b := newTestHandler(WithCacheMaxAge(time.Minute))

	rec := get(h, "/_kiln/bundle?entry=main.js&minify=true&sourcemap=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !b.last.Minify || !b.last.SourceMap {
		t.Errorf("overrides not applied: %+v", b.last)
	}
	if rec.Header().Get("Cache-Control") != "max-age=60" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
	const trailer = "//# sourceMappingURL=/_kiln/bundle?entry=main.js&map=1&minify=true&sourcemap=1"
	if !strings.Contains(rec.Body.String(), trailer) {
		t.Errorf("body missing %s", trailer)
	}

	mapRec := get(h, "/_kiln/bundle?entry=main.js&map=1&minify=true&sourcemap=1", nil)
	if mapRec.Code != http.StatusOK {
		t.Fatalf("map status = %d", mapRec.Code)
	}
	if ct := mapRec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("map Content-Type = %q", ct)
	}
	var sm struct {
		Version int      `json:"version"`
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal(mapRec.Body.Bytes(), &sm); err != nil {
		t.Fatalf("map body: %v", err)
	}
	if sm.Version != 3 || len(sm.Sources) != 2 {
		t.Errorf("map = %+v", sm)
	}
	if b.Calls() != 1 {
		t.Errorf("bundle and its map should share a build, got %d builds", b.Calls())
	}
	if mapRec.Header().Get("ETag") == rec.Header().Get("ETag") {
		t.Error("map and bundle need distinct ETags")
	}
}

func TestNegotiate(t *testing.T) {
	offered := []string{"br", "gzip"}
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"gzip", "gzip"},
		{"GZIP", "gzip"},
		{"gzip, br", "br"},
		{"br;q=0.2, gzip;q=0.8", "gzip"},
		{"br; q=0", ""},
		{"gzip;q=abc", ""},
		{"*", "br"},
		{"*, br;q=0", "gzip"},
		{"deflate", ""},
	}
	for _, tt := range tests {
		if got := negotiate(tt.header, offered); got != tt.want {
			t.Errorf("negotiate(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestEtagMatches(t *testing.T) {
	const etag = `"abc"`
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{`"abc"`, true},
		{`W/"abc"`, true},
		{`abc`, true},
		{`"x", "abc"`, true},
		{`"x"`, false},
		{`"abcd"`, false},
		{`*`, true},
	}
	for _, tt := range tests {
		if got := etagMatches(tt.header, etag); got != tt.want {
			t.Errorf("etagMatches(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
