package dist

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/internal/logging"
	"github.com/vango-dev/kiln/pkg/bundle"
	"github.com/vango-dev/kiln/pkg/bundlecache"
	"github.com/vango-dev/kiln/pkg/errorpage"
	"github.com/vango-dev/kiln/pkg/resolver"
)

const tracerName = "github.com/vango-dev/kiln/pkg/dist"

// DefaultPath is the URL path bundles are served under.
const DefaultPath = "/_kiln/bundle"

// Builder produces bundles. *bundle.Generator implements it.
type Builder interface {
	Generate(ctx context.Context, entry string, opts bundle.Options) (*bundle.Result, error)
}

// Handler serves bundles. It is safe for concurrent use.
type Handler struct {
	gen       Builder
	cache     *bundlecache.Cache
	defaults  bundle.Options
	path      string
	maxAge    time.Duration
	encodings []string
	minSize   int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Handler.
type Option func(*Handler)

// WithDefaults sets the options used when the query does not override them.
func WithDefaults(opts bundle.Options) Option {
	return func(h *Handler) { h.defaults = opts }
}

// WithPath sets the public URL path of the handler, used in source map
// references.
func WithPath(p string) Option {
	return func(h *Handler) {
		if p != "" {
			h.path = p
		}
	}
}

// WithCacheMaxAge sets the Cache-Control max-age.
func WithCacheMaxAge(d time.Duration) Option {
	return func(h *Handler) { h.maxAge = d }
}

// WithCompression sets the encodings offered, in preference order. Unknown
// names are ignored; no encodings disables compression.
func WithCompression(encodings ...string) Option {
	return func(h *Handler) {
		var offered []string
		for _, enc := range encodings {
			if Supported(enc) {
				offered = append(offered, enc)
			}
		}
		h.encodings = offered
	}
}

// WithMinCompressSize skips compression for smaller bodies.
func WithMinCompressSize(n int) Option {
	return func(h *Handler) { h.minSize = n }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = logging.OrDiscard(l) }
}

// WithTracer sets the tracer used for serve spans.
func WithTracer(t trace.Tracer) Option {
	return func(h *Handler) {
		if t != nil {
			h.tracer = t
		}
	}
}

// New creates a Handler. A nil cache gets a private one with default limits.
func New(gen Builder, cache *bundlecache.Cache, opts ...Option) *Handler {
	if cache == nil {
		cache = bundlecache.New()
	}
	h := &Handler{
		gen:       gen,
		cache:     cache,
		defaults:  bundle.DefaultOptions(),
		path:      DefaultPath,
		maxAge:    5 * time.Minute,
		encodings: []string{EncodingBrotli, EncodingGzip},
		logger:    logging.Discard(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Cache returns the bundle cache the handler reads through.
func (h *Handler) Cache() *bundlecache.Cache {
	return h.cache
}

// request is a parsed bundle request.
type request struct {
	entry   string
	opts    bundle.Options
	wantMap bool
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		errorpage.Write(w, http.StatusMethodNotAllowed, "")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "kiln.dist.serve",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	req, err := h.parse(r.URL.Query())
	if err != nil {
		h.fail(ctx, w, span, "", err)
		return
	}
	span.SetAttributes(attribute.String("kiln.bundle.entry", req.entry))

	key := bundlecache.Key(req.entry, req.opts)
	res, err := h.cache.GetOrBuild(ctx, key, func(ctx context.Context) (*bundle.Result, error) {
		return h.gen.Generate(ctx, req.entry, req.opts)
	})
	if err != nil {
		h.fail(ctx, w, span, req.entry, err)
		return
	}

	body, etag, contentType := res.Code, res.ETag(), "application/javascript; charset=utf-8"
	if req.wantMap {
		body, etag, contentType = res.Map, `"`+res.Hash+`.map"`, "application/json; charset=utf-8"
	}

	hdr := w.Header()
	hdr.Set("ETag", etag)
	hdr.Set("Cache-Control", "max-age="+strconv.Itoa(int(h.maxAge/time.Second)))

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		h.logRequest(ctx, req.entry, http.StatusNotModified, 0, "", start)
		span.SetAttributes(attribute.Int("http.status_code", http.StatusNotModified))
		return
	}

	hdr.Set("Content-Type", contentType)
	hdr.Set("X-Content-Type-Options", "nosniff")
	hdr.Add("Vary", "Accept-Encoding")

	payload := []byte(body)
	encoding := ""
	if len(payload) >= h.minSize {
		if enc := negotiate(r.Header.Get("Accept-Encoding"), h.encodings); enc != "" {
			compressed, err := compress(enc, payload)
			if err != nil {
				h.logger.WarnContext(ctx, "compression failed, sending identity",
					"entry", req.entry, "encoding", enc, "error", err)
			} else {
				payload, encoding = compressed, enc
				hdr.Set("Content-Encoding", enc)
			}
		}
	}
	hdr.Set("Content-Length", strconv.Itoa(len(payload)))

	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(payload)
	}

	span.SetAttributes(
		attribute.Int("http.status_code", http.StatusOK),
		attribute.String("kiln.bundle.hash", res.Hash),
		attribute.String("kiln.dist.encoding", encoding),
	)
	h.logRequest(ctx, req.entry, http.StatusOK, len(payload), encoding, start)
}

// parse reads the entry and option overrides from the query.
func (h *Handler) parse(q url.Values) (request, error) {
	req := request{opts: h.defaults}

	raw := q.Get("entry")
	if raw == "" {
		return req, errors.New(errors.CodeBadRequest).
			WithDetail("missing entry parameter").
			WithSuggestion("Pass ?entry=<path relative to the bundle root>")
	}
	entry, ok := resolver.CleanPath(raw)
	if !ok {
		return req, errors.New(errors.CodeBadRequest).
			WithDetailf("invalid entry %q", raw).
			WithSuggestion("The entry must be a relative path without '..' segments")
	}
	req.entry = entry

	bools := []struct {
		name string
		dst  *bool
	}{
		{"minify", &req.opts.Minify},
		{"sourcemap", &req.opts.SourceMap},
		{"hydration", &req.opts.Hydration},
		{"map", &req.wantMap},
	}
	for _, b := range bools {
		v := q.Get(b.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New(errors.CodeBadRequest).
				WithDetailf("invalid %s value %q", b.name, v).
				WithSuggestion("Use " + b.name + "=true or " + b.name + "=false")
		}
		*b.dst = parsed
	}

	if v := q.Get("target"); v != "" {
		target, err := bundle.ParseTarget(v)
		if err != nil {
			return req, errors.New(errors.CodeBadRequest).
				Wrap(err).
				WithSuggestion("Use target=browser, target=server or target=universal")
		}
		req.opts.Target = target
	}

	if req.wantMap {
		req.opts.SourceMap = true
	}
	if req.opts.SourceMap {
		req.opts.SourceMapURL = h.mapURL(q)
	}
	return req, nil
}

// mapURL is the URL of the source map for the bundle requested by q.
func (h *Handler) mapURL(q url.Values) string {
	v := url.Values{}
	for _, k := range []string{"entry", "minify", "sourcemap", "target", "hydration"} {
		if s := q.Get(k); s != "" {
			v.Set(k, s)
		}
	}
	v.Set("map", "1")
	return h.path + "?" + v.Encode()
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, span trace.Span, entry string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, errors.CodeOf(err))

	if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
		h.logger.DebugContext(ctx, "bundle request cancelled", "entry", entry)
		return
	}

	status := errors.HTTPStatus(err)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "bundle build failed",
			"entry", entry, "code", errors.CodeOf(err), "error", err)
	} else {
		h.logger.WarnContext(ctx, "bad bundle request", "error", err)
	}
	errorpage.Write(w, status, errors.PublicMessage(err))
}

func (h *Handler) logRequest(ctx context.Context, entry string, status, bytes int, encoding string, start time.Time) {
	h.logger.InfoContext(ctx, "bundle served",
		"entry", entry,
		"status", status,
		"bytes", bytes,
		"encoding", encoding,
		"duration", time.Since(start),
	)
}

// etagMatches reports whether an If-None-Match header matches etag. It
// accepts lists, weak validators, unquoted values and "*".
func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	bare := strings.Trim(etag, `"`)
	for _, part := range strings.Split(ifNoneMatch, ",") {
		candidate := strings.TrimSpace(part)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag || candidate == bare {
			return true
		}
	}
	return false
}
