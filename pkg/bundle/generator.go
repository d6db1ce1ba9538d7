package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/internal/logging"
	"github.com/vango-dev/kiln/pkg/resolver"
)

const tracerName = "github.com/vango-dev/kiln/pkg/bundle"

// Generator builds bundles from a source tree. It holds no per-call state
// and is safe for concurrent use.
type Generator struct {
	fsys   fs.FS
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTracer sets the tracer used for generate spans.
func WithTracer(t trace.Tracer) GeneratorOption {
	return func(g *Generator) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithClock sets the time source for Result.BuiltAt.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator creates a Generator over fsys, usually os.DirFS of the
// bundle root.
func NewGenerator(fsys fs.FS, opts ...GeneratorOption) *Generator {
	g := &Generator{
		fsys:   fsys,
		logger: logging.Discard(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate resolves entry and assembles its bundle.
func (g *Generator) Generate(ctx context.Context, entry string, opts Options) (result *Result, err error) {
	opts = opts.normalize()
	start := time.Now()

	ctx, span := g.tracer.Start(ctx, "kiln.bundle.generate",
		trace.WithAttributes(
			attribute.String("kiln.bundle.entry", entry),
			attribute.String("kiln.bundle.target", string(opts.Target)),
			attribute.Bool("kiln.bundle.minify", opts.Minify),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("kiln.bundle.modules", len(result.Modules)))
		}
		span.End()
	}()

	r := resolver.New(g.fsys, resolver.Options{
		Extensions:     opts.Extensions,
		MaxDepth:       opts.MaxDepth,
		IgnorePatterns: opts.IgnorePatterns,
	})
	mods, err := r.Resolve(ctx, entry)
	if err != nil {
		return nil, err
	}
	if len(mods) == 0 {
		return nil, errors.New(errors.CodeRead).InModule(entry)
	}
	entryPath := mods[len(mods)-1].Path

	var b strings.Builder
	b.WriteString(runtimeHeader)
	paths := make([]string, 0, len(mods))
	contents := make([]string, 0, len(mods))
	for _, mod := range mods {
		src := string(mod.Source)
		writeDefine(&b, mod.Path, moduleBody(mod.Path, src), mod.Imports)
		paths = append(paths, mod.Path)
		contents = append(contents, src)
	}
	writeEntry(&b, entryPath)
	b.WriteString(runtimeFooter)

	mode := modeFor(opts)
	var hydration string
	if opts.Hydration && opts.Target.Browser() {
		hydration = minify(hydrationCode(entryPath, opts.RootID), mode)
	}

	code := minify(b.String(), mode)
	if hydration != "" {
		if !strings.HasSuffix(code, "\n") {
			code += "\n"
		}
		code += hydration
	}

	result = &Result{
		Entry:         entryPath,
		HydrationCode: hydration,
		Modules:       paths,
		Dependencies:  append([]string(nil), paths[:len(paths)-1]...),
	}

	if opts.SourceMap {
		result.Map, err = buildSourceMap(entryPath, paths, contents)
		if err != nil {
			return nil, errors.New(errors.CodeBuildFailed).WithDetail("source map").Wrap(err)
		}
		if !strings.HasSuffix(code, "\n") {
			code += "\n"
		}
		code += sourceMapTrailer + sourceMapURL(entryPath, opts) + "\n"
	}

	result.Code = code
	result.Hash = Hash(code)
	result.BuiltAt = g.now()

	g.logger.DebugContext(ctx, "bundle generated",
		"entry", entryPath,
		"modules", len(paths),
		"bytes", len(code),
		"hash", result.Hash,
		"duration", time.Since(start),
	)
	return result, nil
}

// moduleBody returns the factory body for a module.
func moduleBody(p, src string) string {
	if path.Ext(p) == ".json" {
		return "module.exports = " + strings.TrimSpace(src) + ";"
	}
	return transformModule(src)
}

// Hash returns the content fingerprint used for bundles: the hex encoding
// of the first 16 bytes of the SHA-256 digest.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:16])
}
