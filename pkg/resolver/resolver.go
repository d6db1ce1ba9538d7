package resolver

import (
	"context"
	"io/fs"
	"path"
	"strings"

	"github.com/vango-dev/kiln/internal/errors"
)

// DefaultMaxDepth is used when Options.MaxDepth is not positive.
const DefaultMaxDepth = 64

// Options configures resolution.
type Options struct {
	// Extensions are tried, in order, for specifiers that do not name a file.
	Extensions []string

	// MaxDepth bounds the import chain length; the entry is depth 1.
	MaxDepth int

	// IgnorePatterns lists specifiers and module paths left out of the
	// graph. A pattern matches exactly, as a path.Match glob, or as a
	// prefix ("lodash" ignores "lodash/fp"). Specifiers are tested as
	// written, then again by the module path they resolve to.
	IgnorePatterns []string
}

// Module is a single resolved source file.
type Module struct {
	// Path is the module's path relative to the resolution root.
	Path string

	// Source is the raw file contents.
	Source []byte

	// Imports maps in-graph specifiers, as written in Source, to module paths.
	Imports map[string]string

	// Depth is the module's distance from the entry (entry = 1) at first discovery.
	Depth int
}

// Resolver discovers the module graph below an entry point.
type Resolver struct {
	fsys fs.FS
	opts Options
}

// New creates a Resolver reading modules from fsys.
func New(fsys fs.FS, opts Options) *Resolver {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Resolver{fsys: fsys, opts: opts}
}

// Resolve returns every module reachable from entry in post-order of first
// discovery: a module's dependencies precede it and entry comes last.
func (r *Resolver) Resolve(ctx context.Context, entry string) ([]*Module, error) {
	return r.ResolveFrom(ctx, entry, nil)
}

// ResolveFrom is Resolve with a caller-owned visited set. Modules already in
// visited are not descended into again, which lets a caller resume or
// partition resolution across calls. A nil map starts empty.
func (r *Resolver) ResolveFrom(ctx context.Context, entry string, visited map[string]bool) ([]*Module, error) {
	p, ok := CleanPath(entry)
	if !ok {
		return nil, errors.New(errors.CodeRead).
			WithDetailf("invalid entry path %q", entry)
	}
	if visited == nil {
		visited = make(map[string]bool)
	}
	visited[p] = true

	var out []*Module
	if err := r.visit(ctx, p, 1, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) visit(ctx context.Context, p string, depth int, visited map[string]bool, out *[]*Module) error {
	if depth > r.opts.MaxDepth {
		return errors.New(errors.CodeDepthExceeded).
			InModule(p).
			WithDetailf("depth %d, limit is %d", depth, r.opts.MaxDepth).
			WithSuggestion("Raise bundle.maxDepth or break up the import chain")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := fs.ReadFile(r.fsys, p)
	if err != nil {
		return errors.New(errors.CodeRead).InModule(p).Wrap(err)
	}

	mod := &Module{
		Path:    p,
		Source:  src,
		Imports: make(map[string]string),
		Depth:   depth,
	}

	for _, spec := range Specifiers(src) {
		if r.ignored(spec) {
			continue
		}
		target, ok, err := r.resolveSpecifier(p, spec)
		if err != nil {
			return err
		}
		if !ok || r.ignored(target) {
			continue
		}
		mod.Imports[spec] = target
		if visited[target] {
			continue
		}
		visited[target] = true
		if err := r.visit(ctx, target, depth+1, visited, out); err != nil {
			return err
		}
	}

	*out = append(*out, mod)
	return nil
}

// resolveSpecifier maps spec, imported from importer, to a module path.
// ok is false for external specifiers that are deliberately left out.
func (r *Resolver) resolveSpecifier(importer, spec string) (string, bool, error) {
	if strings.Contains(spec, "://") || strings.HasPrefix(spec, "data:") {
		return "", false, nil
	}

	var base string
	relative := true
	switch {
	case spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		base = path.Join(path.Dir(importer), spec)
	case strings.HasPrefix(spec, "/"):
		base = strings.TrimPrefix(path.Clean(spec), "/")
		if base == "" {
			base = "."
		}
	default:
		base = path.Clean(spec)
		relative = false
	}

	if fs.ValidPath(base) {
		if found, ok := r.lookup(base); ok {
			return found, true, nil
		}
	}

	if !relative && path.Ext(spec) == "" {
		return "", false, nil
	}

	return "", false, errors.New(errors.CodeResolution).
		InModule(importer).
		WithSpecifier(spec).
		WithSuggestion("Check the import path, bundle.extensions and bundle.ignore")
}

// lookup tries base, base+ext and base/index+ext, returning the first file.
func (r *Resolver) lookup(base string) (string, bool) {
	var candidates []string
	if base != "." {
		candidates = append(candidates, base)
		for _, ext := range r.opts.Extensions {
			candidates = append(candidates, base+ext)
		}
	}
	for _, ext := range r.opts.Extensions {
		candidates = append(candidates, path.Join(base, "index"+ext))
	}

	for _, c := range candidates {
		if r.isFile(c) {
			return c, true
		}
	}
	return "", false
}

func (r *Resolver) isFile(p string) bool {
	info, err := fs.Stat(r.fsys, p)
	return err == nil && info.Mode().IsRegular()
}

// ignored reports whether name, a specifier or a resolved module path,
// matches an ignore pattern.
func (r *Resolver) ignored(name string) bool {
	for _, pattern := range r.opts.IgnorePatterns {
		if pattern == "" {
			continue
		}
		if name == pattern || strings.HasPrefix(name, pattern+"/") {
			return true
		}
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// CleanPath normalises a root-relative module path, accepting leading "/"
// and "./". ok is false for empty paths and paths with ".." segments.
func CleanPath(p string) (string, bool) {
	if p == "" || strings.ContainsRune(p, 0) || strings.Contains(p, "\\") {
		return "", false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || !fs.ValidPath(p) {
		return "", false
	}
	return p, true
}
