package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/kiln/internal/config"
	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/pkg/assets"
	"github.com/vango-dev/kiln/pkg/bundle"
)

// AssetsDir is the directory under the public output that receives
// fingerprinted copies of the static directory.
const AssetsDir = "assets"

// Generator produces a bundle for one entry. *bundle.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, entry string, opts bundle.Options) (*bundle.Result, error)
}

// File describes one written bundle.
type File struct {
	// Entry is the root-relative entry the bundle was generated from.
	Entry string

	// Name is the fingerprinted file name relative to the public output.
	Name string

	// Map is the source map file name, empty when maps are off.
	Map string

	// Size is the size of the written code in bytes.
	Size int64

	// Hash is the bundle's content fingerprint.
	Hash string
}

// Result contains the build output.
type Result struct {
	// Duration is how long the build took.
	Duration time.Duration

	// Public is the path to the public output directory.
	Public string

	// Manifest maps entries and static files to fingerprinted names.
	Manifest *assets.Manifest

	// Files lists the written bundles in entry order.
	Files []File
}

// Options configures the builder.
type Options struct {
	// Minify enables minification.
	Minify bool

	// SourceMaps enables source map generation.
	SourceMaps bool

	// Concurrency bounds parallel entry builds. Zero means GOMAXPROCS.
	Concurrency int

	// OnProgress is called with progress updates.
	OnProgress func(step string)
}

// Builder handles production builds.
type Builder struct {
	config  *config.Config
	gen     Generator
	options Options
}

// New creates a new builder.
func New(cfg *config.Config, gen Generator, options Options) *Builder {
	if !options.Minify && cfg.Bundle.Minify {
		options.Minify = true
	}
	if !options.SourceMaps && cfg.Bundle.SourceMaps {
		options.SourceMaps = true
	}
	if options.Concurrency <= 0 {
		options.Concurrency = runtime.GOMAXPROCS(0)
	}

	return &Builder{
		config:  cfg,
		gen:     gen,
		options: options,
	}
}

// Build performs a production build.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	entries := b.config.Bundle.Entries
	if len(entries) == 0 {
		return nil, errors.New(errors.CodeBuildFailed).
			WithDetail("no bundle entries configured").
			WithSuggestion(`Add entries to "bundle.entries" in kiln.json`)
	}

	outputDir := b.config.OutputPath()
	publicDir := filepath.Join(outputDir, "public")

	b.progress("Cleaning output directory...")
	if err := os.RemoveAll(outputDir); err != nil {
		return nil, errors.New(errors.CodeBuildFailed).Wrap(err)
	}
	if err := os.MkdirAll(publicDir, 0755); err != nil {
		return nil, errors.New(errors.CodeBuildFailed).Wrap(err)
	}

	opts := bundle.OptionsFromConfig(b.config.Bundle)
	opts.Minify = b.options.Minify
	opts.SourceMap = b.options.SourceMaps

	files := make([]File, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.options.Concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			b.progress("Bundling " + entry + "...")
			f, err := b.buildEntry(gctx, publicDir, entry, opts)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest := assets.NewManifest()
	for _, f := range files {
		manifest.Set(f.Entry, f.Name)
	}

	b.progress("Copying static assets...")
	if err := b.copyAssets(publicDir, manifest); err != nil {
		return nil, err
	}

	b.progress("Writing manifest...")
	if err := manifest.Save(b.config.ManifestPath()); err != nil {
		return nil, errors.New(errors.CodeBuildFailed).Wrap(err)
	}

	return &Result{
		Duration: time.Since(start),
		Public:   publicDir,
		Manifest: manifest,
		Files:    files,
	}, nil
}

// buildEntry generates one entry and writes <stem>.<hash8>.js and, when
// maps are on, <stem>.<hash8>.js.map next to it.
func (b *Builder) buildEntry(ctx context.Context, publicDir, entry string, opts bundle.Options) (File, error) {
	res, err := b.gen.Generate(ctx, entry, opts)
	if err != nil {
		return File{}, errors.New(errors.CodeBuildFailed).
			WithDetailf("entry %s", entry).
			Wrap(err)
	}

	name := HashedName(entry, res.Hash)
	f := File{Entry: entry, Name: name, Hash: res.Hash}

	code := res.Code
	if res.Map != "" {
		f.Map = name + ".map"
		code = bundle.LinkSourceMap(code, path.Base(f.Map))
		if err := writeFile(filepath.Join(publicDir, filepath.FromSlash(f.Map)), res.Map); err != nil {
			return File{}, err
		}
	}
	if err := writeFile(filepath.Join(publicDir, filepath.FromSlash(name)), code); err != nil {
		return File{}, err
	}
	f.Size = int64(len(code))
	return f, nil
}

// HashedName turns "pages/home.ts" into "pages/home.<hash8>.js".
func HashedName(entry, hash string) string {
	stem := strings.TrimSuffix(entry, path.Ext(entry))
	return fmt.Sprintf("%s.%s.js", stem, hash[:8])
}

// copyAssets copies the static directory with cache busting. HTML files
// keep their names so that index pages still resolve.
func (b *Builder) copyAssets(publicDir string, manifest *assets.Manifest) error {
	srcDir := b.config.PublicPath()
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return nil
	}

	assetsDir := filepath.Join(publicDir, AssetsDir)

	err := filepath.Walk(srcDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		ext := strings.ToLower(path.Ext(relPath))
		if ext == ".html" || ext == ".htm" {
			dest := filepath.Join(publicDir, filepath.FromSlash(relPath))
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			return copyFile(p, dest)
		}

		hash, err := hashFile(p)
		if err != nil {
			return err
		}
		base := strings.TrimSuffix(relPath, path.Ext(relPath))
		hashed := fmt.Sprintf("%s.%s%s", base, hash[:8], path.Ext(relPath))
		dest := filepath.Join(assetsDir, filepath.FromSlash(hashed))

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		if err := copyFile(p, dest); err != nil {
			return err
		}

		manifest.Set(relPath, AssetsDir+"/"+hashed)
		return nil
	})
	if err != nil {
		return errors.New(errors.CodeBuildFailed).WithDetail("copying static assets").Wrap(err)
	}
	return nil
}

// progress reports build progress.
func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

func writeFile(dest, content string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.New(errors.CodeBuildFailed).Wrap(err)
	}
	if err := os.WriteFile(dest, []byte(content), 0644); err != nil {
		return errors.New(errors.CodeBuildFailed).Wrap(err)
	}
	return nil
}

// hashFile returns the SHA256 hash of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile copies a file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// Clean removes the build output directory.
func (b *Builder) Clean() error {
	return os.RemoveAll(b.config.OutputPath())
}
