package bundle

import (
	"fmt"
	"time"

	"github.com/vango-dev/kiln/internal/config"
)

// Target selects the environment a bundle is built for.
type Target string

const (
	TargetServer    Target = "server"
	TargetBrowser   Target = "browser"
	TargetUniversal Target = "universal"
)

// DefaultRootID is the element id hydration mounts against.
const DefaultRootID = "root"

// DefaultExtensions are tried for extension-less specifiers.
var DefaultExtensions = []string{".js", ".mjs", ".jsx", ".ts", ".json"}

// ParseTarget validates a target name. The empty string is TargetBrowser.
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case "":
		return TargetBrowser, nil
	case TargetServer, TargetBrowser, TargetUniversal:
		return Target(s), nil
	}
	return "", fmt.Errorf("unknown bundle target %q", s)
}

// Browser reports whether the target is delivered to browsers.
func (t Target) Browser() bool {
	return t == TargetBrowser || t == TargetUniversal
}

// Options configures a single Generate call. The zero value is usable;
// see DefaultOptions for the configured defaults.
type Options struct {
	// Minify strips comments and collapses whitespace.
	Minify bool `json:"minify"`

	// SourceMap emits a placeholder source map and a sourceMappingURL trailer.
	SourceMap bool `json:"sourceMap"`

	// SourceMapURL is written into the trailer. Defaults to "<entry base>.map".
	SourceMapURL string `json:"sourceMapURL,omitempty"`

	// Comments keeps comments when Minify is off, and /*! license comments
	// when it is on.
	Comments bool `json:"comments"`

	// Target is the delivery environment.
	Target Target `json:"target"`

	// Hydration appends a bootstrap for browser targets.
	Hydration bool `json:"hydration"`

	// RootID is the element id passed to the entry's mount function.
	RootID string `json:"rootID,omitempty"`

	// Extensions, MaxDepth and IgnorePatterns are handed to the resolver.
	Extensions     []string `json:"extensions,omitempty"`
	MaxDepth       int      `json:"maxDepth,omitempty"`
	IgnorePatterns []string `json:"ignorePatterns,omitempty"`
}

// DefaultOptions returns options with comments kept, a browser target and
// the default extensions.
func DefaultOptions() Options {
	return Options{
		Comments:   true,
		Target:     TargetBrowser,
		RootID:     DefaultRootID,
		Extensions: append([]string(nil), DefaultExtensions...),
	}
}

func (o Options) normalize() Options {
	if o.Target == "" {
		o.Target = TargetBrowser
	}
	if o.RootID == "" {
		o.RootID = DefaultRootID
	}
	if o.Extensions == nil {
		o.Extensions = DefaultExtensions
	}
	return o
}

// Result is a generated bundle. Results are shared between the cache and
// concurrent requesters and must not be modified.
type Result struct {
	// Entry is the root-relative entry path.
	Entry string

	// Code is the complete bundle.
	Code string

	// Map is the source map JSON when Options.SourceMap is set.
	Map string

	// HydrationCode is the bootstrap appended to Code, if any.
	HydrationCode string

	// Modules lists every bundled module in registration order.
	Modules []string

	// Dependencies lists bundled modules other than the entry.
	Dependencies []string

	// Hash is the content fingerprint of Code.
	Hash string

	// BuiltAt is when generation finished.
	BuiltAt time.Time
}

// ETag returns the quoted entity tag for the bundle.
func (r *Result) ETag() string {
	return `"` + r.Hash + `"`
}

// OptionsFromConfig maps the bundle section of kiln.json to Options.
func OptionsFromConfig(cfg config.BundleConfig) Options {
	return Options{
		Minify:         cfg.Minify,
		SourceMap:      cfg.SourceMaps,
		Comments:       cfg.Comments,
		Target:         Target(cfg.Target),
		Hydration:      cfg.Hydration,
		RootID:         cfg.RootID,
		Extensions:     append([]string(nil), cfg.Extensions...),
		MaxDepth:       cfg.MaxDepth,
		IgnorePatterns: append([]string(nil), cfg.Ignore...),
	}.normalize()
}
