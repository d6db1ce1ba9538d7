package assets

import (
	"net/url"
	"strings"
)

// Resolver provides asset path resolution.
type Resolver interface {
	// Asset resolves a bundle entry to the URL a page loads it from.
	//
	// Example:
	//   resolver.Asset("main.js") → "/main.a1b2c3d4.js"
	Asset(source string) string
}

// manifestResolver wraps a Manifest to implement Resolver.
type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver creates a Resolver from a Manifest with a path prefix, the
// static prefix the build output is served under. A prefix without a
// trailing slash gets one.
//
// Example:
//
//	manifest, _ := assets.Load("dist/manifest.json")
//	resolver := assets.NewResolver(manifest, "/static")
//	resolver.Asset("main.js") // "/static/main.a1b2c3d4.js"
func NewResolver(m *Manifest, prefix string) Resolver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &manifestResolver{
		manifest: m,
		prefix:   prefix,
	}
}

func (r *manifestResolver) Asset(source string) string {
	return r.prefix + r.manifest.Resolve(source)
}

// distResolver points entries at the on-demand bundle endpoint.
type distResolver struct {
	path string
}

// NewDistResolver creates a resolver for serving without a build: every
// entry resolves to the distribution endpoint, which bundles on request.
//
//	resolver := assets.NewDistResolver("/_kiln/bundle")
//	resolver.Asset("admin/app.js") // "/_kiln/bundle?entry=admin%2Fapp.js"
func NewDistResolver(path string) Resolver {
	return &distResolver{path: path}
}

func (d *distResolver) Asset(source string) string {
	return d.path + "?" + url.Values{"entry": {source}}.Encode()
}
