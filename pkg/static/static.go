// Package static serves files from a directory in front of another handler.
package static

import (
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// Cache policies.
const (
	CacheControlNone       = "none"
	CacheControlProduction = "production"
)

// Config configures a Handler.
type Config struct {
	// Prefix is the URL prefix files are served under (default "/").
	Prefix string

	// CacheControl is CacheControlNone or CacheControlProduction. Empty
	// leaves Cache-Control unset.
	CacheControl string

	// Headers are set on every file response.
	Headers map[string]string
}

// Handler serves files from an fs.FS.
type Handler struct {
	fsys   fs.FS
	prefix string
	cfg    Config
}

// New creates a Handler over fsys. A nil fsys serves nothing.
func New(fsys fs.FS, cfg Config) *Handler {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Handler{fsys: fsys, prefix: prefix, cfg: cfg}
}

// Middleware serves an existing file for GET and HEAD requests and passes
// everything else to next.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		if name, ok := h.lookup(r.URL.Path); ok {
			h.serve(w, r, name)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP serves a file or responds 404.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Middleware(http.NotFoundHandler()).ServeHTTP(w, r)
}

// Exists reports whether urlPath maps to a servable file.
func (h *Handler) Exists(urlPath string) bool {
	_, ok := h.lookup(urlPath)
	return ok
}

// lookup maps a URL path to a regular file in fsys. Directory paths fall
// back to their index.html.
func (h *Handler) lookup(urlPath string) (string, bool) {
	if h.fsys == nil {
		return "", false
	}
	rel, ok := h.relPath(urlPath)
	if !ok {
		return "", false
	}
	if rel == "" {
		return h.regular("index.html")
	}
	if name, ok := h.regular(rel); ok {
		return name, true
	}
	if info, err := fs.Stat(h.fsys, rel); err == nil && info.IsDir() {
		return h.regular(path.Join(rel, "index.html"))
	}
	return "", false
}

func (h *Handler) regular(name string) (string, bool) {
	info, err := fs.Stat(h.fsys, name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return name, true
}

// relPath returns a sanitized fs.FS name for urlPath. The empty string
// names the root directory. Traversal and absolute-path tricks are
// rejected so serving cannot escape the file system.
func (h *Handler) relPath(urlPath string) (string, bool) {
	var rel string
	if h.prefix == "/" {
		rel = strings.TrimPrefix(urlPath, "/")
	} else {
		if urlPath+"/" == h.prefix {
			return "", true
		}
		if !strings.HasPrefix(urlPath, h.prefix) {
			return "", false
		}
		rel = strings.TrimPrefix(urlPath, h.prefix)
	}

	// "/dir/" is served as "dir".
	rel = strings.TrimSuffix(rel, "/")
	if rel == "" {
		return "", true
	}

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}
	if strings.Contains(rel, "\\") {
		return "", false
	}
	// After prefix stripping a leading "/" is an absolute-path attempt
	// ("/static//etc/passwd").
	if strings.HasPrefix(rel, "/") {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if !fs.ValidPath(clean) {
		return "", false
	}
	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}
	return clean, true
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, name string) {
	f, err := h.fsys.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	h.applyCacheHeaders(w, name)
	for key, value := range h.cfg.Headers {
		w.Header().Set(key, value)
	}

	if rs, ok := f.(readSeeker); ok {
		http.ServeContent(w, r, name, info.ModTime(), rs)
		return
	}
	// fs.File without Seek: let the file server stream it.
	http.ServeFileFS(w, r, h.fsys, name)
}

type readSeeker interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
}

func (h *Handler) applyCacheHeaders(w http.ResponseWriter, name string) {
	switch h.cfg.CacheControl {
	case CacheControlNone:
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	case CacheControlProduction:
		if IsFingerprinted(name) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		}
	}
}

// IsFingerprinted reports whether a file name carries a content hash, as
// in "app.a1b2c3d4.js": a second-to-last dot segment of at least eight
// hex characters.
func IsFingerprinted(name string) bool {
	parts := strings.Split(path.Base(name), ".")
	if len(parts) < 3 {
		return false
	}
	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
