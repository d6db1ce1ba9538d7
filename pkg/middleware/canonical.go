package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vango-dev/kiln/pkg/errorpage"
)

// Path canonicalization errors.
var (
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("path escapes root via ..")
)

// CanonicalPath normalizes an escaped URL path: it collapses repeated
// slashes, drops "." segments, resolves ".." and removes a trailing slash
// other than the root. changed reports whether the result differs from
// the input.
//
// Backslashes, NUL bytes (literal or %00), malformed percent escapes and
// ".." above the root are rejected.
func CanonicalPath(escaped string) (canonical string, changed bool, err error) {
	if escaped == "" {
		return "/", true, nil
	}
	if strings.Contains(escaped, `\`) {
		return "", false, ErrBackslashInPath
	}
	if strings.Contains(escaped, "\x00") || strings.Contains(strings.ToUpper(escaped), "%00") {
		return "", false, ErrNullByteInPath
	}
	if strings.Contains(escaped, "%") {
		if err := validatePercentEscapes(escaped); err != nil {
			return "", false, err
		}
	}

	var segs []string
	for _, seg := range strings.Split(escaped, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segs) == 0 {
				return "", false, ErrPathEscapesRoot
			}
			segs = segs[:len(segs)-1]
		default:
			segs = append(segs, seg)
		}
	}

	canonical = "/" + strings.Join(segs, "/")
	return canonical, canonical != escaped, nil
}

func validatePercentEscapes(p string) error {
	for i := 0; i < len(p); i++ {
		if p[i] != '%' {
			continue
		}
		if i+2 >= len(p) || !isHexDigit(p[i+1]) || !isHexDigit(p[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Canonical redirects requests for non-canonical paths with 308, which
// keeps the method and body, and rejects invalid paths with 400.
func Canonical(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		canonical, changed, err := CanonicalPath(r.URL.EscapedPath())
		if err != nil {
			errorpage.Write(w, http.StatusBadRequest, "Invalid path")
			return
		}
		if changed {
			target := canonical
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}
