package router

import (
	"net/url"
	"strings"
)

// Matches reports whether path matches pattern. Both are split on "/" and
// must have the same number of segments; parameter segments match any
// segment, empty ones included, and literal segments must be equal. A
// query string on path is ignored.
func Matches(pattern, path string) bool {
	ps := segments(pattern)
	xs := segments(stripQuery(path))
	if len(ps) != len(xs) {
		return false
	}
	for i, seg := range ps {
		if !isParam(seg) && seg != xs[i] {
			return false
		}
	}
	return true
}

// ExtractParams maps each parameter of pattern to the corresponding segment
// of path. A trailing "?" is removed from parameter names. The result is
// empty, never nil, when pattern has no parameters.
func ExtractParams(pattern, path string) map[string]string {
	params := make(map[string]string)
	ps := segments(pattern)
	xs := segments(stripQuery(path))
	for i, seg := range ps {
		if !isParam(seg) || i >= len(xs) {
			continue
		}
		params[ParamName(seg)] = xs[i]
	}
	return params
}

// ExtractQuery parses the query string following the first "?" of
// rawPath. Keys and values are URL-decoded; a key without "=" maps to the
// empty string and later duplicates win.
func ExtractQuery(rawPath string) map[string]string {
	query := make(map[string]string)
	_, raw, ok := strings.Cut(rawPath, "?")
	if !ok || raw == "" {
		return query
	}
	raw, _, _ = strings.Cut(raw, "#")

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		k = unescape(k)
		if k == "" {
			continue
		}
		query[k] = unescape(v)
	}
	return query
}

// ParamName returns the parameter name of a pattern segment (":id?" -> "id").
func ParamName(segment string) string {
	return strings.TrimSuffix(strings.TrimPrefix(segment, ":"), "?")
}

// PatternParams lists the parameter names of pattern in order.
func PatternParams(pattern string) []string {
	var names []string
	for _, seg := range segments(pattern) {
		if isParam(seg) {
			names = append(names, ParamName(seg))
		}
	}
	return names
}

func segments(p string) []string {
	return strings.Split(p, "/")
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, ":")
}

func stripQuery(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
