package bundle

import (
	"encoding/json"
	"path"
	"strings"
)

// sourceMap is a version 3 source map without mappings. It names the
// bundled sources so devtools can list them; positions are not tracked.
type sourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

func buildSourceMap(entry string, sources, contents []string) (string, error) {
	sm := sourceMap{
		Version:        3,
		File:           path.Base(entry),
		Sources:        sources,
		SourcesContent: contents,
		Names:          []string{},
	}
	b, err := json.Marshal(sm)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sourceMapURL(entry string, opts Options) string {
	if opts.SourceMapURL != "" {
		return opts.SourceMapURL
	}
	return path.Base(entry) + ".map"
}

const sourceMapTrailer = "//# sourceMappingURL="

// LinkSourceMap points the sourceMappingURL trailer of code at url. Code
// without a trailer is returned unchanged.
func LinkSourceMap(code, url string) string {
	i := strings.LastIndex(code, sourceMapTrailer)
	if i < 0 {
		return code
	}
	return code[:i] + sourceMapTrailer + url + "\n"
}
