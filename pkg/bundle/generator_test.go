package bundle

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/vango-dev/kiln/internal/errors"
)

func sourceFS() fstest.MapFS {
	return fstest.MapFS{
		"main.js": {Data: []byte(`// entry point
import util from './util.js';
import data from "./data";

export function mount(el) {
  el.textContent = util(data.greeting);
}
`)},
		"util.js": {Data: []byte(`/*! util v1 | MIT */
export default function shout(s) {
  return s.toUpperCase() + "   !";
}
`)},
		"data.json": {Data: []byte(`{"greeting": "hello   world"}`)},
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	g := NewGenerator(fstest.MapFS{
		"main.js": {Data: []byte(`import util from './util.js'; util();`)},
		"util.js": {Data: []byte(`export default function () {}`)},
	})

	res, err := g.Generate(context.Background(), "main.js", Options{Minify: false})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(res.Dependencies) != 1 || res.Dependencies[0] != "util.js" {
		t.Errorf("Dependencies = %v, want [util.js]", res.Dependencies)
	}
	if len(res.Modules) != 2 || res.Modules[1] != "main.js" {
		t.Errorf("Modules = %v, want [util.js main.js]", res.Modules)
	}

	utilAt := strings.Index(res.Code, `define("util.js"`)
	mainAt := strings.Index(res.Code, `define("main.js"`)
	if utilAt < 0 || mainAt < 0 {
		t.Fatalf("code is missing registrations:\n%s", res.Code)
	}
	if utilAt > mainAt {
		t.Error("util.js should be registered before main.js")
	}
	if !strings.Contains(res.Code, `{"./util.js":"util.js"}`) {
		t.Error("main.js registration should carry its dependency map")
	}
	if !strings.Contains(res.Code, `global.__kiln["main.js"] = require("main.js");`) {
		t.Error("entry exports should be published")
	}
	if res.Entry != "main.js" {
		t.Errorf("Entry = %q", res.Entry)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	opts := DefaultOptions()
	opts.Hydration = true

	a, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", opts)
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash != b.Hash {
		t.Errorf("hashes differ: %s vs %s", a.Hash, b.Hash)
	}
	if len(a.Hash) != 32 {
		t.Errorf("hash length = %d, want 32", len(a.Hash))
	}
	if a.Hash != Hash(a.Code) {
		t.Error("Hash should fingerprint Code")
	}
	if a.ETag() != `"`+a.Hash+`"` {
		t.Errorf("ETag = %s", a.ETag())
	}

	opts.Minify = true
	c, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", opts)
	if err != nil {
		t.Fatal(err)
	}
	if c.Hash == a.Hash {
		t.Error("minified bundle should hash differently")
	}
}

func TestGenerateMinify(t *testing.T) {
	opts := DefaultOptions()
	opts.Minify = true

	res, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", opts)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.Code, "// entry point") {
		t.Error("line comments should be stripped")
	}
	if !strings.Contains(res.Code, "/*! util v1 | MIT */") {
		t.Error("license comment should survive when comments are kept")
	}
	if !strings.Contains(res.Code, `"hello   world"`) || !strings.Contains(res.Code, `"   !"`) {
		t.Error("string contents must not change")
	}
	if strings.Contains(res.Code, "function shout(s) {\n  return") {
		t.Error("whitespace runs should be collapsed")
	}

	plain, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Code) >= len(plain.Code) {
		t.Errorf("minified %d bytes, unminified %d", len(res.Code), len(plain.Code))
	}

	opts.Comments = false
	bare, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", opts)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(bare.Code, "/*!") {
		t.Error("license comment should be stripped when comments are off")
	}
}

func TestGenerateCommentsOff(t *testing.T) {
	res, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", Options{Comments: false})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.Code, "// entry point") || strings.Contains(res.Code, "/*!") {
		t.Error("comments should be stripped")
	}
	if !strings.Contains(res.Code, "  el.textContent") {
		t.Error("indentation should be kept without minify")
	}
}

func TestGenerateJSONModule(t *testing.T) {
	res, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Code, `module.exports = {"greeting": "hello   world"};`) {
		t.Errorf("json module not wrapped:\n%s", res.Code)
	}
}

func TestGenerateHydration(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		hydra  bool
		want   bool
	}{
		{"browser", TargetBrowser, true, true},
		{"universal", TargetUniversal, true, true},
		{"server", TargetServer, true, false},
		{"disabled", TargetBrowser, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Target = tt.target
			opts.Hydration = tt.hydra
			opts.RootID = "app"

			res, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := res.HydrationCode != ""; got != tt.want {
				t.Fatalf("hydration present = %v, want %v", got, tt.want)
			}
			if !tt.want {
				return
			}
			if !strings.HasSuffix(res.Code, res.HydrationCode) {
				t.Error("hydration should be appended to the bundle")
			}
			for _, want := range []string{`getElementById("app")`, `global.__kiln["main.js"]`, `"hydrate", "mount", "render"`} {
				if !strings.Contains(res.HydrationCode, want) {
					t.Errorf("hydration code missing %s", want)
				}
			}
		})
	}
}

func TestGenerateSourceMap(t *testing.T) {
	opts := DefaultOptions()
	opts.SourceMap = true

	res, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", opts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(res.Code, "//# sourceMappingURL=main.js.map\n") {
		t.Errorf("missing trailer, code ends %q", res.Code[len(res.Code)-40:])
	}

	var sm sourceMap
	if err := json.Unmarshal([]byte(res.Map), &sm); err != nil {
		t.Fatalf("map is not JSON: %v", err)
	}
	if sm.Version != 3 || len(sm.Sources) != 3 || sm.Sources[2] != "main.js" {
		t.Errorf("map = %+v", sm)
	}

	opts.SourceMapURL = "/_kiln/bundle?entry=main.js&map=1"
	res, err = NewGenerator(sourceFS()).Generate(context.Background(), "main.js", opts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Code, "//# sourceMappingURL=/_kiln/bundle?entry=main.js&map=1") {
		t.Error("custom source map URL not used")
	}

	res, err = NewGenerator(sourceFS()).Generate(context.Background(), "main.js", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Map != "" || strings.Contains(res.Code, "sourceMappingURL") {
		t.Error("source map should be off by default")
	}
}

func TestGenerateErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"broken.js": {Data: []byte(`import "./nope"`)},
		"a.js":      {Data: []byte(`import "./b"`)},
		"b.js":      {Data: []byte(`import "./c"`)},
		"c.js":      {Data: []byte(``)},
	}
	tests := []struct {
		entry    string
		maxDepth int
		code     string
	}{
		{"missing.js", 0, errors.CodeRead},
		{"broken.js", 0, errors.CodeResolution},
		{"a.js", 2, errors.CodeDepthExceeded},
	}
	for _, tt := range tests {
		opts := DefaultOptions()
		opts.MaxDepth = tt.maxDepth
		_, err := NewGenerator(fsys).Generate(context.Background(), tt.entry, opts)
		if !errors.HasCode(err, tt.code) {
			t.Errorf("%s: err = %v, want %s", tt.entry, err, tt.code)
		}
	}
}

func TestGenerateClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	res, err := NewGenerator(sourceFS(), WithClock(func() time.Time { return fixed })).
		Generate(context.Background(), "main.js", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !res.BuiltAt.Equal(fixed) {
		t.Errorf("BuiltAt = %v, want %v", res.BuiltAt, fixed)
	}
}

func TestParseTarget(t *testing.T) {
	for _, s := range []string{"", "browser", "server", "universal"} {
		if _, err := ParseTarget(s); err != nil {
			t.Errorf("ParseTarget(%q): %v", s, err)
		}
	}
	if _, err := ParseTarget("deno"); err == nil {
		t.Error("ParseTarget(deno) should fail")
	}
	if tgt, _ := ParseTarget(""); tgt != TargetBrowser {
		t.Errorf("empty target = %q, want browser", tgt)
	}
}

func TestLinkSourceMap(t *testing.T) {
	opts := DefaultOptions()
	opts.SourceMap = true
	res, err := NewGenerator(sourceFS()).Generate(context.Background(), "main.js", opts)
	if err != nil {
		t.Fatal(err)
	}

	linked := LinkSourceMap(res.Code, "main.0123abcd.js.map")
	if !strings.HasSuffix(linked, "\n//# sourceMappingURL=main.0123abcd.js.map\n") {
		t.Errorf("trailer not replaced, ends %q", linked[len(linked)-60:])
	}
	if strings.Count(linked, "sourceMappingURL") != 1 {
		t.Error("exactly one trailer expected")
	}
	if got := LinkSourceMap("var a;\n", "x.map"); got != "var a;\n" {
		t.Errorf("code without trailer changed: %q", got)
	}
}
