package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/vango-dev/kiln/internal/config"
	"github.com/vango-dev/kiln/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// ModulePath is the Go module path.
	ModulePath string

	// Description is a short project description.
	Description string

	// BundlePath is the distribution endpoint pages load entries from.
	BundlePath string

	// RootID is the element id the entry mounts on.
	RootID string
}

// Template represents a project template.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Dirs are created even when no file lands in them.
	Dirs []string

	// Files is a map of relative paths to file contents.
	Files map[string]string
}

// Available templates.
var templates = map[string]*Template{
	"default": defaultTemplate(),
	"app":     appTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New(errors.CodeScaffold).
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: default, app")
	}
	return tmpl, nil
}

// List returns all available template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create generates a project in dir. Existing files are never
// overwritten: if any target exists nothing is written.
func (t *Template) Create(dir string, cfg Config) error {
	cfg = withDefaults(dir, cfg)

	targets := append(t.paths(), config.ConfigFileName)
	for _, rel := range targets {
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			return errors.New(errors.CodeScaffold).
				WithDetail(rel + " already exists in " + dir).
				WithSuggestion("Choose an empty directory")
		}
	}

	rendered := make(map[string][]byte, len(t.Files))
	for relPath, content := range t.Files {
		tmpl, err := template.New(relPath).Parse(content)
		if err != nil {
			return errors.New(errors.CodeScaffold).WithDetailf("invalid template %s", relPath).Wrap(err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, cfg); err != nil {
			return errors.New(errors.CodeScaffold).WithDetailf("template execute error %s", relPath).Wrap(err)
		}
		rendered[relPath] = buf.Bytes()
	}

	for _, d := range t.Dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0755); err != nil {
			return errors.New(errors.CodeScaffold).Wrap(err)
		}
	}
	for _, relPath := range t.paths() {
		fullPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return errors.New(errors.CodeScaffold).Wrap(err)
		}
		if err := os.WriteFile(fullPath, rendered[relPath], 0644); err != nil {
			return errors.New(errors.CodeScaffold).Wrap(err)
		}
	}

	kcfg := config.New()
	kcfg.Name = cfg.ProjectName
	kcfg.Bundle.Entries = []string{"main.js"}
	kcfg.Bundle.Hydration = true
	kcfg.Bundle.RootID = cfg.RootID
	kcfg.Distribution.Path = cfg.BundlePath
	if err := kcfg.SaveTo(filepath.Join(dir, config.ConfigFileName)); err != nil {
		return errors.New(errors.CodeScaffold).Wrap(err)
	}
	return nil
}

// paths returns the file paths in sorted order.
func (t *Template) paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func withDefaults(dir string, cfg Config) Config {
	if cfg.ProjectName == "" {
		if abs, err := filepath.Abs(dir); err == nil {
			cfg.ProjectName = filepath.Base(abs)
		}
	}
	if cfg.ModulePath == "" {
		cfg.ModulePath = "example.com/" + cfg.ProjectName
	}
	if cfg.BundlePath == "" {
		cfg.BundlePath = config.DefaultDistributionPath
	}
	if cfg.RootID == "" {
		cfg.RootID = "root"
	}
	return cfg
}

var baseDirs = []string{"public", "logs", "src"}

func baseFiles() map[string]string {
	return map[string]string{
		"public/index.html": `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.ProjectName}}</title>
  <link rel="stylesheet" href="/styles.css">
</head>
<body>
  <div id="{{.RootID}}"></div>
  <script src="{{.BundlePath}}?entry=main.js"></script>
</body>
</html>
`,
		"public/styles.css": `body {
  font-family: system-ui, sans-serif;
  max-width: 800px;
  margin: 0 auto;
  padding: 2rem;
}
`,
		"src/main.js": `import { render } from './app.js';

export function mount(el) {
  render(el);
}
`,
		"src/app.js": `const title = {{printf "%q" .ProjectName}};

export function render(el) {
  const h1 = document.createElement('h1');
  h1.textContent = title;
  el.appendChild(h1);
}
`,
		".gitignore": `dist/
logs/*.log
`,
	}
}

// defaultTemplate returns the default template.
func defaultTemplate() *Template {
	return &Template{
		Name:        "default",
		Description: "Static site with an on-demand bundled entry",
		Dirs:        baseDirs,
		Files:       baseFiles(),
	}
}

// appTemplate returns the app template.
func appTemplate() *Template {
	files := baseFiles()
	files["main.go"] = `package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/vango-dev/kiln/pkg/router"
	"github.com/vango-dev/kiln/pkg/server"
)

func main() {
	srv, err := server.NewFromWorkingDir()
	if err != nil {
		log.Fatal(err)
	}
	srv.Router().Get("/api/health", func(c *router.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
`
	files["go.mod"] = `module {{.ModulePath}}

go 1.24

require github.com/vango-dev/kiln v0.1.0
`
	return &Template{
		Name:        "app",
		Description: "Default plus a Go program embedding the kiln server",
		Dirs:        baseDirs,
		Files:       files,
	}
}
