// Package templates provides project scaffolding templates.
//
// # Available Templates
//
//   - default: static site with an on-demand bundled entry
//   - app: default plus a Go program that embeds the kiln server
//
// # Usage
//
//	tmpl, err := templates.Get("default")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tmpl.Create(projectDir, templates.Config{ProjectName: "shop"}); err != nil {
//	    log.Fatal(err)
//	}
//
// # Template Variables
//
//	{{.ProjectName}}     - Name of the project
//	{{.ModulePath}}      - Go module path (app template)
//	{{.Description}}     - Project description
//	{{.BundlePath}}      - Distribution endpoint
//	{{.RootID}}          - Element id the entry mounts on
package templates
