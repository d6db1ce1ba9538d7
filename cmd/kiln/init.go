package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kiln/internal/templates"
)

func initCmd() *cobra.Command {
	var (
		template    string
		description string
		module      string
	)

	cmd := &cobra.Command{
		Use:   "init <directory>",
		Short: "Create a new kiln project",
		Long: `Create a new kiln project in the given directory.

The directory receives public/, logs/ and src/, a default index.html,
an entry module at src/main.js and a kiln.json. Existing files are never
overwritten.

Templates:
  default   Static site with an on-demand bundled entry
  app       Default plus a Go program embedding the kiln server

Examples:
  kiln init my-site
  kiln init my-app --template=app --module=github.com/me/my-app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0], template, templates.Config{
				Description: description,
				ModulePath:  module,
			})
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "default", "Project template (default, app)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Project description")
	cmd.Flags().StringVar(&module, "module", "", "Go module path (app template)")

	return cmd
}

func runInit(dir, templateName string, cfg templates.Config) error {
	tmpl, err := templates.Get(templateName)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	cfg.ProjectName = filepath.Base(abs)

	if err := tmpl.Create(abs, cfg); err != nil {
		return err
	}

	success("Created %s", dir)
	info("cd %s && kiln serve --dev", dir)
	return nil
}
