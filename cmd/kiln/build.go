package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kiln/internal/build"
	"github.com/vango-dev/kiln/internal/publish"
	"github.com/vango-dev/kiln/pkg/bundle"
)

func buildCmd(load configLoader) *cobra.Command {
	var (
		output      string
		minify      bool
		sourceMaps  bool
		concurrency int
		publishOut  bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build for production",
		Long: `Build every configured entry for production deployment.

This command:
  • Generates each entry in bundle.entries in parallel
  • Writes content-addressed bundles (and source maps)
  • Copies static assets with cache busting
  • Generates the asset manifest

Examples:
  kiln build
  kiln build --output=out --sourcemaps
  kiln build --publish`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if output != "" {
				cfg.Build.Output = output
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(stdout, "  Building for production...")
			fmt.Fprintln(stdout)

			gen := bundle.NewGenerator(os.DirFS(cfg.BundleRootPath()))
			builder := build.New(cfg, gen, build.Options{
				Minify:      minify,
				SourceMaps:  sourceMaps,
				Concurrency: concurrency,
				OnProgress: func(step string) {
					info("%s", step)
				},
			})

			result, err := builder.Build(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(stdout)
			success("Build complete in %s", result.Duration.Round(1000000))
			fmt.Fprintln(stdout)
			fmt.Fprintf(stdout, "  Output: %s/\n", cfg.Build.Output)
			for _, f := range result.Files {
				fmt.Fprintf(stdout, "    %-24s → %s (%s)\n", f.Entry, f.Name, formatBytes(f.Size))
			}
			fmt.Fprintln(stdout)

			if !publishOut {
				return nil
			}
			logger, closer, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			p, err := publish.NewFromConfig(ctx, cfg, publish.WithLogger(logger))
			if err != nil {
				return err
			}
			keys, err := p.PublishBuild(ctx, result, cfg.ManifestPath())
			if err != nil {
				return err
			}
			success("Published %d objects to s3://%s", len(keys), cfg.Publish.Bucket)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from kiln.json)")
	cmd.Flags().BoolVar(&minify, "minify", true, "Minify output")
	cmd.Flags().BoolVar(&sourceMaps, "sourcemaps", false, "Generate source maps")
	cmd.Flags().IntVarP(&concurrency, "jobs", "j", 0, "Parallel entry builds (default GOMAXPROCS)")
	cmd.Flags().BoolVar(&publishOut, "publish", false, "Upload the build to the configured S3 bucket")

	return cmd
}
