package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kiln/internal/build"
	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/internal/publish"
	"github.com/vango-dev/kiln/pkg/bundle"
)

type bundleFlags struct {
	minify    bool
	sourceMap bool
	target    string
	out       string
	publish   bool
}

func bundleCmd(load configLoader) *cobra.Command {
	var f bundleFlags

	cmd := &cobra.Command{
		Use:   "bundle <entry>",
		Short: "Generate one bundle",
		Long: `Generate the bundle for an entry relative to the bundle root.

The bundle is written to stdout, or to --out. With --publish it is also
uploaded to the configured S3 bucket under its content-addressed name.

Examples:
  kiln bundle main.js
  kiln bundle main.js --minify --out=public/main.js
  kiln bundle admin/app.js --publish`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			opts := bundle.OptionsFromConfig(cfg.Bundle)
			if cmd.Flags().Changed("minify") {
				opts.Minify = f.minify
			}
			if cmd.Flags().Changed("sourcemap") {
				opts.SourceMap = f.sourceMap
			}
			if f.target != "" {
				t, err := bundle.ParseTarget(f.target)
				if err != nil {
					return errors.New(errors.CodeBadRequest).Wrap(err)
				}
				opts.Target = t
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, closer, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			gen := bundle.NewGenerator(os.DirFS(cfg.BundleRootPath()), bundle.WithLogger(logger))
			res, err := gen.Generate(ctx, args[0], opts)
			if err != nil {
				return err
			}

			if err := writeBundle(res, f.out); err != nil {
				return err
			}

			if f.publish {
				p, err := publish.NewFromConfig(ctx, cfg, publish.WithLogger(logger))
				if err != nil {
					return err
				}
				key, err := p.Publish(ctx, build.HashedName(res.Entry, res.Hash), res)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "published s3://%s/%s\n", cfg.Publish.Bucket, key)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&f.minify, "minify", false, "Minify output (default from kiln.json)")
	cmd.Flags().BoolVar(&f.sourceMap, "sourcemap", false, "Emit a source map next to --out")
	cmd.Flags().StringVar(&f.target, "target", "", "Delivery target (browser, server, universal)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "Upload the bundle to the configured S3 bucket")

	return cmd
}

// writeBundle writes code to out, or stdout when out is empty. A source
// map is written to out+".map" and linked from the code.
func writeBundle(res *bundle.Result, out string) error {
	if out == "" {
		_, err := fmt.Fprint(stdout, res.Code)
		return err
	}

	code := res.Code
	if res.Map != "" {
		mapPath := out + ".map"
		code = bundle.LinkSourceMap(code, filepath.Base(mapPath))
		if err := os.WriteFile(mapPath, []byte(res.Map), 0644); err != nil {
			return errors.New(errors.CodeBuildFailed).Wrap(err)
		}
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.New(errors.CodeBuildFailed).Wrap(err)
		}
	}
	if err := os.WriteFile(out, []byte(code), 0644); err != nil {
		return errors.New(errors.CodeBuildFailed).Wrap(err)
	}
	success("Wrote %s (%s)", out, formatBytes(int64(len(code))))
	return nil
}
