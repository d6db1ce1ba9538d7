package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kiln/pkg/server"
)

func serveCmd(load configLoader) *cobra.Command {
	var (
		dev  bool
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the kiln HTTP server for the current project.

With --dev the bundle root is watched: any change clears the bundle
cache and reloads connected browsers.

Examples:
  kiln serve
  kiln serve --dev --port=8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			logger, closer, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			srv, err := server.New(cfg, server.WithLogger(logger), server.WithDev(dev))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			success("Listening on http://%s", cfg.Address())
			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&dev, "dev", false, "Watch sources and enable live reload")
	cmd.Flags().StringVar(&host, "host", "", "Listen host (default from kiln.json)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from kiln.json)")

	return cmd
}
