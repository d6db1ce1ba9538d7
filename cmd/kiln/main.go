package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kiln/internal/config"
	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/internal/logging"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

// errorStyle is set by --errors.
var errorStyle = "text"

const banner = `
  ╦╔═┬┬  ┌┐┌
  ╠╩╗││  │││
  ╩ ╩┴┴─┘┘└┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err, errorStyle)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string

	rootCmd := &cobra.Command{
		Use:   "kiln",
		Short: "Server shell and on-demand JavaScript bundler for Go",
		Long: `kiln serves a Go web application together with JavaScript bundles
that are assembled on request, cached by content, and delivered with
conditional GET and compression.

  • Ordered router with OpenAPI output
  • Static files with fingerprint-aware caching
  • On-demand bundles at /_kiln/bundle
  • Live reload in dev mode
  • Production builds and S3 publishing`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "C", ".", "Project directory (kiln.json is searched upward from here)")
	rootCmd.PersistentFlags().StringVar(&errorStyle, "errors", "text", "Error output style: text, compact or json")

	load := func() (*config.Config, error) {
		root, err := config.FindProjectRoot(dir)
		if err != nil {
			return nil, err
		}
		return config.Load(root)
	}

	rootCmd.AddCommand(
		initCmd(),
		serveCmd(load),
		bundleCmd(load),
		buildCmd(load),
		versionCmd(),
	)
	return rootCmd
}

// configLoader loads the project configuration selected by --dir.
type configLoader func() (*config.Config, error)

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	return logging.New(cfg.Log, cfg.LogFilePath(), os.Stderr)
}

// printBanner prints the kiln ASCII art banner.
func printBanner() {
	fmt.Fprint(stdout, banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Fprintf(stdout, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Fprintf(stdout, "  %s\n", fmt.Sprintf(format, args...))
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
