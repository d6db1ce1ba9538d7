package dev

import (
	"path/filepath"

	"github.com/vango-dev/kiln/internal/config"
)

// CollectWatchPaths returns the deduplicated directories watched in dev
// mode: the bundle root, the static directory and every dev.watch entry.
func CollectWatchPaths(cfg *config.Config) []string {
	paths := append(cfg.WatchPaths(), cfg.PublicPath())

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}

	return unique
}
