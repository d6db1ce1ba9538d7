// Package assets resolves bundle entries to the URLs pages load them from.
//
// "kiln build" writes a manifest.json mapping each entry to its
// fingerprinted file:
//
//	{
//	  "main.js": "main.a1b2c3d4.js",
//	  "admin/app.js": "admin/app.e5f6a7b8.js"
//	}
//
// With a manifest, entries resolve to the hashed static file; without
// one, they resolve to the on-demand distribution endpoint:
//
//	manifest, _ := assets.Load("dist/manifest.json")
//	assets.NewResolver(manifest, "/").Asset("main.js")       // "/main.a1b2c3d4.js"
//	assets.NewDistResolver("/_kiln/bundle").Asset("main.js") // "/_kiln/bundle?entry=main.js"
package assets

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Manifest holds the mapping from source asset paths to fingerprinted paths.
// It is safe for concurrent use.
type Manifest struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewManifest creates an empty manifest.
// Use Load() to create a manifest from a JSON file.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string]string),
	}
}

// Load reads a manifest.json file and returns a Manifest.
// The manifest file is expected to be in JSON format: {"main.js": "main.abc12345.js"}
//
// If the file does not exist or cannot be read, an error is returned.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	if entries == nil {
		entries = make(map[string]string)
	}
	return &Manifest{entries: entries}, nil
}

// Save writes the manifest as indented JSON, creating parent directories.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.entries, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// Resolve returns the fingerprinted path for the given source path.
// If not found, returns the original path unchanged.
//
// This is the core resolution function. For most use cases, prefer using
// a Resolver with a configured prefix.
func (m *Manifest) Resolve(source string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if resolved, ok := m.entries[source]; ok {
		return resolved
	}
	return source
}

// Has returns true if the manifest contains the given source path.
func (m *Manifest) Has(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[source]
	return ok
}

// Set adds or updates an entry in the manifest.
// The build records each written entry with Set.
func (m *Manifest) Set(source, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[source] = resolved
}

// Len returns the number of entries in the manifest.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// All returns a copy of all manifest entries.
func (m *Manifest) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		result[k] = v
	}
	return result
}
