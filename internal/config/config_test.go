package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/kiln/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Build.Output != DefaultOutput {
		t.Errorf("Build.Output = %q, want %q", cfg.Build.Output, DefaultOutput)
	}
	if cfg.Distribution.Path != DefaultDistributionPath {
		t.Errorf("Distribution.Path = %q, want %q", cfg.Distribution.Path, DefaultDistributionPath)
	}
	if !cfg.Bundle.Comments {
		t.Error("Bundle.Comments should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if err == nil {
		t.Fatal("Expected error for missing config")
	}
	if !errors.HasCode(err, errors.CodeConfigNotFound) {
		t.Errorf("missing config error = %v, want E141", err)
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "name": "demo",
  "server": {
    "port": 8080,
    "host": "0.0.0.0"
  },
  "bundle": {
    "root": "client",
    "entries": ["main.js"],
    "ignore": ["react"],
    "minify": true,
    "target": "universal",
    "hydration": true
  },
  "cache": {
    "ttl": "1m",
    "buildTimeout": "2s"
  },
  "distribution": {
    "compression": ["gzip"]
  }
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Address() != "0.0.0.0:8080" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if cfg.Bundle.Target != TargetUniversal {
		t.Errorf("Bundle.Target = %q, want universal", cfg.Bundle.Target)
	}
	if !cfg.Bundle.Comments {
		t.Error("Bundle.Comments should keep its default when absent")
	}
	if len(cfg.Bundle.Extensions) != len(DefaultExtensions) {
		t.Errorf("Bundle.Extensions = %v, want defaults", cfg.Bundle.Extensions)
	}
	if cfg.CacheTTL() != time.Minute {
		t.Errorf("CacheTTL() = %v, want 1m", cfg.CacheTTL())
	}
	if cfg.BuildTimeout() != 2*time.Second {
		t.Errorf("BuildTimeout() = %v, want 2s", cfg.BuildTimeout())
	}
	if cfg.Cache.MaxEntries != 256 {
		t.Errorf("Cache.MaxEntries = %d, want 256", cfg.Cache.MaxEntries)
	}
	if got := cfg.BundleRootPath(); got != filepath.Join(tmpDir, "client") {
		t.Errorf("BundleRootPath() = %q", got)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(tmpDir)
	if !errors.HasCode(err, errors.CodeConfigInvalid) {
		t.Errorf("error = %v, want E120", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		detail string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad target", func(c *Config) { c.Bundle.Target = "edge" }, "bundle.target"},
		{"bad cache control", func(c *Config) { c.Static.CacheControl = "forever" }, "static.cacheControl"},
		{"bad encoding", func(c *Config) { c.Distribution.Compression = []string{"zstd"} }, "zstd"},
		{"bad ttl", func(c *Config) { c.Cache.TTL = "soon" }, "cache.ttl"},
		{"negative timeout", func(c *Config) { c.Cache.BuildTimeout = "-1s" }, "cache.buildTimeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.detail) {
				t.Errorf("error %q should mention %q", err.Error(), tt.detail)
			}
		})
	}
}

func TestZeroDurations(t *testing.T) {
	cfg := New()
	cfg.Cache.TTL = "0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.CacheTTL() != 0 {
		t.Errorf("CacheTTL() = %v, want 0", cfg.CacheTTL())
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Name = "roundtrip"
	cfg.Bundle.Comments = false
	cfg.Bundle.Entries = []string{"main.js", "admin.js"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Name != "roundtrip" {
		t.Errorf("Name = %q", loaded.Name)
	}
	if loaded.Bundle.Comments {
		t.Error("Comments=false must survive a save/load cycle")
	}
	if len(loaded.Bundle.Entries) != 2 {
		t.Errorf("Entries = %v", loaded.Bundle.Entries)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := New().Save(); err == nil {
		t.Error("Save without a config path should fail")
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := New().SaveTo(filepath.Join(root, ConfigFileName)); err != nil {
		t.Fatal(err)
	}

	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot: %v", err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("FindProjectRoot = %q, want %q", got, want)
	}
}

func TestWatchPaths(t *testing.T) {
	cfg := New()
	cfg.SetDir("/proj")
	cfg.Dev.Watch = []string{"templates", "/abs/shared"}

	paths := cfg.WatchPaths()
	want := []string{filepath.Join("/proj", "src"), filepath.Join("/proj", "templates"), "/abs/shared"}
	if len(paths) != len(want) {
		t.Fatalf("WatchPaths() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("WatchPaths()[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
	if cfg.LogFilePath() != "" {
		t.Error("LogFilePath should be empty when file logging is off")
	}
	cfg.Log.File = "logs/kiln.log"
	if cfg.LogFilePath() != filepath.Join("/proj", "logs", "kiln.log") {
		t.Errorf("LogFilePath() = %q", cfg.LogFilePath())
	}
}
