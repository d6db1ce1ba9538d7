package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vango-dev/kiln/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "kiln.json"

	// DefaultPort is the default server port.
	DefaultPort = 3000

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultDistributionPath is the URL path serving on-demand bundles.
	DefaultDistributionPath = "/_kiln/bundle"

	// DefaultMaxDepth bounds dependency resolution depth.
	DefaultMaxDepth = 64

	// DefaultCacheMaxAge is the bundle Cache-Control max-age in seconds.
	DefaultCacheMaxAge = 300
)

// Bundle targets.
const (
	TargetServer    = "server"
	TargetBrowser   = "browser"
	TargetUniversal = "universal"
)

// Static cache-control policies.
const (
	CacheControlNone       = "none"
	CacheControlProduction = "production"
)

// DefaultExtensions are tried, in order, for extension-less specifiers.
var DefaultExtensions = []string{".js", ".mjs", ".jsx", ".ts", ".json"}

// DefaultMiddleware is the HTTP middleware chain used when none is configured.
var DefaultMiddleware = []string{"requestid", "realip", "recoverer", "logger", "security", "metrics"}

// SupportedEncodings lists the content codings the distribution handler can produce.
var SupportedEncodings = []string{"br", "gzip", "deflate"}

// Config represents the complete kiln.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server"`

	// Static contains static file serving configuration.
	Static StaticConfig `json:"static"`

	// Bundle contains module bundling configuration.
	Bundle BundleConfig `json:"bundle"`

	// Cache contains bundle cache configuration.
	Cache CacheConfig `json:"cache"`

	// Distribution contains bundle delivery configuration.
	Distribution DistributionConfig `json:"distribution"`

	// CORS contains cross-origin configuration for the "cors" middleware.
	CORS CORSConfig `json:"cors"`

	// Security contains response hardening headers for the "security" middleware.
	Security SecurityConfig `json:"security"`

	// Log contains logging configuration.
	Log LogConfig `json:"log"`

	// Dev contains development mode configuration.
	Dev DevConfig `json:"dev"`

	// Build contains production build configuration.
	Build BuildConfig `json:"build"`

	// Publish contains S3 publishing configuration.
	Publish PublishConfig `json:"publish"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`

	// Middleware lists registered HTTP middleware by name, outermost first.
	Middleware []string `json:"middleware,omitempty"`

	// MetricsPath exposes Prometheus metrics when non-empty.
	MetricsPath string `json:"metricsPath,omitempty"`
}

// StaticConfig contains static file serving configuration.
type StaticConfig struct {
	// Dir is the directory containing static files.
	Dir string `json:"dir,omitempty"`

	// Prefix is the URL prefix for static files (default: "/").
	Prefix string `json:"prefix,omitempty"`

	// CacheControl is "none" or "production".
	CacheControl string `json:"cacheControl,omitempty"`

	// Headers are extra headers set on every static response.
	Headers map[string]string `json:"headers,omitempty"`
}

// BundleConfig contains module bundling settings.
type BundleConfig struct {
	// Root is the directory modules are resolved under.
	Root string `json:"root,omitempty"`

	// Entries are the entry points built by "kiln build".
	Entries []string `json:"entries,omitempty"`

	// Extensions are tried in order for extension-less specifiers.
	Extensions []string `json:"extensions,omitempty"`

	// MaxDepth bounds dependency resolution depth.
	MaxDepth int `json:"maxDepth,omitempty"`

	// Ignore lists specifiers left out of bundles (external packages).
	Ignore []string `json:"ignore,omitempty"`

	// Minify strips comments and collapses whitespace.
	Minify bool `json:"minify,omitempty"`

	// SourceMaps emits a source map placeholder.
	SourceMaps bool `json:"sourceMaps,omitempty"`

	// Comments preserves comments in non-minified output.
	Comments bool `json:"comments"`

	// Target is "server", "browser" or "universal".
	Target string `json:"target,omitempty"`

	// Hydration appends the client hydration bootstrap.
	Hydration bool `json:"hydration,omitempty"`

	// RootID is the element id the hydration bootstrap mounts on.
	RootID string `json:"rootID,omitempty"`
}

// CacheConfig contains bundle cache settings.
type CacheConfig struct {
	// MaxEntries bounds the number of cached bundles.
	MaxEntries int `json:"maxEntries,omitempty"`

	// TTL is how long a cached bundle stays fresh (e.g., "10m"). "0" disables expiry.
	TTL string `json:"ttl,omitempty"`

	// BuildTimeout bounds a single bundle build (e.g., "15s").
	BuildTimeout string `json:"buildTimeout,omitempty"`
}

// DistributionConfig contains bundle delivery settings.
type DistributionConfig struct {
	// Path is the URL path serving on-demand bundles.
	Path string `json:"path,omitempty"`

	// CacheMaxAge is the Cache-Control max-age in seconds.
	CacheMaxAge int `json:"cacheMaxAge,omitempty"`

	// Compression lists content codings in server preference order.
	Compression []string `json:"compression,omitempty"`

	// MinCompressSize skips compression for smaller bodies.
	MinCompressSize int `json:"minCompressSize,omitempty"`
}

// CORSConfig contains cross-origin settings.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowedOrigins,omitempty"`
	AllowedMethods   []string `json:"allowedMethods,omitempty"`
	AllowedHeaders   []string `json:"allowedHeaders,omitempty"`
	ExposedHeaders   []string `json:"exposedHeaders,omitempty"`
	AllowCredentials bool     `json:"allowCredentials,omitempty"`
	MaxAge           int      `json:"maxAge,omitempty"`
}

// SecurityConfig contains hardening headers.
type SecurityConfig struct {
	FrameOptions          string `json:"frameOptions,omitempty"`
	ReferrerPolicy        string `json:"referrerPolicy,omitempty"`
	ContentSecurityPolicy string `json:"contentSecurityPolicy,omitempty"`
	HSTSMaxAge            int    `json:"hstsMaxAge,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`

	// File, when set, receives a copy of every log line.
	File string `json:"file,omitempty"`
}

// DevConfig contains development mode settings.
type DevConfig struct {
	// Watch contains extra paths to watch besides the bundle root.
	Watch []string `json:"watch,omitempty"`

	// Ignore contains patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty"`

	// Debounce coalesces bursts of file events (e.g., "100ms").
	Debounce string `json:"debounce,omitempty"`
}

// BuildConfig contains production build settings.
type BuildConfig struct {
	// Output is the output directory for builds.
	Output string `json:"output,omitempty"`
}

// PublishConfig contains S3 publishing settings.
type PublishConfig struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Region string `json:"region,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: "10s",
			Middleware:      append([]string(nil), DefaultMiddleware...),
			MetricsPath:     "/metrics",
		},
		Static: StaticConfig{
			Dir:          "public",
			Prefix:       "/",
			CacheControl: CacheControlProduction,
		},
		Bundle: BundleConfig{
			Root:       "src",
			Extensions: append([]string(nil), DefaultExtensions...),
			MaxDepth:   DefaultMaxDepth,
			Comments:   true,
			Target:     TargetBrowser,
			RootID:     "root",
		},
		Cache: CacheConfig{
			MaxEntries:   256,
			TTL:          "10m",
			BuildTimeout: "15s",
		},
		Distribution: DistributionConfig{
			Path:            DefaultDistributionPath,
			CacheMaxAge:     DefaultCacheMaxAge,
			Compression:     []string{"br", "gzip"},
			MinCompressSize: 256,
		},
		Security: SecurityConfig{
			FrameOptions:   "DENY",
			ReferrerPolicy: "strict-origin-when-cross-origin",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Dev: DevConfig{
			Debounce: "100ms",
		},
		Build: BuildConfig{
			Output: DefaultOutput,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for kiln.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No kiln.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'kiln init <dir>' to create a new project or create kiln.json manually")
		}
		return nil, errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to parse kiln.json: " + err.Error()).
			WithSuggestion("Check that kiln.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// SetDir anchors relative paths at dir without loading a file.
func (c *Config) SetDir(dir string) {
	c.configPath = filepath.Join(dir, ConfigFileName)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Server.Middleware == nil {
		c.Server.Middleware = d.Server.Middleware
	}

	if c.Static.Dir == "" {
		c.Static.Dir = d.Static.Dir
	}
	if c.Static.Prefix == "" {
		c.Static.Prefix = "/"
	}
	if c.Static.CacheControl == "" {
		c.Static.CacheControl = d.Static.CacheControl
	}

	if c.Bundle.Root == "" {
		c.Bundle.Root = d.Bundle.Root
	}
	if len(c.Bundle.Extensions) == 0 {
		c.Bundle.Extensions = d.Bundle.Extensions
	}
	if c.Bundle.MaxDepth <= 0 {
		c.Bundle.MaxDepth = DefaultMaxDepth
	}
	if c.Bundle.Target == "" {
		c.Bundle.Target = d.Bundle.Target
	}
	if c.Bundle.RootID == "" {
		c.Bundle.RootID = d.Bundle.RootID
	}

	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Cache.BuildTimeout == "" {
		c.Cache.BuildTimeout = d.Cache.BuildTimeout
	}

	if c.Distribution.Path == "" {
		c.Distribution.Path = DefaultDistributionPath
	}
	if c.Distribution.CacheMaxAge < 0 {
		c.Distribution.CacheMaxAge = 0
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Dev.Debounce == "" {
		c.Dev.Debounce = d.Dev.Debounce
	}
	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("server.port must be between 0 and 65535")
	}

	switch c.Bundle.Target {
	case TargetServer, TargetBrowser, TargetUniversal:
	default:
		return errors.New(errors.CodeConfigInvalid).
			WithDetailf("bundle.target %q is not one of server, browser, universal", c.Bundle.Target)
	}

	switch c.Static.CacheControl {
	case CacheControlNone, CacheControlProduction:
	default:
		return errors.New(errors.CodeConfigInvalid).
			WithDetailf("static.cacheControl %q is not one of none, production", c.Static.CacheControl)
	}

	for _, enc := range c.Distribution.Compression {
		if !isSupportedEncoding(enc) {
			return errors.New(errors.CodeConfigInvalid).
				WithDetailf("distribution.compression: unsupported encoding %q", enc).
				WithSuggestion("Use any of br, gzip, deflate")
		}
	}

	durations := map[string]string{
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
		"cache.ttl":              c.Cache.TTL,
		"cache.buildTimeout":     c.Cache.BuildTimeout,
		"dev.debounce":           c.Dev.Debounce,
	}
	for field, value := range durations {
		if _, err := parseDuration(value); err != nil {
			return errors.New(errors.CodeConfigInvalid).
				WithDetailf("%s: %v", field, err)
		}
	}

	return nil
}

func isSupportedEncoding(enc string) bool {
	for _, s := range SupportedEncodings {
		if s == enc {
			return true
		}
	}
	return false
}

// parseDuration accepts Go duration strings; empty and "0" mean zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func mustDuration(s string) time.Duration {
	d, _ := parseDuration(s)
	return d
}

// CacheTTL returns the parsed cache TTL (0 = no expiry).
func (c *Config) CacheTTL() time.Duration { return mustDuration(c.Cache.TTL) }

// BuildTimeout returns the parsed build timeout (0 = unbounded).
func (c *Config) BuildTimeout() time.Duration { return mustDuration(c.Cache.BuildTimeout) }

// ShutdownTimeout returns the parsed graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration { return mustDuration(c.Server.ShutdownTimeout) }

// DevDebounce returns the parsed watcher debounce.
func (c *Config) DevDebounce() time.Duration { return mustDuration(c.Dev.Debounce) }

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// resolvePath anchors a relative path at the config directory.
func (c *Config) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// BundleRootPath returns the absolute path modules are resolved under.
func (c *Config) BundleRootPath() string { return c.resolvePath(c.Bundle.Root) }

// PublicPath returns the absolute path to the static directory.
func (c *Config) PublicPath() string { return c.resolvePath(c.Static.Dir) }

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string { return c.resolvePath(c.Build.Output) }

// ManifestPath returns the path of the build manifest.
func (c *Config) ManifestPath() string { return filepath.Join(c.OutputPath(), "manifest.json") }

// LogFilePath returns the absolute log file path, or "" when file logging is off.
func (c *Config) LogFilePath() string {
	if c.Log.File == "" {
		return ""
	}
	return c.resolvePath(c.Log.File)
}

// WatchPaths returns the absolute directories watched in dev mode.
func (c *Config) WatchPaths() []string {
	paths := []string{c.BundleRootPath()}
	for _, p := range c.Dev.Watch {
		paths = append(paths, c.resolvePath(p))
	}
	return paths
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing kiln.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfigNotFound).
				WithDetail("No kiln.json found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'kiln init <dir>' to create a new project")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
