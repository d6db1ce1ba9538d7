package dev

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vango-dev/kiln/internal/logging"
)

// ChangeType represents the type of file change.
type ChangeType int

const (
	ChangeScript ChangeType = iota
	ChangeCSS
	ChangeTemplate
	ChangeAsset
)

func (t ChangeType) String() string {
	switch t {
	case ChangeScript:
		return "script"
	case ChangeCSS:
		return "css"
	case ChangeTemplate:
		return "template"
	default:
		return "asset"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Type ChangeType
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the directories to watch, recursively. Missing paths are
	// skipped.
	Paths []string

	// Ignore patterns to skip (globs, names or path segments).
	Ignore []string

	// Debounce is the quiet period after the last event before changes
	// are reported.
	Debounce time.Duration

	// Logger receives watcher errors.
	Logger *slog.Logger
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"dist",
	"logs",
	"*.tmp",
	"*.swp",
	"*~",
	".DS_Store",
}

// Watcher monitors files for changes.
type Watcher struct {
	config   WatcherConfig
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	onChange func([]Change)
	mu       sync.Mutex
	started  atomic.Bool
	running  atomic.Bool
}

// NewWatcher creates a file watcher and registers every non-ignored
// directory under the configured paths.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dev: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		config: config,
		logger: logging.OrDiscard(config.Logger),
		fsw:    fsw,
	}
	for _, root := range config.Paths {
		if err := w.addTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// OnChange sets the callback for file changes. Each callback receives the
// changes of one debounce window, sorted by path.
func (w *Watcher) OnChange(fn func([]Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start processes file events until ctx is cancelled. It returns nil on
// cancellation and may only be called once.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("dev: watcher already started")
	}
	w.running.Store(true)
	defer w.running.Store(false)

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		changes := make([]Change, 0, len(pending))
		for p := range pending {
			changes = append(changes, Change{Path: p, Type: classifyChange(p)})
		}
		clear(pending)
		mu.Unlock()
		if len(changes) == 0 {
			return
		}
		sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

		w.mu.Lock()
		callback := w.onChange
		w.mu.Unlock()
		if callback != nil {
			callback(changes)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		_ = w.fsw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.shouldIgnore(evt.Name) || evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						w.logger.Warn("watch new directory", "path", evt.Name, "error", err)
					}
					continue
				}
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.config.Debounce, fire)
			} else {
				timer.Reset(w.config.Debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// IsRunning returns whether the watcher is processing events.
func (w *Watcher) IsRunning() bool {
	return w.running.Load()
}

// Close releases the watcher without starting it.
func (w *Watcher) Close() error {
	if w.started.Load() {
		return nil
	}
	return w.fsw.Close()
}

func (w *Watcher) addTree(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			// Unreadable directories are skipped, not fatal.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("dev: watch %q: %w", p, err)
		}
		return nil
	})
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if name == pattern {
			return true
		}

		hasPathSep := strings.Contains(pattern, "/") || strings.Contains(pattern, "\\")
		hasGlob := strings.ContainsAny(pattern, "*?[")

		if hasGlob {
			if hasPathSep {
				if matched, _ := path.Match(filepath.ToSlash(pattern), normalized); matched {
					return true
				}
			} else if matched, _ := filepath.Match(pattern, name); matched {
				return true
			}
			continue
		}

		if hasPathSep {
			if pathMatchesSegments(normalized, filepath.ToSlash(pattern)) {
				return true
			}
			continue
		}

		if pathHasSegment(normalized, pattern) {
			return true
		}
	}

	return false
}

func pathHasSegment(path, segment string) bool {
	if segment == "" {
		return false
	}
	for _, part := range splitPathSegments(path) {
		if part == segment {
			return true
		}
	}
	return false
}

func pathMatchesSegments(path, pattern string) bool {
	pathParts := splitPathSegments(path)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}

	for i := 0; i <= len(pathParts)-len(patternParts); i++ {
		match := true
		for j := range patternParts {
			if pathParts[i+j] != patternParts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}

func splitPathSegments(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}

// classifyChange determines the type of change based on file extension.
func classifyChange(path string) ChangeType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx", ".json":
		return ChangeScript
	case ".css", ".scss", ".sass", ".less":
		return ChangeCSS
	case ".html", ".htm":
		return ChangeTemplate
	default:
		return ChangeAsset
	}
}
