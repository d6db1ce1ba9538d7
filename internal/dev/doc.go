// Package dev provides file watching and browser live reload for
// "kiln serve --dev".
//
// The Watcher monitors the bundle root (plus dev.watch paths) with
// fsnotify. Bursts of events are coalesced by a debounce window and
// reported once. The server reacts by clearing the bundle cache and
// telling connected browsers to reload.
//
// # Reload Protocol
//
// The browser loads /_kiln/reload.js, which connects to /_kiln/reload via
// WebSocket. Messages are JSON-encoded:
//
//	{"type": "reload"}                // Triggers full page reload
//	{"type": "css", "file": "..."}    // Triggers CSS-only reload
//	{"type": "error", "error": "..."} // Shows error overlay
//	{"type": "clear"}                 // Clears error overlay
package dev
