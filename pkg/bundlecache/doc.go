// Package bundlecache stores generated bundles by key with TTL expiry,
// insertion-order eviction and build deduplication.
//
// GetOrBuild is the entry point used by the distribution handler. Concurrent
// callers asking for the same missing key share a single build: the first
// caller starts it and the rest wait for its result or error. The build runs
// detached from any caller's context, bounded by the build timeout, so a
// disconnecting client does not abort work other waiters depend on.
//
// Eviction is first-in first-out. Refreshing a key with Set replaces its
// value and expiry but keeps its original position; reads never reorder.
package bundlecache
