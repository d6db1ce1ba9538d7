package bundlecache

import (
	"container/list"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/pkg/bundle"
)

const (
	// DefaultMaxEntries bounds the cache when no option is given.
	DefaultMaxEntries = 256

	// DefaultBuildTimeout bounds a single shared build.
	DefaultBuildTimeout = 15 * time.Second
)

// BuildFunc produces the value for a missing key.
type BuildFunc func(ctx context.Context) (*bundle.Result, error)

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int
	InFlight  int
	Hits      uint64
	Misses    uint64
	Builds    uint64
	Shared    uint64
	Evictions uint64
	Timeouts  uint64
}

type entry struct {
	key       string
	value     *bundle.Result
	expiresAt time.Time // zero means no expiry
}

// Cache is safe for concurrent use.
type Cache struct {
	maxEntries   int
	ttl          time.Duration
	buildTimeout time.Duration
	now          func() time.Time
	observer     Observer

	group singleflight.Group

	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // of *entry, oldest first
	inflight map[string]uint64
	gen      uint64
	floor    map[string]uint64 // builds at or below this generation are stale
	cleared  uint64
	stats    Stats
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries bounds the number of stored bundles. Zero or less means
// unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithTTL sets the default entry lifetime. Zero means entries never expire.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithBuildTimeout bounds each shared build. Zero disables the bound.
func WithBuildTimeout(d time.Duration) Option {
	return func(c *Cache) { c.buildTimeout = d }
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver receives cache and build events.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

// New creates a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxEntries:   DefaultMaxEntries,
		buildTimeout: DefaultBuildTimeout,
		now:          time.Now,
		observer:     nopObserver{},
		entries:      make(map[string]*list.Element),
		order:        list.New(),
		inflight:     make(map[string]uint64),
		floor:        make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the stored value for key. Expired entries are removed.
func (c *Cache) Get(key string) (*bundle.Result, bool) {
	c.mu.Lock()
	v, ok := c.lookupLocked(key)
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.mu.Unlock()

	if ok {
		c.observer.Hit()
	} else {
		c.observer.Miss()
	}
	return v, ok
}

// Has reports whether key holds an unexpired value.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookupLocked(key)
	return ok
}

// Set stores v under key. A ttl of zero or less uses the cache default.
func (c *Cache) Set(key string, v *bundle.Result, ttl time.Duration) {
	c.mu.Lock()
	evicted := c.setLocked(key, v, ttl)
	c.mu.Unlock()

	if evicted {
		c.observer.Evict()
	}
}

// Delete removes key and releases its in-flight membership. A build already
// running for key still completes for its waiters but is not stored.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	delete(c.inflight, key)
	c.floor[key] = c.gen
	c.mu.Unlock()

	c.group.Forget(key)
}

// Clear removes every entry and in-flight membership.
func (c *Cache) Clear() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.inflight))
	for k := range c.inflight {
		keys = append(keys, k)
	}
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.inflight = make(map[string]uint64)
	c.floor = make(map[string]uint64)
	c.cleared = c.gen
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k)
	}
}

// Len returns the number of stored entries, including expired ones not yet
// observed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.order.Len()
	s.InFlight = len(c.inflight)
	return s
}

// GetOrBuild returns the value for key, building it at most once across
// concurrent callers. A caller whose ctx is cancelled stops waiting while the
// build continues; a caller whose ctx deadline passes gets a timeout error
// and the key's in-flight membership is released.
func (c *Cache) GetOrBuild(ctx context.Context, key string, build BuildFunc) (*bundle.Result, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	// A build may have settled between the miss and this lock.
	if v, ok := c.lookupLocked(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	gen, running := c.inflight[key]
	if !running {
		c.gen++
		gen = c.gen
		c.inflight[key] = gen
	} else {
		c.stats.Shared++
	}
	c.mu.Unlock()

	if running {
		c.observer.Shared()
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return c.run(ctx, key, gen, build)
	})

	select {
	case res := <-ch:
		// gen may have joined a call that settled another generation.
		c.release(key, gen)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*bundle.Result), nil
	case <-ctx.Done():
		err := ctx.Err()
		if !stderrors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.abandon(key, gen)
		return nil, errors.New(errors.CodeTimeout).
			WithDetailf("gave up waiting for %s", key).
			Wrap(err)
	}
}

// run executes one shared build on a detached, time-bounded context.
func (c *Cache) run(ctx context.Context, key string, gen uint64, build BuildFunc) (*bundle.Result, error) {
	// A build that finished after this caller's miss may already have
	// stored the value.
	c.mu.Lock()
	v, ok := c.lookupLocked(key)
	if ok && c.inflight[key] == gen {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	bctx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if c.buildTimeout > 0 {
		bctx, cancel = context.WithTimeout(bctx, c.buildTimeout)
	}
	defer cancel()

	type outcome struct {
		v   *bundle.Result
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.New(errors.CodeBuildFailed).WithDetailf("build panicked: %v", r)}
			}
		}()
		v, err := build(bctx)
		done <- outcome{v: v, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-bctx.Done():
		out.err = bctx.Err()
	}

	if out.err == nil && out.v == nil {
		out.err = errors.New(errors.CodeBuildFailed).WithDetail("build returned no result")
	}
	if out.err != nil && stderrors.Is(out.err, context.DeadlineExceeded) && !errors.HasCode(out.err, errors.CodeTimeout) {
		out.err = errors.New(errors.CodeTimeout).
			WithDetailf("build of %s exceeded %s", key, c.buildTimeout).
			Wrap(out.err)
	}

	c.settle(key, gen, out.v, out.err)
	c.observer.Build(time.Since(start), out.err)
	return out.v, out.err
}

// settle releases gen's in-flight membership and stores a successful value
// unless key was invalidated after the build started.
func (c *Cache) settle(key string, gen uint64, v *bundle.Result, err error) {
	var evicted bool

	c.mu.Lock()
	if c.inflight[key] == gen {
		delete(c.inflight, key)
	}
	if err == nil {
		c.stats.Builds++
		if gen > c.floor[key] && gen > c.cleared {
			evicted = c.setLocked(key, v, 0)
		}
	} else if errors.HasCode(err, errors.CodeTimeout) {
		c.stats.Timeouts++
	}
	c.mu.Unlock()

	if evicted {
		c.observer.Evict()
	}
}

// release drops gen's in-flight membership once its waiters have a result.
func (c *Cache) release(key string, gen uint64) {
	c.mu.Lock()
	if c.inflight[key] == gen {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
}

// abandon releases in-flight membership after a caller deadline so the next
// caller starts a fresh build.
func (c *Cache) abandon(key string, gen uint64) {
	c.mu.Lock()
	forget := c.inflight[key] == gen
	if forget {
		delete(c.inflight, key)
	}
	c.stats.Timeouts++
	c.mu.Unlock()

	if forget {
		c.group.Forget(key)
	}
}

func (c *Cache) lookupLocked(key string) (*bundle.Result, bool) {
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.removeLocked(el)
		return nil, false
	}
	return e.value, true
}

// setLocked stores v and reports whether an entry was evicted for it.
func (c *Cache) setLocked(key string, v *bundle.Result, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.ttl
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = v
		e.expiresAt = expiresAt
		return false
	}

	evicted := false
	if c.maxEntries > 0 && c.order.Len() >= c.maxEntries {
		if oldest := c.order.Front(); oldest != nil {
			c.removeLocked(oldest)
			c.stats.Evictions++
			evicted = true
		}
	}
	c.entries[key] = c.order.PushBack(&entry{key: key, value: v, expiresAt: expiresAt})
	return evicted
}

func (c *Cache) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.entries, e.key)
}

func (s Stats) String() string {
	return fmt.Sprintf("entries=%d inflight=%d hits=%d misses=%d builds=%d shared=%d evictions=%d timeouts=%d",
		s.Entries, s.InFlight, s.Hits, s.Misses, s.Builds, s.Shared, s.Evictions, s.Timeouts)
}
