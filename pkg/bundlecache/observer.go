package bundlecache

import "time"

// Observer receives cache events. Implementations must be safe for
// concurrent use and must not call back into the cache.
type Observer interface {
	Hit()
	Miss()
	Shared()
	Evict()
	Build(d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Hit()                      {}
func (nopObserver) Miss()                     {}
func (nopObserver) Shared()                   {}
func (nopObserver) Evict()                    {}
func (nopObserver) Build(time.Duration, error) {}
