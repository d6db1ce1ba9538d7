package bundlecache

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/vango-dev/kiln/pkg/bundle"
)

// Key derives the cache key for an entry point built with opts. Options are
// serialised as JSON in field order, so equal options give equal keys.
func Key(entry string, opts bundle.Options) string {
	b, err := json.Marshal(struct {
		Entry   string         `json:"entry"`
		Options bundle.Options `json:"options"`
	}{entry, opts})
	if err != nil {
		// Options holds only plain values; fall back to the entry alone.
		b = []byte(entry)
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}
