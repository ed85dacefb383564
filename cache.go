package axiom

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Cache fronts the Query Engine's All/Get reads with an external store the
// caller supplies — a Redis client, an in-process LRU, whatever fits.
// Database never assumes one is present; WithCache attaches it.
type Cache interface {
	// Get reports (nil, nil) on a miss, distinct from a lookup error.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. ttl == 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// DeletePrefix invalidates every key sharing prefix, e.g. all entries
	// for one table after a mutation.
	DeletePrefix(ctx context.Context, prefix string) error

	Clear(ctx context.Context) error
}

// CacheKey identifies one rendered query for cache lookup purposes. Two
// calls that render to the same SQL and params against the same dialect
// share a cache entry.
type CacheKey struct {
	Dialect string
	SQL     string
	Params  []any
}

// String returns the string representation of the cache key: the dialect
// and SQL text are kept readable for debugging, while the params are
// digested so the key stays a bounded size regardless of payload.
func (k CacheKey) String() string {
	h := sha256.New()
	for _, p := range k.Params {
		fmt.Fprintf(h, "%T:%v|", p, p)
	}
	return k.Dialect + ":" + k.SQL + ":" + hex.EncodeToString(h.Sum(nil))
}
