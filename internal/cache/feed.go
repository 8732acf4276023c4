package cache

import (
	"context"

	"github.com/google/uuid"
)

// initialGeneration is used until the first Invalidate.
const initialGeneration = "0"

// FeedCache files rendered feed documents under a generation stored in the
// cache itself. Invalidate starts a new generation; documents of older ones
// are never read again and expire on their own TTL.
type FeedCache struct {
	c Cache
}

// NewFeedCache wraps c. It holds no state of its own, so every process
// sharing c sees the same generation.
func NewFeedCache(c Cache) *FeedCache {
	return &FeedCache{c: c}
}

// Key returns the cache key for a filter hash in the current generation.
// Take the key before reading reports so a concurrent Invalidate cannot
// leave a stale document under the new generation.
func (f *FeedCache) Key(ctx context.Context, filterHash string) (string, error) {
	gen, found, err := f.c.Get(ctx, FeedGenerationKey())
	if err != nil {
		return "", err
	}
	if !found {
		return FeedKey(initialGeneration, filterHash), nil
	}
	return FeedKey(string(gen), filterHash), nil
}

// Invalidate retires every cached feed document.
func (f *FeedCache) Invalidate(ctx context.Context) error {
	return f.c.Set(ctx, FeedGenerationKey(), []byte(uuid.NewString()), 0)
}
