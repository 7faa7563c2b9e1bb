package tts

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// voiceFetchTimeout bounds a shared listing fetch, which outlives any single
// caller's context.
const voiceFetchTimeout = 30 * time.Second

// voiceCache memoizes an adapter's voice listing for the adapter's lifetime.
// Concurrent misses share one fetch; failures are not cached. A caller that
// gives up does not cancel the fetch for the others waiting on it.
type voiceCache struct {
	ttl   time.Duration // <= 0 never expires
	fetch func(ctx context.Context) (*VoiceList, error)
	now   func() time.Time

	group     singleflight.Group
	mu        sync.RWMutex
	list      *VoiceList
	fetchedAt time.Time
}

func newVoiceCache(ttl time.Duration, fetch func(ctx context.Context) (*VoiceList, error)) *voiceCache {
	return &voiceCache{ttl: ttl, fetch: fetch, now: time.Now}
}

func (c *voiceCache) get(ctx context.Context) (*VoiceList, error) {
	c.mu.RLock()
	list, at := c.list, c.fetchedAt
	c.mu.RUnlock()
	if list != nil && (c.ttl <= 0 || c.now().Sub(at) < c.ttl) {
		return list, nil
	}

	ch := c.group.DoChan("voices", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), voiceFetchTimeout)
		defer cancel()
		fresh, err := c.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.list, c.fetchedAt = fresh, c.now()
		c.mu.Unlock()
		return fresh, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*VoiceList), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *voiceCache) invalidate() {
	c.mu.Lock()
	c.list = nil
	c.mu.Unlock()
}
