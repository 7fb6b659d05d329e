package llm

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/cache"
)

// Cached serves repeated requests from the response cache.
type Cached struct {
	inner Completer
	store *cache.Cache
	model string
	log   zerolog.Logger
}

// NewCached wraps inner. A nil or disabled store makes it a pass-through.
func NewCached(inner Completer, store *cache.Cache, model string, log zerolog.Logger) *Cached {
	return &Cached{inner: inner, store: store, model: model, log: log}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Complete(ctx context.Context, req Request) (Response, error) {
	if c.store == nil || !c.store.Enabled() {
		return c.inner.Complete(ctx, req)
	}
	key := cache.BuildCacheKey(c.inner.Name(), c.model, req.System+"\x00"+req.Prompt)
	if content, ok := c.store.Get(key); ok {
		c.log.Debug().Str("key", key[:12]).Msg("cache hit")
		return Response{Content: content, Cached: true}, nil
	}
	resp, err := c.inner.Complete(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if err := c.store.Put(key, resp.Content); err != nil {
		c.log.Warn().Err(err).Msg("cache write failed")
	}
	return resp, nil
}
