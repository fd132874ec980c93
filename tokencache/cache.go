// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package tokencache caches a machine (client credentials) access token and
// refreshes it shortly before it expires.
package tokencache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/businesshub/hubauth/sdk/strutils"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"
)

// DefaultSafetyBuffer is how long before its expiry a cached token is
// considered stale.
const DefaultSafetyBuffer = 30 * time.Second

var (
	// ErrNilFetcher is returned by New when no Fetcher is given.
	ErrNilFetcher = errors.New("fetcher is nil")

	// ErrEmptyToken is returned when a Fetcher returns an empty token.
	ErrEmptyToken = errors.New("fetched token is empty")
)

// Fetcher obtains a fresh token and the time it expires.
type Fetcher interface {
	Fetch(ctx context.Context) (token string, expiresAt time.Time, err error)
}

// FetcherFunc is an adapter to allow the use of ordinary functions as
// Fetchers.
type FetcherFunc func(ctx context.Context) (string, time.Time, error)

// Fetch calls f(ctx).
func (f FetcherFunc) Fetch(ctx context.Context) (string, time.Time, error) {
	return f(ctx)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache holds at most one token. It is safe for concurrent use, and
// concurrent refreshes share a single fetch.
type Cache struct {
	fetcher Fetcher
	buffer  time.Duration
	now     func() time.Time
	logger  hclog.Logger

	mu    sync.Mutex
	entry *entry
	// generation changes on every Invalidate so a fetch that started before
	// it doesn't repopulate the cache.
	generation uint64
	group      singleflight.Group
}

// New creates a Cache backed by f.
//
// Supported options: WithSafetyBuffer, WithNow, WithLogger
func New(f Fetcher, opt ...Option) (*Cache, error) {
	const op = "tokencache.New"
	if f == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNilFetcher)
	}
	opts := getOpts(opt...)
	return &Cache{
		fetcher: f,
		buffer:  opts.withSafetyBuffer,
		now:     opts.withNowFunc,
		logger:  opts.withLogger,
	}, nil
}

// Token returns the cached token while now < expiresAt - buffer, otherwise it
// fetches, caches and returns a fresh one. A failed fetch leaves the cache
// empty.
func (c *Cache) Token(ctx context.Context) (string, error) {
	const op = "tokencache.(Cache).Token"
	c.mu.Lock()
	if v, ok := c.cachedLocked(); ok {
		c.mu.Unlock()
		return v, nil
	}
	gen := c.generation
	c.mu.Unlock()

	// the fetch is shared, so one caller giving up must not cancel it
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return c.refresh(fetchCtx, gen)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("%s: %w", op, res.Err)
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// cachedLocked must be called while holding c.mu
func (c *Cache) cachedLocked() (string, bool) {
	if c.entry != nil && c.now().Before(c.entry.expiresAt.Add(-c.buffer)) {
		return c.entry.value, true
	}
	return "", false
}

func (c *Cache) refresh(ctx context.Context, gen uint64) (string, error) {
	// a refresh that finished just before this one started may have filled
	// the cache already
	c.mu.Lock()
	if v, ok := c.cachedLocked(); ok && c.generation == gen {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, expiresAt, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.logger.Error("unable to fetch machine token", "error", err)
		return "", err
	}
	if v == "" {
		return "", ErrEmptyToken
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.entry = &entry{value: v, expiresAt: expiresAt}
	}
	c.logger.Debug("machine token refreshed", "token", strutils.Preview(v), "expires_at", expiresAt)
	return v, nil
}

// Invalidate drops the cached token, whatever its expiry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
	c.generation++
}
