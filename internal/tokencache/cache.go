// Package tokencache keeps signed access tokens per scope key and refreshes
// them shortly before they expire.
//
// A Cache is created once at startup and shared by all requests. Lookups are
// guarded by a single RWMutex; concurrent misses for the same key are collapsed
// into one issuance with singleflight. Failed issuances are remembered for a
// bounded time so a scope the signer cannot serve is not retried on every request.
package tokencache

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/eo-datahub/stac-gateway/internal/logger"
)

var errEmptyToken = errors.New("issuer returned an empty token")

type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	group singleflight.Group
	clock clock.Clock

	refreshMargin time.Duration
	negativeTTL   time.Duration
	logger        *logger.Logger
}

type Option func(*Cache)

// WithClock injects a clock. Tests use k8s.io/utils/clock/testing.FakeClock.
func WithClock(c clock.Clock) Option {
	return func(cache *Cache) {
		cache.clock = c
	}
}

// New creates an empty cache. Records are reused while more than refreshMargin
// remains before expiry. Failed issuances are cached for negativeTTL; zero
// disables negative caching.
func New(log *logger.Logger, refreshMargin, negativeTTL time.Duration, opts ...Option) *Cache {
	if log == nil {
		log = logger.Production()
	}
	c := &Cache{
		entries:       make(map[string]entry),
		clock:         clock.RealClock{},
		refreshMargin: refreshMargin,
		negativeTTL:   negativeTTL,
		logger:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrRefresh returns a record for scopeKey that stays valid for at least the
// refresh margin, calling issue when there is none. It returns false when the
// scope is known to be unavailable, issuance fails, or ctx ends first.
//
// Issuance runs on a context detached from ctx: a cancelled request still lets
// an in-flight issuance finish and populate the cache.
func (c *Cache) GetOrRefresh(ctx context.Context, scopeKey string, issue IssueFunc) (*Record, bool) {
	record, state := c.lookup(scopeKey)
	switch state {
	case stateFresh:
		c.logger.Debug("Token cache hit", "scope", scopeKey)
		return record, true
	case stateUnavailable:
		return nil, false
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(scopeKey, func() (any, error) {
		return c.refresh(detached, scopeKey, issue)
	})

	select {
	case <-ctx.Done():
		return nil, false
	case res := <-ch:
		if res.Err != nil {
			return nil, false
		}
		return res.Val.(*Record), true //nolint:forcetypeassert // refresh only returns *Record
	}
}

func (c *Cache) refresh(ctx context.Context, scopeKey string, issue IssueFunc) (*Record, error) {
	// Another flight may have stored a record between lookup and DoChan.
	if record, state := c.lookup(scopeKey); state == stateFresh {
		return record, nil
	}

	token, err := issue(ctx, scopeKey)
	if err == nil && (token == nil || token.Value == "") {
		err = errEmptyToken
	}
	if err != nil {
		c.logger.WithError(err).Warn("Token issuance failed", "scope", scopeKey)
		c.markUnavailable(scopeKey)
		return nil, err
	}

	record := &Record{
		ScopeKey:  scopeKey,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	}

	c.mu.Lock()
	c.entries[scopeKey] = entry{record: record}
	c.mu.Unlock()

	if !c.isFresh(record, c.clock.Now()) {
		c.logger.Warn("Issued token expires within the refresh margin",
			"scope", scopeKey,
			"expires_at", record.ExpiresAt,
			"refresh_margin", c.refreshMargin,
		)
	}
	c.logger.Debug("Token issued", "scope", scopeKey, "expires_at", record.ExpiresAt)

	return record, nil
}

func (c *Cache) markUnavailable(scopeKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.negativeTTL <= 0 {
		delete(c.entries, scopeKey)
		return
	}
	c.entries[scopeKey] = entry{unavailableUntil: c.clock.Now().Add(c.negativeTTL)}
}

func (c *Cache) lookup(scopeKey string) (*Record, lookupState) {
	c.mu.RLock()
	e, ok := c.entries[scopeKey]
	c.mu.RUnlock()
	if !ok {
		return nil, stateMiss
	}

	now := c.clock.Now()
	if e.record == nil {
		if now.Before(e.unavailableUntil) {
			return nil, stateUnavailable
		}
		return nil, stateMiss
	}
	if c.isFresh(e.record, now) {
		return e.record, stateFresh
	}
	return nil, stateMiss
}

func (c *Cache) isFresh(record *Record, now time.Time) bool {
	return now.Before(record.ExpiresAt.Add(-c.refreshMargin))
}

// Invalidate drops whatever is stored for scopeKey.
func (c *Cache) Invalidate(scopeKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[scopeKey]
	delete(c.entries, scopeKey)
	return ok
}

// Sweep removes expired records and lapsed unavailable markers, returning how many were dropped.
func (c *Cache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		expired := e.record != nil && !now.Before(e.record.ExpiresAt)
		lapsed := e.record == nil && !now.Before(e.unavailableUntil)
		if expired || lapsed {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps the cache every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if removed := c.Sweep(); removed > 0 {
				c.logger.Debug("Swept token cache", "removed", removed, "remaining", c.Len())
			}
		}
	}
}

// Len returns the number of entries, unavailable markers included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot lists the entries sorted by scope key.
func (c *Cache) Snapshot() []EntryInfo {
	c.mu.RLock()
	infos := make([]EntryInfo, 0, len(c.entries))
	for key, e := range c.entries {
		info := EntryInfo{ScopeKey: key}
		if e.record != nil {
			info.ExpiresAt = e.record.ExpiresAt
		} else {
			info.Unavailable = true
			info.UnavailableUntil = e.unavailableUntil
		}
		infos = append(infos, info)
	}
	c.mu.RUnlock()

	slices.SortFunc(infos, func(a, b EntryInfo) int {
		return strings.Compare(a.ScopeKey, b.ScopeKey)
	})
	return infos
}
