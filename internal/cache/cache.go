// Package cache serves config documents from memory in front of a hub.
// Concurrent misses for the same key share one fetch, misses are cached
// briefly, and ACTIVE entries expire after a bounded TTL or as soon as an
// activation event arrives.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/event"
	"github.com/memohai/accelerator/internal/syncx"
)

// Default lifetimes.
const (
	DefaultActiveTTL   = 30 * time.Second
	DefaultNegativeTTL = 5 * time.Second
	DefaultPinnedTTL   = 10 * time.Minute
	DefaultWaitTimeout = 5 * time.Second
)

// Loader fetches documents. An empty version or ACTIVE means the active one.
type Loader interface {
	Get(ctx context.Context, t configdoc.Type, version string) (configdoc.Document, error)
}

// Options tunes a Cache. Zero values select the defaults.
type Options struct {
	ActiveTTL   time.Duration
	NegativeTTL time.Duration
	PinnedTTL   time.Duration
	WaitTimeout time.Duration
	Now         func() time.Time
}

type key struct {
	t       configdoc.Type
	version string
}

type entry struct {
	ready   *syncx.Event
	doc     configdoc.Document
	err     error
	expires time.Time
}

// Cache is a read-through Loader.
type Cache struct {
	loader Loader
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	entries map[key]*entry
	// gens counts invalidations per type so fetches that straddle one are
	// not kept.
	gens map[configdoc.Type]uint64
}

// New wraps loader.
func New(log *slog.Logger, loader Loader, opts Options) *Cache {
	if log == nil {
		log = slog.Default()
	}
	if opts.ActiveTTL <= 0 {
		opts.ActiveTTL = DefaultActiveTTL
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = DefaultNegativeTTL
	}
	if opts.PinnedTTL <= 0 {
		opts.PinnedTTL = DefaultPinnedTTL
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		loader:  loader,
		opts:    opts,
		logger:  log.With(slog.String("component", "config_cache")),
		entries: map[key]*entry{},
		gens:    map[configdoc.Type]uint64{},
	}
}

// Get returns a copy of the document, fetching it at most once per key
// while the entry is fresh.
func (c *Cache) Get(ctx context.Context, t configdoc.Type, version string) (configdoc.Document, error) {
	k := newKey(t, version)

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		if !e.ready.IsSet() {
			c.mu.Unlock()
			return c.wait(ctx, k, e)
		}
		if c.opts.Now().Before(e.expires) {
			c.mu.Unlock()
			return result(e)
		}
		delete(c.entries, k)
	}
	e := &entry{ready: syncx.NewEvent()}
	c.entries[k] = e
	gen := c.gens[k.t]
	c.mu.Unlock()

	c.fill(ctx, k, e, gen)
	return result(e)
}

// fill runs the fetch for a new entry. The fetch is detached from the
// caller's cancellation so waiters are not failed by another caller leaving.
func (c *Cache) fill(ctx context.Context, k key, e *entry, gen uint64) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.WaitTimeout)
	defer cancel()

	doc, err := c.loader.Get(fetchCtx, k.t, k.version)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer e.ready.Set()

	now := c.opts.Now()
	e.doc, e.err = doc, err
	switch {
	case err == nil && k.version == configdoc.ActiveVersion:
		e.expires = now.Add(c.opts.ActiveTTL)
	case err == nil:
		e.expires = now.Add(c.opts.PinnedTTL)
	case apperr.IsKind(err, apperr.KindConfigNotFound) || apperr.IsKind(err, apperr.KindNoActive):
		e.expires = now.Add(c.opts.NegativeTTL)
	default:
		e.expires = now
	}
	if c.gens[k.t] != gen {
		e.expires = now
	}
	if !now.Before(e.expires) && c.entries[k] == e {
		delete(c.entries, k)
	}
}

func (c *Cache) wait(ctx context.Context, k key, e *entry) (configdoc.Document, error) {
	timer := time.NewTimer(c.opts.WaitTimeout)
	defer timer.Stop()
	select {
	case <-e.ready.Done():
		return result(e)
	case <-ctx.Done():
		return configdoc.Document{}, apperr.From(ctx.Err())
	case <-timer.C:
		return configdoc.Document{}, apperr.New(apperr.KindTimeout, "waiting for %s %s", k.t, k.version)
	}
}

// Invalidate drops the ACTIVE entry of t and every cached miss of t.
func (c *Cache) Invalidate(t configdoc.Type) {
	t = normalizeType(t)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[t]++
	for k, e := range c.entries {
		if k.t != t {
			continue
		}
		if k.version == configdoc.ActiveVersion || (e.ready.IsSet() && e.err != nil) {
			delete(c.entries, k)
		}
	}
}

// Listen invalidates entries as hub events arrive, until ctx is done.
func (c *Cache) Listen(ctx context.Context, sub event.Subscriber) {
	_, stream, cancel := sub.Subscribe(event.AllTypes, 0)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			c.logger.Debug("invalidate",
				slog.String("event", string(ev.Type)),
				slog.String("config_type", ev.ConfigType),
				slog.String("config_version", ev.Version))
			c.Invalidate(configdoc.Type(ev.ConfigType))
		}
	}
}

// Len returns the number of cached entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func result(e *entry) (configdoc.Document, error) {
	if e.err != nil {
		return configdoc.Document{}, e.err
	}
	return e.doc.Clone(), nil
}

func newKey(t configdoc.Type, version string) key {
	version = strings.TrimSpace(version)
	if version == "" || strings.EqualFold(version, configdoc.ActiveVersion) {
		version = configdoc.ActiveVersion
	}
	return key{t: normalizeType(t), version: version}
}

func normalizeType(t configdoc.Type) configdoc.Type {
	return configdoc.Type(strings.ToUpper(strings.TrimSpace(string(t))))
}
