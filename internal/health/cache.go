package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/model"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/store"
)

// Cache is the distributed, cached view of each processor's health
// (C2). It coalesces concurrent refreshes for the same processor within one
// replica using a singleflight.Group — at most one outstanding upstream
// probe per replica per processor — while different replicas may still
// probe concurrently, which spec.md §4.2 accepts as cheap and harmless.
type Cache struct {
	store   *store.Store
	probe   *Probe
	ttl     time.Duration
	baseURL map[model.ProcessorIdentity]string
	group   singleflight.Group
}

// NewCache builds a Cache for the given processor base URLs.
func NewCache(st *store.Store, probe *Probe, ttl time.Duration, baseURL map[model.ProcessorIdentity]string) *Cache {
	return &Cache{store: st, probe: probe, ttl: ttl, baseURL: baseURL}
}

func cacheKey(p model.ProcessorIdentity) string {
	return "health_check:" + string(p)
}

// GetHealth returns the cached snapshot, refreshing it on a miss. An
// unreachable store is treated as a miss. A nil snapshot means "unknown" —
// the cache held no usable entry and the probe returned nothing.
func (c *Cache) GetHealth(ctx context.Context, p model.ProcessorIdentity) *model.HealthSnapshot {
	if snap := c.readCached(ctx, p); snap != nil {
		return snap
	}

	v, _, _ := c.group.Do(string(p), func() (interface{}, error) {
		// Double-check: an earlier flight may have populated the cache
		// between the first read and the start of this one.
		if snap := c.readCached(ctx, p); snap != nil {
			return snap, nil
		}

		snap, err := c.probe.Fetch(ctx, c.baseURL[p])
		if err != nil || snap == nil {
			return (*model.HealthSnapshot)(nil), nil
		}

		// Write-behind: the fast path does not wait on the store write
		// landing, so a slow or unavailable store never pushes probe
		// latency onto the caller.
		go c.writeCache(p, *snap)

		return snap, nil
	})

	snap, _ := v.(*model.HealthSnapshot)
	return snap
}

func (c *Cache) readCached(ctx context.Context, p model.ProcessorIdentity) *model.HealthSnapshot {
	raw, err := c.store.GetString(ctx, cacheKey(p))
	if err != nil {
		return nil
	}
	var snap model.HealthSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil
	}
	return &snap
}

func (c *Cache) writeCache(p model.ProcessorIdentity, snap model.HealthSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.store.SetStringTTL(ctx, cacheKey(p), string(raw), c.ttl); err != nil {
		slog.Warn("health_cache_write_failed", "processor", p, "error", err)
	}
}
