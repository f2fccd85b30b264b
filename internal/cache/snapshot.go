package cache

import (
	"context"
	"sync"
	"time"

	"stockRadar/internal/model"
	"stockRadar/internal/trace"
)

// SnapshotProvider 全市场快照数据源。
type SnapshotProvider interface {
	FetchSnapshot(ctx context.Context) ([]model.StockQuote, error)
}

// SnapshotCache 只保存最近一次成功拉取的快照，后写覆盖先写。
type SnapshotCache struct {
	provider SnapshotProvider
	ttl      time.Duration
	clock    Clock

	mu   sync.RWMutex
	snap model.Snapshot
	has  bool
}

func NewSnapshotCache(provider SnapshotProvider, ttl time.Duration, clock Clock) *SnapshotCache {
	if clock == nil {
		clock = SystemClock
	}
	return &SnapshotCache{provider: provider, ttl: ttl, clock: clock}
}

// Get 缓存非空且未过期时直接返回副本；否则拉取新快照。
// 拉取失败时有旧快照则返回旧快照（Stale=true），否则返回空快照。
func (c *SnapshotCache) Get(ctx context.Context, force bool) model.Snapshot {
	now := c.clock.Now()
	if !force {
		c.mu.RLock()
		if c.has && !c.snap.Empty() && now.Sub(c.snap.CapturedAt) < c.ttl {
			out := c.snap.Clone()
			c.mu.RUnlock()
			trace.Debug(ctx, "cache: 使用缓存快照 age=%s", now.Sub(out.CapturedAt).Round(time.Millisecond))
			return out
		}
		c.mu.RUnlock()
	}

	start := c.clock.Now()
	rows, err := c.provider.FetchSnapshot(ctx)
	if err != nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.has {
			trace.Warn(ctx, "cache: 刷新快照失败，复用 %s 前的旧快照 err=%v",
				now.Sub(c.snap.CapturedAt).Round(time.Second), err)
			out := c.snap.Clone()
			out.Stale = true
			return out
		}
		trace.Error(ctx, "cache: 刷新快照失败且无缓存 err=%v", err)
		return model.Snapshot{}
	}

	fresh := model.Snapshot{Rows: rows, CapturedAt: now}
	c.mu.Lock()
	c.snap = fresh
	c.has = true
	c.mu.Unlock()
	trace.Log(ctx, "cache: 快照已刷新 rows=%d 耗时=%s", len(rows), c.clock.Now().Sub(start).Round(time.Millisecond))
	return fresh.Clone()
}

// Age 当前快照距今时长，无快照返回 false。
func (c *SnapshotCache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.has {
		return 0, false
	}
	return c.clock.Now().Sub(c.snap.CapturedAt), true
}
