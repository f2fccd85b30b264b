package cache

import (
	"context"
	"sync"

	"stockRadar/internal/model"
	"stockRadar/internal/trace"
)

// 超过上限时一次淘汰的比例，避免逐条删除造成抖动
const evictFraction = 0.1

// Tier 二级缓存（如 Redis）。实现自行处理超时，错误只记录不向上传播。
type Tier interface {
	Get(ctx context.Context, key string) (model.SentimentResult, bool, error)
	Set(ctx context.Context, key string, r model.SentimentResult) error
}

// Stats 缓存统计。
type Stats struct {
	Size    int
	Hits    int64
	Misses  int64
	HitRate float64
}

// ResultCache 按内容哈希缓存情绪结果，按插入顺序批量淘汰最早的约 10%。
// 同一 key 的并发写入结果相同，后写覆盖无害。
type ResultCache struct {
	maxSize int
	tier    Tier

	mu      sync.RWMutex
	entries map[string]model.SentimentResult
	order   []string
	hits    int64
	misses  int64
}

// NewResultCache 创建容量为 maxSize 的结果缓存，tier 可为 nil。
func NewResultCache(maxSize int, tier Tier) *ResultCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &ResultCache{
		maxSize: maxSize,
		tier:    tier,
		entries: make(map[string]model.SentimentResult),
	}
}

// Get 先查内存，未命中再查二级缓存；二级命中会回填内存。
func (c *ResultCache) Get(ctx context.Context, key string) (model.SentimentResult, bool) {
	c.mu.Lock()
	r, ok := c.entries[key]
	if ok {
		c.hits++
		c.mu.Unlock()
		return r, true
	}
	c.mu.Unlock()

	if c.tier != nil {
		r, ok, err := c.tier.Get(ctx, key)
		if err != nil {
			trace.Warn(ctx, "cache: 二级缓存读取失败 key=%s err=%v", key, err)
		}
		if ok {
			c.mu.Lock()
			c.hits++
			c.putLocked(key, r)
			c.mu.Unlock()
			return r, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return model.SentimentResult{}, false
}

// Put 写入内存并透写二级缓存。
func (c *ResultCache) Put(ctx context.Context, key string, r model.SentimentResult) {
	c.mu.Lock()
	c.putLocked(key, r)
	c.mu.Unlock()
	if c.tier != nil {
		if err := c.tier.Set(ctx, key, r); err != nil {
			trace.Warn(ctx, "cache: 二级缓存写入失败 key=%s err=%v", key, err)
		}
	}
}

func (c *ResultCache) putLocked(key string, r model.SentimentResult) {
	if _, exists := c.entries[key]; exists {
		c.entries[key] = r
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[key] = r
	c.order = append(c.order, key)
}

// evictLocked 删除最早插入的 max(1, maxSize*10%) 条。
func (c *ResultCache) evictLocked() {
	n := int(float64(c.maxSize) * evictFraction)
	if n < 1 {
		n = 1
	}
	if n > len(c.order) {
		n = len(c.order)
	}
	for _, k := range c.order[:n] {
		delete(c.entries, k)
	}
	rest := make([]string, len(c.order)-n, c.maxSize)
	copy(rest, c.order[n:])
	c.order = rest
}

func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{Size: len(c.entries), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Clear 清空内存缓存与统计，不影响二级缓存。
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]model.SentimentResult)
	c.order = nil
	c.hits = 0
	c.misses = 0
}
