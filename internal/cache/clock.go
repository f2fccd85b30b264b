// Package cache 提供全市场快照缓存（单槽 + TTL）与情绪结果缓存（容量上限 + 批量淘汰，可挂 Redis 二级缓存）。
package cache

import "time"

// Clock 可注入时钟，测试中用假时钟控制 TTL。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 真实时钟。
var SystemClock Clock = systemClock{}
