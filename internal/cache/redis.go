package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"stockRadar/internal/model"
)

const (
	redisKeyPrefix = "stockradar:sentiment:"
	redisOpTimeout = 500 * time.Millisecond
)

// RedisTier 以 JSON 存储情绪结果，供多进程共享。
type RedisTier struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTier(client *redis.Client, ttl time.Duration) *RedisTier {
	return &RedisTier{client: client, ttl: ttl}
}

// DialRedisTier 按地址创建客户端并 PING 一次，失败返回错误由调用方决定是否降级为纯内存缓存。
func DialRedisTier(ctx context.Context, addr string, ttl time.Duration) (*RedisTier, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisTier(client, ttl), nil
}

func (t *RedisTier) Get(ctx context.Context, key string) (model.SentimentResult, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	b, err := t.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.SentimentResult{}, false, nil
	}
	if err != nil {
		return model.SentimentResult{}, false, err
	}
	var r model.SentimentResult
	if err := json.Unmarshal(b, &r); err != nil {
		return model.SentimentResult{}, false, err
	}
	return r, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, r model.SentimentResult) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return t.client.Set(ctx, redisKeyPrefix+key, b, t.ttl).Err()
}

func (t *RedisTier) Close() error { return t.client.Close() }
