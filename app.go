package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"stockRadar/internal/api"
	"stockRadar/internal/cache"
	"stockRadar/internal/config"
	"stockRadar/internal/metrics"
	"stockRadar/internal/radar"
	"stockRadar/internal/screener"
	"stockRadar/internal/sentiment"
	"stockRadar/internal/trace"
)

const metricsShutdownTimeout = 3 * time.Second

// app 由配置装配的全部组件，进程内只构造一次。
type app struct {
	cfg       *config.Config
	client    *api.Client
	snapshots *cache.SnapshotCache
	scorer    *sentiment.Scorer
	radar     *radar.Radar
	metrics   *metrics.Recorder

	redis         *cache.RedisTier
	metricsServer *http.Server
}

func newApp(ctx context.Context, cfg *config.Config) *app {
	rec := metrics.New()
	client := api.NewClient(api.Options{
		RequestGap:    time.Duration(cfg.API.DelayMS) * time.Millisecond,
		MaxConcurrent: cfg.API.MaxConcurrent,
		Clock:         cache.SystemClock,
	})
	snapshots := cache.NewSnapshotCache(client, cfg.Snapshot.TTL, cache.SystemClock)

	a := &app{cfg: cfg, client: client, snapshots: snapshots, metrics: rec}

	var tier cache.Tier
	if addr := cfg.Sentiment.RedisAddr; addr != "" {
		rt, err := cache.DialRedisTier(ctx, addr, cfg.Sentiment.RedisTTL)
		if err != nil {
			trace.Warn(ctx, "main: Redis %s 不可用，仅使用内存缓存: %v", addr, err)
		} else {
			trace.Log(ctx, "main: 情绪结果二级缓存 Redis %s", addr)
			a.redis = rt
			tier = rt
		}
	}

	var reasoner sentiment.Reasoner
	if rc := cfg.Sentiment.Reasoner; rc.Enabled() {
		reasoner = sentiment.NewDeepSeek(sentiment.DeepSeekConfig{
			APIKey:  rc.APIKey,
			URL:     rc.BaseURL,
			Model:   rc.Model,
			Timeout: rc.Timeout,
		})
	} else {
		trace.Log(ctx, "main: 未配置 DEEPSEEK_API_KEY，使用关键词打分")
	}
	a.scorer = sentiment.NewScorer(sentiment.Options{
		Reasoner:      reasoner,
		Cache:         cache.NewResultCache(cfg.Sentiment.CacheMaxSize, tier),
		ReasonTimeout: cfg.Sentiment.Reasoner.Timeout,
		Metrics:       rec,
	})

	initial := screener.NewInitial(snapshots, client, screener.InitialOptions{
		ChangePctMin: cfg.Screen.ChangePctMin,
		ChangePctMax: cfg.Screen.ChangePctMax,
		TurnoverMin:  cfg.Screen.TurnoverMin,
		PoolSize:     cfg.Screen.PoolSize,
		Workers:      cfg.Screen.MAWorkers,
		MATolerance:  cfg.Screen.MATolerance,
		HistoryDays:  cfg.Screen.HistoryDays,
		Metrics:      rec,
	})
	refined := screener.NewRefined(client, client, a.scorer, screener.RefinedOptions{
		Workers:       cfg.Enrich.Workers,
		TaskTimeout:   cfg.Enrich.TaskTimeout,
		NewsDays:      cfg.Enrich.NewsDays,
		BodyLimit:     cfg.Enrich.BodyLimit,
		HeadlineLimit: cfg.Enrich.HeadlineLimit,
		HistoryDays:   cfg.Screen.HistoryDays,
		Metrics:       rec,
	})
	tail := screener.NewTail(snapshots, client, client, client, a.scorer, screener.TailOptions{
		PoolSize:      cfg.Tail.PoolSize,
		TrendDays:     cfg.Tail.TrendDays,
		Workers:       cfg.Tail.Workers,
		TaskTimeout:   cfg.Tail.TaskTimeout,
		BatchTimeout:  cfg.Tail.BatchTimeout,
		NewsDays:      cfg.Enrich.NewsDays,
		BodyLimit:     cfg.Enrich.BodyLimit,
		HeadlineLimit: cfg.Enrich.HeadlineLimit,
		Location:      cfg.Tail.Location(),
		Metrics:       rec,
	})

	hour, minute, _ := config.ParseClock(cfg.Tail.SwitchAt)
	a.radar = radar.New(radar.Deps{
		Initial:            initial,
		Refined:            refined,
		Tail:               tail,
		Sector:             screener.NewSector(client, refined),
		Selector:           radar.ModeSelector{Hour: hour, Minute: minute, Location: cfg.Tail.Location()},
		Metrics:            rec,
		TopN:               cfg.Screen.TopN,
		BatchTimeout:       cfg.Enrich.BatchTimeout,
		TailTopN:           cfg.Tail.TopN,
		SectorBatchTimeout: cfg.Sector.BatchTimeout,
	})
	return a
}

// serveMetrics 配置了地址时在后台暴露 /metrics。
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.metricsServer = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		trace.Log(ctx, "main: metrics 监听 %s", a.cfg.Metrics.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			trace.Error(ctx, "main: metrics server err=%v", err)
		}
	}()
}

// observeSnapshot 记录快照缓存年龄。
func (a *app) observeSnapshot() {
	if age, ok := a.snapshots.Age(); ok {
		a.metrics.SnapshotAge(age.Seconds())
	}
}

func (a *app) Close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		_ = a.metricsServer.Shutdown(ctx)
		cancel()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
