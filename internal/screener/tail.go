package screener

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockRadar/internal/cache"
	"stockRadar/internal/filter"
	"stockRadar/internal/metrics"
	"stockRadar/internal/model"
	"stockRadar/internal/trace"
	"stockRadar/internal/worker"
)

const sessionDateLayout = "2006-01-02"

type TailOptions struct {
	PoolSize      int // 上涨股按涨幅取前 PoolSize 只
	TrendDays     int // 情绪趋势回看交易日数
	Workers       int
	TaskTimeout   time.Duration
	BatchTimeout  time.Duration
	NewsDays      int
	BodyLimit     int
	HeadlineLimit int
	Location      *time.Location // K 线日期所在时区
	Clock         cache.Clock
	Metrics       *metrics.Recorder
}

func DefaultTailOptions() TailOptions {
	return TailOptions{
		PoolSize:      50,
		TrendDays:     5,
		Workers:       10,
		TaskTimeout:   10 * time.Second,
		BatchTimeout:  30 * time.Second,
		NewsDays:      7,
		BodyLimit:     200,
		HeadlineLimit: 50,
	}
}

// Tail 尾盘扫描：情绪分持续走高且大单净流入的强势股。
type Tail struct {
	snapshots SnapshotSource
	prices    PriceProvider
	news      NewsProvider
	inflow    InflowProvider
	scorer    Scorer
	opts      TailOptions
}

func NewTail(snapshots SnapshotSource, prices PriceProvider, news NewsProvider, inflow InflowProvider, scorer Scorer, opts TailOptions) *Tail {
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Tail{snapshots: snapshots, prices: prices, news: news, inflow: inflow, scorer: scorer, opts: opts}
}

// Scan 按情绪分、再按净流入降序返回前 topN 只。
func (t *Tail) Scan(ctx context.Context, topN int) []model.TailRecord {
	if topN <= 0 {
		return nil
	}
	snap := t.snapshots.Get(ctx, false)
	if snap.Empty() {
		trace.Warn(ctx, "screener: 快照为空，尾盘扫描跳过")
		return nil
	}
	pool := t.pool(snap.Rows)
	if len(pool) == 0 {
		trace.Warn(ctx, "screener: 未找到上涨股票")
		return nil
	}

	tasks := make([]worker.Task[model.TailRecord], len(pool))
	for i, q := range pool {
		q := q
		tasks[i] = worker.Task[model.TailRecord]{
			Name: q.Code,
			Run:  func(ctx context.Context) (model.TailRecord, error) { return t.analyze(ctx, q) },
		}
	}

	var (
		batchCtx context.Context
		cancel   context.CancelFunc
	)
	if t.opts.BatchTimeout > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, t.opts.BatchTimeout)
	} else {
		batchCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	outcomes := worker.Run(ctx, batchCtx.Done(), worker.Config{Concurrency: t.opts.Workers, TaskTimeout: t.opts.TaskTimeout}, tasks)

	var records []model.TailRecord
	handle := func(o worker.Outcome[model.TailRecord]) {
		t.opts.Metrics.TaskOutcome("tail", o.Status.String())
		switch o.Status {
		case worker.StatusOK:
			records = append(records, o.Value)
		case worker.StatusEmpty:
		default:
			trace.Debug(ctx, "screener: 尾盘分析 code=%s status=%s err=%v", o.Name, o.Status, o.Err)
		}
	}
collect:
	for {
		select {
		case o, ok := <-outcomes:
			if !ok {
				break collect
			}
			handle(o)
		case <-batchCtx.Done():
			worker.Drain(outcomes, handle)
			trace.Warn(ctx, "screener: 尾盘扫描批次超时，返回已完成的 %d 只", len(records))
			break collect
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Sentiment.Score != records[j].Sentiment.Score {
			return records[i].Sentiment.Score > records[j].Sentiment.Score
		}
		return records[i].NetInflow > records[j].NetInflow
	})
	if len(records) > topN {
		records = records[:topN]
	}
	trace.Log(ctx, "screener: 尾盘扫描完成，找到 %d 只强势尾盘股", len(records))
	return records
}

func (t *Tail) pool(rows []model.StockQuote) []model.StockQuote {
	var kept []model.StockQuote
	for i := range rows {
		if filter.And(filter.Complete, filter.Rising)(&rows[i]) {
			kept = append(kept, rows[i])
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].ChangePct > kept[j].ChangePct })
	if t.opts.PoolSize > 0 && len(kept) > t.opts.PoolSize {
		kept = kept[:t.opts.PoolSize]
	}
	return kept
}

// analyze 条件不满足时返回 worker.ErrNoResult。
func (t *Tail) analyze(ctx context.Context, q model.StockQuote) (model.TailRecord, error) {
	items, err := t.news.RecentNews(ctx, q.Code, t.opts.NewsDays+t.opts.TrendDays)
	if err != nil {
		return model.TailRecord{}, err
	}
	if len(items) == 0 {
		return model.TailRecord{}, worker.ErrNoResult
	}
	items = sortNewsDesc(items)

	trend, err := t.trend(ctx, q.Code, items)
	if err != nil {
		return model.TailRecord{}, err
	}
	if trend <= 0 {
		return model.TailRecord{}, worker.ErrNoResult
	}

	inflow := t.netInflow(ctx, q)
	if inflow <= 0 {
		return model.TailRecord{}, worker.ErrNoResult
	}

	latest := items[0]
	sent := t.scorer.Score(ctx, latest.Title, truncateRunes(latest.Body, t.opts.BodyLimit))
	if err := ctx.Err(); err != nil {
		return model.TailRecord{}, err
	}
	return model.TailRecord{
		Code:           q.Code,
		Name:           q.Name,
		Price:          q.Price,
		ChangePct:      q.ChangePct,
		Sentiment:      sent,
		SentimentTrend: trend,
		NetInflow:      inflow,
		LatestHeadline: headline(latest.Title, t.opts.HeadlineLimit),
	}, nil
}

// trend 最近 TrendDays 个交易日，每日取当日收盘前最新的一条新闻打分，返回最新分减最早分。
// 有效分数不足 2 个时为 0。items 须按日期降序。
func (t *Tail) trend(ctx context.Context, code string, items []model.NewsItem) (float64, error) {
	now := t.opts.Clock.Now()
	// 多取一周覆盖节假日
	start := now.AddDate(0, 0, -(t.opts.TrendDays + 7))
	klines, err := t.prices.PriceHistory(ctx, code, start, now)
	if err != nil {
		return 0, fmt.Errorf("trend history: %w", err)
	}
	if len(klines) > t.opts.TrendDays {
		klines = klines[len(klines)-t.opts.TrendDays:]
	}

	var scores []float64
	for _, k := range klines {
		day, err := time.ParseInLocation(sessionDateLayout, k.Date, t.opts.Location)
		if err != nil {
			continue
		}
		cutoff := day.AddDate(0, 0, 1)
		for _, it := range items {
			if it.Date.Before(cutoff) {
				r := t.scorer.Score(ctx, it.Title, truncateRunes(it.Body, t.opts.BodyLimit))
				scores = append(scores, r.Score)
				break
			}
		}
	}
	if len(scores) < 2 {
		return 0, nil
	}
	return scores[len(scores)-1] - scores[0], nil
}

// netInflow 优先取快照中的大单净流入，其次主力净流入，最后单独查询。
func (t *Tail) netInflow(ctx context.Context, q model.StockQuote) float64 {
	if q.LargeOrderNetInflow != 0 {
		return q.LargeOrderNetInflow
	}
	if q.NetInflow != 0 {
		return q.NetInflow
	}
	if t.inflow == nil {
		return 0
	}
	v, err := t.inflow.NetInflow(ctx, q.Code)
	if err != nil {
		trace.Debug(ctx, "screener: 净流入查询失败 code=%s err=%v", q.Code, err)
		return 0
	}
	return v
}
