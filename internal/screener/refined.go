package screener

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockRadar/internal/cache"
	"stockRadar/internal/metrics"
	"stockRadar/internal/model"
	"stockRadar/internal/progress"
	"stockRadar/internal/trace"
	"stockRadar/internal/worker"
)

type RefinedOptions struct {
	Workers       int
	TaskTimeout   time.Duration
	NewsDays      int
	BodyLimit     int // 正文截取字数
	HeadlineLimit int // 标题展示字数
	HistoryDays   int
	Clock         cache.Clock
	Metrics       *metrics.Recorder
}

func DefaultRefinedOptions() RefinedOptions {
	return RefinedOptions{
		Workers:       10,
		TaskTimeout:   3 * time.Second,
		NewsDays:      7,
		BodyLimit:     200,
		HeadlineLimit: 50,
		HistoryDays:   30,
	}
}

// Refined 并发精筛：每只候选股取最新新闻打分，并计算 MA20 偏离。
type Refined struct {
	news   NewsProvider
	prices PriceProvider
	scorer Scorer
	opts   RefinedOptions
}

func NewRefined(news NewsProvider, prices PriceProvider, scorer Scorer, opts RefinedOptions) *Refined {
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock
	}
	return &Refined{news: news, prices: prices, scorer: scorer, opts: opts}
}

// Enrich 在 batchTimeout 内尽量完成所有候选股的分析，超时则返回已完成部分；batchTimeout 为 0 表示不限时。
// 单只超时、失败或无新闻的股票被丢弃，不重试。结果按情绪分降序（稳定排序）。
// reporter 在当前协程中同步回调：开始时一次，之后每完成一只一次。
func (r *Refined) Enrich(ctx context.Context, candidates []model.Candidate, batchTimeout time.Duration, reporter progress.Reporter) []model.AnalysisRecord {
	total := len(candidates)
	if total == 0 {
		return nil
	}
	reporter = progress.Or(reporter)
	reporter.Report(progress.Event(0, total, "准备开始分析..."))

	tasks := make([]worker.Task[model.AnalysisRecord], total)
	for i, c := range candidates {
		c := c
		tasks[i] = worker.Task[model.AnalysisRecord]{
			Name: c.Code,
			Run:  func(ctx context.Context) (model.AnalysisRecord, error) { return r.analyze(ctx, c) },
		}
	}

	var (
		batchCtx context.Context
		cancel   context.CancelFunc
	)
	if batchTimeout > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, batchTimeout)
	} else {
		batchCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	// 任务 ctx 取自 ctx 而非 batchCtx：批次超时只停止等待，不打断已在执行的任务
	outcomes := worker.Run(ctx, batchCtx.Done(), worker.Config{Concurrency: r.opts.Workers, TaskTimeout: r.opts.TaskTimeout}, tasks)

	records := make([]model.AnalysisRecord, 0, total)
	completed := 0
	handle := func(o worker.Outcome[model.AnalysisRecord]) {
		completed++
		r.opts.Metrics.TaskOutcome("enrich", o.Status.String())
		c := candidates[o.Index]
		var label string
		switch o.Status {
		case worker.StatusOK:
			records = append(records, o.Value)
			label = fmt.Sprintf("%s - %s", c.Code, c.Name)
		case worker.StatusTimeout:
			trace.Warn(ctx, "screener: 精筛超时 code=%s", c.Code)
			label = fmt.Sprintf("%s - 超时", c.Code)
		case worker.StatusEmpty:
			label = fmt.Sprintf("%s - 无新闻", c.Code)
		default:
			trace.Warn(ctx, "screener: 精筛失败 code=%s err=%v", c.Code, o.Err)
			label = fmt.Sprintf("%s - 失败", c.Code)
		}
		reporter.Report(progress.Event(completed, total, label))
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
			if completed < total {
				trace.Warn(ctx, "screener: 精筛批次超时，已完成 %d/%d，返回部分结果", completed, total)
			}
			break collect
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Sentiment.Score > records[j].Sentiment.Score
	})
	return records
}

func (r *Refined) analyze(ctx context.Context, c model.Candidate) (model.AnalysisRecord, error) {
	items, err := r.news.RecentNews(ctx, c.Code, r.opts.NewsDays)
	if err != nil {
		return model.AnalysisRecord{}, err
	}
	item, ok := latestNews(items)
	if !ok {
		return model.AnalysisRecord{}, worker.ErrNoResult
	}
	sent := r.scorer.Score(ctx, item.Title, truncateRunes(item.Body, r.opts.BodyLimit))

	ma, dev := c.Price, 0.0
	now := r.opts.Clock.Now()
	klines, err := r.prices.PriceHistory(ctx, c.Code, now.AddDate(0, 0, -r.opts.HistoryDays), now)
	if err != nil {
		trace.Debug(ctx, "screener: 历史行情不可用 code=%s err=%v", c.Code, err)
	} else if m, ok := worker.MA20OrLatest(klines); ok && m > 0 {
		ma, dev = m, worker.DeviationPct(c.Price, m)
	}
	if err := ctx.Err(); err != nil {
		return model.AnalysisRecord{}, err
	}

	return model.AnalysisRecord{
		Code:              c.Code,
		Name:              c.Name,
		Price:             c.Price,
		MA20:              ma,
		PriceDeviationPct: dev,
		Sentiment:         sent,
		LatestHeadline:    headline(item.Title, r.opts.HeadlineLimit),
	}, nil
}
