package screener

import (
	"context"
	"errors"
	"sort"

	"stockRadar/internal/cache"
	"stockRadar/internal/filter"
	"stockRadar/internal/metrics"
	"stockRadar/internal/model"
	"stockRadar/internal/trace"
	"stockRadar/internal/worker"
)

var errBelowMA = errors.New("screener: price below MA20 beyond tolerance")

type InitialOptions struct {
	ChangePctMin float64
	ChangePctMax float64
	TurnoverMin  float64
	PoolSize     int     // 按换手率取前 PoolSize 只做均线检查
	Workers      int     // 均线检查并发数
	MATolerance  float64 // 比例，0.02 即 2%
	HistoryDays  int
	Clock        cache.Clock
	Metrics      *metrics.Recorder
}

func DefaultInitialOptions() InitialOptions {
	return InitialOptions{
		ChangePctMin: 2,
		ChangePctMax: 5,
		TurnoverMin:  3,
		PoolSize:     20,
		Workers:      5,
		MATolerance:  0.02,
		HistoryDays:  30,
	}
}

// Initial 全场初筛：阈值过滤 → 换手率排序取池 → 并发均线检查。
type Initial struct {
	snapshots SnapshotSource
	prices    PriceProvider
	opts      InitialOptions
	criterion filter.Criterion
}

func NewInitial(snapshots SnapshotSource, prices PriceProvider, opts InitialOptions) *Initial {
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock
	}
	return &Initial{
		snapshots: snapshots,
		prices:    prices,
		opts:      opts,
		criterion: filter.CoarseStrategy(opts.ChangePctMin, opts.ChangePctMax, opts.TurnoverMin),
	}
}

// Screen 返回最先通过均线检查的 topN 只，顺序为通过顺序（取决于并发完成先后）。
func (s *Initial) Screen(ctx context.Context, topN int) []model.Candidate {
	if topN <= 0 {
		return nil
	}
	snap := s.snapshots.Get(ctx, false)
	if snap.Empty() {
		trace.Warn(ctx, "screener: 快照为空，初筛跳过")
		return nil
	}
	pool := s.pool(snap.Rows)
	trace.Log(ctx, "screener: 阈值过滤后进入均线检查 %d 只", len(pool))
	if len(pool) == 0 {
		return nil
	}

	now := s.opts.Clock.Now()
	start := now.AddDate(0, 0, -s.opts.HistoryDays)
	tasks := make([]worker.Task[model.Candidate], len(pool))
	for i, c := range pool {
		c := c
		tasks[i] = worker.Task[model.Candidate]{
			Name: c.Code,
			Run: func(ctx context.Context) (model.Candidate, error) {
				klines, err := s.prices.PriceHistory(ctx, c.Code, start, now)
				if err != nil {
					return c, err
				}
				ma, ok := worker.MA20OrLatest(klines)
				if !ok {
					return c, worker.ErrNoResult
				}
				if !filter.NearOrAboveMA(c.Price, ma, s.opts.MATolerance) {
					return c, errBelowMA
				}
				return c, nil
			},
		}
	}

	stop := make(chan struct{})
	defer close(stop)
	outcomes := worker.Run(ctx, stop, worker.Config{Concurrency: s.opts.Workers}, tasks)

	var accepted []model.Candidate
	for o := range outcomes {
		s.opts.Metrics.TaskOutcome("ma", o.Status.String())
		if o.Status != worker.StatusOK {
			if o.Err != nil && !errors.Is(o.Err, errBelowMA) {
				trace.Debug(ctx, "screener: 均线检查 code=%s status=%s err=%v", o.Name, o.Status, o.Err)
			}
			continue
		}
		accepted = append(accepted, o.Value)
		if len(accepted) >= topN {
			break
		}
	}
	trace.Log(ctx, "screener: 初筛完成 %d 只", len(accepted))
	return accepted
}

// pool 阈值过滤后按换手率降序取前 PoolSize 只。
func (s *Initial) pool(rows []model.StockQuote) []model.Candidate {
	var kept []model.StockQuote
	for i := range rows {
		if s.criterion(&rows[i]) {
			kept = append(kept, rows[i])
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].TurnoverRate > kept[j].TurnoverRate })
	if s.opts.PoolSize > 0 && len(kept) > s.opts.PoolSize {
		kept = kept[:s.opts.PoolSize]
	}
	out := make([]model.Candidate, len(kept))
	for i, q := range kept {
		out[i] = model.CandidateFromQuote(q)
	}
	return out
}
