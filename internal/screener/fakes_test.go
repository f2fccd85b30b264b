package screener

import (
	"context"
	"errors"
	"sync"
	"time"

	"stockRadar/internal/model"
)

var errUpstream = errors.New("upstream unavailable")

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 13, 14, 0, 0, 0, time.UTC)

type fakeSnapshots struct{ rows []model.StockQuote }

func (f fakeSnapshots) Get(context.Context, bool) model.Snapshot {
	rows := make([]model.StockQuote, len(f.rows))
	copy(rows, f.rows)
	return model.Snapshot{Rows: rows, CapturedAt: testNow}
}

// sleepCtx 模拟慢接口，ctx 结束时提前返回。
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakePrices struct {
	mu     sync.Mutex
	series map[string][]model.KLine
	errs   map[string]error
	delay  map[string]time.Duration
	calls  int
}

func (f *fakePrices) PriceHistory(ctx context.Context, code string, _, _ time.Time) ([]model.KLine, error) {
	f.mu.Lock()
	f.calls++
	d := f.delay[code]
	f.mu.Unlock()
	if err := sleepCtx(ctx, d); err != nil {
		return nil, err
	}
	if err := f.errs[code]; err != nil {
		return nil, err
	}
	return f.series[code], nil
}

type fakeNews struct {
	items map[string][]model.NewsItem
	errs  map[string]error
	delay map[string]time.Duration
	// ignoreCtx 为 true 时即使 ctx 结束也睡满 delay
	ignoreCtx bool
}

func (f *fakeNews) RecentNews(ctx context.Context, code string, _ int) ([]model.NewsItem, error) {
	if f.ignoreCtx {
		time.Sleep(f.delay[code])
	} else if err := sleepCtx(ctx, f.delay[code]); err != nil {
		return nil, err
	}
	if err := f.errs[code]; err != nil {
		return nil, err
	}
	return f.items[code], nil
}

type fakeInflow struct {
	values map[string]float64
	calls  int
	mu     sync.Mutex
}

func (f *fakeInflow) NetInflow(_ context.Context, code string) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.values[code], nil
}

// titleScorer 以标题查表打分，未命中为 0。
type titleScorer map[string]float64

func (s titleScorer) Score(_ context.Context, title, _ string) model.SentimentResult {
	return model.SentimentResult{Score: s[title], Category: model.CategoryNewsDriven, Rationale: "test"}
}

func flat(price float64, n int) []model.KLine {
	out := make([]model.KLine, n)
	for i := range out {
		out[i] = model.KLine{Date: testNow.AddDate(0, 0, i-n+1).Format("2006-01-02"), Close: price}
	}
	return out
}

func news(title string, at time.Time) model.NewsItem {
	return model.NewsItem{Date: at, Title: title}
}
