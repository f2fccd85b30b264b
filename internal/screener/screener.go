// Package screener 选股漏斗：全场初筛、并发精筛（新闻情绪 + 均线偏离）、尾盘扫描与板块扫描。
// 所有外部依赖均以接口注入，单只股票的失败只影响该股票，不向调用方返回错误。
package screener

import (
	"context"
	"sort"
	"time"

	"stockRadar/internal/model"
)

// SnapshotSource 全市场快照来源，*cache.SnapshotCache 实现该接口。
type SnapshotSource interface {
	Get(ctx context.Context, force bool) model.Snapshot
}

// PriceProvider 日 K 线，按日期升序；可能返回空。
type PriceProvider interface {
	PriceHistory(ctx context.Context, code string, start, end time.Time) ([]model.KLine, error)
}

// NewsProvider 最近 days 天的个股新闻；可能返回空。
type NewsProvider interface {
	RecentNews(ctx context.Context, code string, days int) ([]model.NewsItem, error)
}

// InflowProvider 大单净流入，不可用时返回 0。
type InflowProvider interface {
	NetInflow(ctx context.Context, code string) (float64, error)
}

// BoardProvider 板块成分股行情。
type BoardProvider interface {
	BoardQuotes(ctx context.Context, board string) ([]model.StockQuote, error)
}

// Scorer 情绪打分，*sentiment.Scorer 实现该接口。
type Scorer interface {
	Score(ctx context.Context, title, body string) model.SentimentResult
}

// latestNews 返回日期最新的一条新闻。
func latestNews(items []model.NewsItem) (model.NewsItem, bool) {
	if len(items) == 0 {
		return model.NewsItem{}, false
	}
	best := items[0]
	for _, it := range items[1:] {
		if it.Date.After(best.Date) {
			best = it
		}
	}
	return best, true
}

// sortNewsDesc 按日期降序，原切片不变。
func sortNewsDesc(items []model.NewsItem) []model.NewsItem {
	out := append([]model.NewsItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// headline 标题超过 n 个字时截断并加省略号。
func headline(title string, n int) string {
	if n <= 0 || len([]rune(title)) <= n {
		return title
	}
	return truncateRunes(title, n) + "..."
}
