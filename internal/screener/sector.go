package screener

import (
	"context"
	"time"

	"stockRadar/internal/filter"
	"stockRadar/internal/model"
	"stockRadar/internal/progress"
	"stockRadar/internal/trace"
)

// Sector 板块情绪扫描：对板块全部成分股做精筛，保留情绪分不低于阈值的股票。
type Sector struct {
	boards  BoardProvider
	refined *Refined
}

func NewSector(boards BoardProvider, refined *Refined) *Sector {
	return &Sector{boards: boards, refined: refined}
}

func (s *Sector) Scan(ctx context.Context, board string, threshold float64, batchTimeout time.Duration, reporter progress.Reporter) []model.AnalysisRecord {
	quotes, err := s.boards.BoardQuotes(ctx, board)
	if err != nil {
		trace.Warn(ctx, "screener: 获取板块 %s 成分股失败: %v", board, err)
		return nil
	}
	valid := filter.And(filter.Complete, filter.PricePositive)
	var candidates []model.Candidate
	for i := range quotes {
		if valid(&quotes[i]) {
			candidates = append(candidates, model.CandidateFromQuote(quotes[i]))
		}
	}
	trace.Log(ctx, "screener: 板块 %s 成分股 %d 只，有效 %d 只", board, len(quotes), len(candidates))

	records := s.refined.Enrich(ctx, candidates, batchTimeout, reporter)
	kept := records[:0]
	for _, r := range records {
		if r.Sentiment.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}
