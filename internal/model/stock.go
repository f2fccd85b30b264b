// Package model 定义行情快照、K 线、新闻、情绪结果与选股输出等数据结构。
package model

import "time"

// StockQuote 列表接口单条（全市场快照中的一行）：代码、名称、现价、涨跌幅、换手、成交量额、资金流等。
type StockQuote struct {
	Code                string
	Name                string
	Price               float64
	ChangePct           float64
	TurnoverRate        float64
	Volume              int64
	Amount              float64
	VolumeRatio         float64
	MarketCap           float64 // 总市值(元)
	PE                  float64 // 市盈率，无效或负为 0
	NetInflow           float64 // 主力净流入(元)
	LargeOrderNetInflow float64 // 大单净流入(元)
	Incomplete          bool    // 现价/涨跌幅/换手率任一缺失（停牌、新股等接口返回 "-"）
}

// Snapshot 全市场快照：整体替换，不做增量合并。
type Snapshot struct {
	Rows       []StockQuote
	CapturedAt time.Time
	Stale      bool // 刷新失败时复用的旧快照
}

// Empty 快照是否无数据。
func (s Snapshot) Empty() bool { return len(s.Rows) == 0 }

// Clone 返回行切片的副本，调用方可随意修改。
func (s Snapshot) Clone() Snapshot {
	rows := make([]StockQuote, len(s.Rows))
	copy(rows, s.Rows)
	return Snapshot{Rows: rows, CapturedAt: s.CapturedAt, Stale: s.Stale}
}

// KLine 单日 K：日期(2006-01-02)、开高低收、成交量额，按日期升序。
type KLine struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	Amount float64
}

// NewsItem 个股新闻/帖子：日期、标题、正文，Weight 可选（阅读数等）。
type NewsItem struct {
	Date   time.Time
	Title  string
	Body   string
	Weight float64
}

// Candidate 初筛入选股，由快照中的一行生成，之后不再修改。
type Candidate struct {
	Code         string
	Name         string
	Price        float64
	ChangePct    float64
	TurnoverRate float64
	Volume       int64
	Amount       float64
}

// CandidateFromQuote 由快照行生成候选股。
func CandidateFromQuote(q StockQuote) Candidate {
	return Candidate{
		Code:         q.Code,
		Name:         q.Name,
		Price:        q.Price,
		ChangePct:    q.ChangePct,
		TurnoverRate: q.TurnoverRate,
		Volume:       q.Volume,
		Amount:       q.Amount,
	}
}
