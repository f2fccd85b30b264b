package model

// AnalysisRecord 精筛输出：只有情绪分析成功的股票才会生成。
type AnalysisRecord struct {
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Price             float64         `json:"price"`
	MA20              float64         `json:"ma20"`
	PriceDeviationPct float64         `json:"price_deviation_pct"` // (现价-MA20)/MA20*100
	Sentiment         SentimentResult `json:"sentiment"`
	LatestHeadline    string          `json:"latest_headline"`
}

// TailRecord 尾盘扫描输出。
type TailRecord struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Price          float64         `json:"price"`
	ChangePct      float64         `json:"change_pct"`
	Sentiment      SentimentResult `json:"sentiment"`
	SentimentTrend float64         `json:"sentiment_trend"`
	NetInflow      float64         `json:"net_inflow"`
	LatestHeadline string          `json:"latest_headline"`
}

// ProgressEvent 进度事件，仅用于回调，不保留。
type ProgressEvent struct {
	Fraction  float64
	Completed int
	Total     int
	Label     string
}
