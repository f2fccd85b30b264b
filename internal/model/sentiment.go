package model

// Category 影响逻辑分类。
type Category string

const (
	CategoryFundamental Category = "fundamental"
	CategoryCapitalFlow Category = "capital-flow"
	CategoryNewsDriven  Category = "news-driven"
)

// Label 中文名称，与模型返回及邮件展示一致。
func (c Category) Label() string {
	switch c {
	case CategoryFundamental:
		return "基本面"
	case CategoryCapitalFlow:
		return "资金面"
	default:
		return "消息面"
	}
}

// ParseCategory 识别中文或英文分类名，未知返回 false。
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "基本面", string(CategoryFundamental):
		return CategoryFundamental, true
	case "资金面", string(CategoryCapitalFlow):
		return CategoryCapitalFlow, true
	case "消息面", string(CategoryNewsDriven):
		return CategoryNewsDriven, true
	}
	return "", false
}

// SentimentResult 情绪分析结果，Score 恒在 [-1, 1]。
type SentimentResult struct {
	Score     float64  `json:"score"`
	Category  Category `json:"category"`
	Rationale string   `json:"rationale"`
}

// ClampScore 将得分限制在 [-1, 1]。
func ClampScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
