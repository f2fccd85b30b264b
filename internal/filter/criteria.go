// Package filter 定义行情条件（Criterion）与组合方式（And/Or），CoarseStrategy 为初筛入口。
package filter

import (
	"math"

	"stockRadar/internal/model"
)

// Criterion 单条条件：入参为快照行情，返回是否通过。
type Criterion func(*model.StockQuote) bool

func And(cs ...Criterion) Criterion {
	return func(q *model.StockQuote) bool {
		if q == nil {
			return false
		}
		for _, c := range cs {
			if c == nil {
				continue
			}
			if !c(q) {
				return false
			}
		}
		return true
	}
}

func Or(cs ...Criterion) Criterion {
	return func(q *model.StockQuote) bool {
		if q == nil {
			return false
		}
		for _, c := range cs {
			if c == nil {
				continue
			}
			if c(q) {
				return true
			}
		}
		return false
	}
}

// Complete 价格、涨跌幅、换手率齐全。
func Complete(q *model.StockQuote) bool { return !q.Incomplete }

// ChangePctRange 闭区间。
func ChangePctRange(min, max float64) Criterion {
	return func(q *model.StockQuote) bool { return q.ChangePct >= min && q.ChangePct <= max }
}

// TurnoverRateAbove 严格大于。
func TurnoverRateAbove(min float64) Criterion {
	return func(q *model.StockQuote) bool { return q.TurnoverRate > min }
}

func PricePositive(q *model.StockQuote) bool { return q.Price > 0 }

// Rising 当日上涨，尾盘候选池用。
func Rising(q *model.StockQuote) bool { return q.ChangePct > 0 }

// CoarseStrategy 初筛：数据完整、涨幅 [min,max]%、换手 > turnover%、价格 > 0。
func CoarseStrategy(changeMin, changeMax, turnover float64) Criterion {
	return And(
		Complete,
		ChangePctRange(changeMin, changeMax),
		TurnoverRateAbove(turnover),
		PricePositive,
	)
}

// NearOrAboveMA 价格在均线 tolerance 比例以内，或站上均线（超出容差也通过）。
func NearOrAboveMA(price, ma, tolerance float64) bool {
	if ma <= 0 {
		return false
	}
	return math.Abs(price-ma)/ma <= tolerance || price > ma
}
