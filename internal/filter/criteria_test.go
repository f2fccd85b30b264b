package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockRadar/internal/model"
)

func TestCoarseStrategy(t *testing.T) {
	c := CoarseStrategy(2, 5, 3)
	tests := []struct {
		name string
		q    model.StockQuote
		want bool
	}{
		{"pass", model.StockQuote{Price: 10, ChangePct: 3, TurnoverRate: 5}, true},
		{"lower bound inclusive", model.StockQuote{Price: 10, ChangePct: 2, TurnoverRate: 3.1}, true},
		{"upper bound inclusive", model.StockQuote{Price: 10, ChangePct: 5, TurnoverRate: 3.1}, true},
		{"turnover strict", model.StockQuote{Price: 10, ChangePct: 3, TurnoverRate: 3}, false},
		{"change too high", model.StockQuote{Price: 10, ChangePct: 5.01, TurnoverRate: 8}, false},
		{"zero price", model.StockQuote{Price: 0, ChangePct: 3, TurnoverRate: 8}, false},
		{"incomplete", model.StockQuote{Price: 10, ChangePct: 3, TurnoverRate: 8, Incomplete: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.q
			assert.Equal(t, tt.want, c(&q))
		})
	}
	assert.False(t, c(nil))
}

func TestOr(t *testing.T) {
	c := Or(nil, Rising, PricePositive)
	assert.True(t, c(&model.StockQuote{ChangePct: 1}))
	assert.True(t, c(&model.StockQuote{Price: 1, ChangePct: -1}))
	assert.False(t, c(&model.StockQuote{ChangePct: -1}))
	assert.False(t, c(nil))
}

func TestNearOrAboveMA(t *testing.T) {
	assert.True(t, NearOrAboveMA(10.1, 10, 0.02), "above within tolerance")
	assert.True(t, NearOrAboveMA(9.85, 10, 0.02), "below within tolerance")
	assert.True(t, NearOrAboveMA(12, 10, 0.02), "above beyond tolerance")
	assert.False(t, NearOrAboveMA(9.7, 10, 0.02), "below beyond tolerance")
	assert.False(t, NearOrAboveMA(10, 0, 0.02))
}
