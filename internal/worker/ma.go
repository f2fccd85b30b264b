package worker

import "stockRadar/internal/model"

const maWindow = 20

func MA20(klines []model.KLine) float64 { return maN(klines, maWindow) }

func maN(klines []model.KLine, n int) float64 {
	if len(klines) < n {
		return 0
	}
	last := klines[len(klines)-n:]
	var sum float64
	for i := range last {
		sum += last[i].Close
	}
	return sum / float64(n)
}

// MA20OrLatest 不足 20 根 K 线时以最新收盘价近似；没有 K 线返回 false。
func MA20OrLatest(klines []model.KLine) (float64, bool) {
	if len(klines) == 0 {
		return 0, false
	}
	if len(klines) < maWindow {
		return klines[len(klines)-1].Close, true
	}
	return MA20(klines), true
}

// DeviationPct 价格相对均线的偏离百分比，ma 为 0 时返回 0。
func DeviationPct(price, ma float64) float64 {
	if ma == 0 {
		return 0
	}
	return (price - ma) / ma * 100
}
