package radar

import (
	"time"

	"stockRadar/internal/cache"
)

// ModeSelector 按当地时间与切换时刻选择扫描模式。
type ModeSelector struct {
	Hour     int
	Minute   int
	Location *time.Location
	Clock    cache.Clock
}

// DefaultModeSelector 北京时间 14:30 切换为尾盘扫描。
func DefaultModeSelector() ModeSelector {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	return ModeSelector{Hour: 14, Minute: 30, Location: loc}
}

// Select 当地时间 >= 切换时刻返回 ModeTail，否则 ModeStandard。
func (s ModeSelector) Select() Mode {
	clock := s.Clock
	if clock == nil {
		clock = cache.SystemClock
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	now := clock.Now().In(loc)
	if now.Hour()*60+now.Minute() >= s.Hour*60+s.Minute {
		return ModeTail
	}
	return ModeStandard
}
