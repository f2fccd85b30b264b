package radar

import (
	"context"
	"time"

	"stockRadar/internal/cache"
	"stockRadar/internal/trace"
)

// 调度时间（周一至周五）：9:15 起每半小时一次，最后一次 15:00
const (
	scheduleMarketOpen   = 9
	scheduleMarketClose  = 15
	scheduleFirstMinute  = 15
	scheduleSlotInterval = 30
)

// NextRunTime 返回 from 之后的下一个调度时刻（loc 时区）。
func NextRunTime(from time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	now := from.In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	minutesSinceMidnight := now.Hour()*60 + now.Minute()

	if isWeekday(now) {
		for _, slotMin := range scheduleSlots() {
			if minutesSinceMidnight < slotMin {
				return dayStart.Add(time.Duration(slotMin) * time.Minute)
			}
		}
	}
	return nextWeekdayAt(now, loc, scheduleMarketOpen, scheduleFirstMinute)
}

func scheduleSlots() []int {
	var slots []int
	for h := scheduleMarketOpen; h < scheduleMarketClose; h++ {
		slots = append(slots, h*60+scheduleFirstMinute, h*60+scheduleFirstMinute+scheduleSlotInterval)
	}
	return append(slots, scheduleMarketClose*60)
}

func isWeekday(t time.Time) bool {
	return t.Weekday() != time.Sunday && t.Weekday() != time.Saturday
}

func nextWeekdayAt(from time.Time, loc *time.Location, hour, min int) time.Time {
	next := from
	for {
		next = next.AddDate(0, 0, 1)
		if isWeekday(next) {
			break
		}
	}
	return time.Date(next.Year(), next.Month(), next.Day(), hour, min, 0, 0, loc)
}

const defaultEmptyRunsBeforeReminder = 3

// Scheduler 常驻调度：按 NextRunTime 周期执行，连续 EmptyRuns 次无入选时回调 OnIdle 并重新计数。
type Scheduler struct {
	Location   *time.Location
	Clock      cache.Clock
	RunTimeout time.Duration
	EmptyRuns  int
	OnIdle     func(ctx context.Context, emptyRuns int)
	// Sleep 可替换，测试中用于推进假时钟
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run 阻塞直到 ctx 结束。
func (s *Scheduler) Run(ctx context.Context, scan func(context.Context) Report) error {
	clock := s.Clock
	if clock == nil {
		clock = cache.SystemClock
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	threshold := s.EmptyRuns
	if threshold <= 0 {
		threshold = defaultEmptyRunsBeforeReminder
	}
	trace.Log(ctx, "radar: 调度模式启动，每半小时 9:15~15:00 周一至周五")

	var emptyRuns int
	for {
		now := clock.Now()
		next := NextRunTime(now, s.Location)
		if d := next.Sub(now); d > 0 {
			trace.Log(ctx, "radar: 下次执行 %s (约 %s 后)", next.Format(timeFormatNextRun), d.Round(time.Second))
			if err := sleep(ctx, d); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		runCtx := trace.WithTraceID(ctx, trace.NewTraceID())
		cancel := context.CancelFunc(func() {})
		if s.RunTimeout > 0 {
			runCtx, cancel = context.WithTimeout(runCtx, s.RunTimeout)
		}
		rep := scan(runCtx)
		cancel()

		if rep.Len() > 0 {
			emptyRuns = 0
			continue
		}
		emptyRuns++
		if emptyRuns >= threshold {
			trace.Log(ctx, "radar: 连续 %d 次无入选", emptyRuns)
			if s.OnIdle != nil {
				s.OnIdle(ctx, emptyRuns)
			}
			emptyRuns = 0
		}
	}
}

const timeFormatNextRun = "2006-01-02 15:04"

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
