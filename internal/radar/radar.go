// Package radar 扫描编排：标准模式（初筛 → 精筛）、尾盘模式、板块模式，以及按时间自动选择模式。
// 编排本身单协程运行，阻塞等待各阶段完成或批次超时；任何阶段失败都只会得到空结果和状态说明。
package radar

import (
	"context"
	"fmt"
	"time"

	"stockRadar/internal/cache"
	"stockRadar/internal/metrics"
	"stockRadar/internal/model"
	"stockRadar/internal/progress"
	"stockRadar/internal/trace"
)

type Mode string

const (
	ModeStandard Mode = "standard"
	ModeTail     Mode = "tail"
	ModeSector   Mode = "sector"
)

// Label 中文名称，用于邮件标题与终端输出。
func (m Mode) Label() string {
	switch m {
	case ModeTail:
		return "尾盘扫描"
	case ModeSector:
		return "板块扫描"
	default:
		return "全市场雷达"
	}
}

// 状态说明
const (
	statusStandardDone  = "扫描完成！"
	statusCoarseEmpty   = "初筛未找到符合条件的股票"
	statusTailDone      = "尾盘扫描完成"
	statusTailEmpty     = "未找到符合条件的强势尾盘股"
	statusSectorDone    = "板块扫描完成"
	statusSectorEmptyFn = "板块 %s 未找到符合条件的股票"
)

type CoarseScreener interface {
	Screen(ctx context.Context, topN int) []model.Candidate
}

type Enricher interface {
	Enrich(ctx context.Context, candidates []model.Candidate, batchTimeout time.Duration, reporter progress.Reporter) []model.AnalysisRecord
}

type TailScanner interface {
	Scan(ctx context.Context, topN int) []model.TailRecord
}

type SectorScanner interface {
	Scan(ctx context.Context, board string, threshold float64, batchTimeout time.Duration, reporter progress.Reporter) []model.AnalysisRecord
}

// Deps 各阶段实现与默认参数；Sector 可为 nil（不支持板块模式）。
type Deps struct {
	Initial  CoarseScreener
	Refined  Enricher
	Tail     TailScanner
	Sector   SectorScanner
	Selector ModeSelector
	Metrics  *metrics.Recorder
	Clock    cache.Clock

	TopN               int
	BatchTimeout       time.Duration
	TailTopN           int
	SectorBatchTimeout time.Duration
}

// Report 一次扫描的结果。标准与板块模式填 Records，尾盘模式填 Tail。
type Report struct {
	Mode    Mode                   `json:"mode"`
	Records []model.AnalysisRecord `json:"records,omitempty"`
	Tail    []model.TailRecord     `json:"tail,omitempty"`
	Status  string                 `json:"status"`
	Elapsed time.Duration          `json:"elapsed_ns"`
}

// Len 入选数量。
func (r Report) Len() int {
	if r.Mode == ModeTail {
		return len(r.Tail)
	}
	return len(r.Records)
}

type Radar struct {
	deps Deps
}

func New(deps Deps) *Radar {
	if deps.Clock == nil {
		deps.Clock = cache.SystemClock
	}
	if deps.Selector.Location == nil && deps.Selector.Hour == 0 && deps.Selector.Minute == 0 {
		deps.Selector = DefaultModeSelector()
	}
	if deps.Selector.Clock == nil {
		deps.Selector.Clock = deps.Clock
	}
	if deps.TopN <= 0 {
		deps.TopN = 20
	}
	if deps.BatchTimeout <= 0 {
		deps.BatchTimeout = 15 * time.Second
	}
	if deps.TailTopN <= 0 {
		deps.TailTopN = 10
	}
	if deps.SectorBatchTimeout <= 0 {
		deps.SectorBatchTimeout = 30 * time.Second
	}
	return &Radar{deps: deps}
}

// StandardOptions 为零值时使用 Deps 中的默认参数。
type StandardOptions struct {
	TopN         int
	BatchTimeout time.Duration
	Reporter     progress.Reporter
}

// Standard 全市场雷达：初筛 → 精筛。
func (r *Radar) Standard(ctx context.Context, opts StandardOptions) Report {
	start := r.deps.Clock.Now()
	topN, batch := opts.TopN, opts.BatchTimeout
	if topN <= 0 {
		topN = r.deps.TopN
	}
	if batch <= 0 {
		batch = r.deps.BatchTimeout
	}
	rep := progress.Or(opts.Reporter)
	trace.Log(ctx, "radar: 启动全市场实时雷达 topN=%d batch=%s", topN, batch)

	rep.Report(model.ProgressEvent{Fraction: 0, Completed: 0, Total: 100, Label: "正在初筛全场..."})
	candidates := r.deps.Initial.Screen(ctx, topN)
	if len(candidates) == 0 {
		trace.Warn(ctx, "radar: 初筛未找到活跃股")
		rep.Report(model.ProgressEvent{Fraction: 1, Completed: 100, Total: 100, Label: statusCoarseEmpty})
		return r.finish(ctx, Report{Mode: ModeStandard, Status: statusCoarseEmpty}, start)
	}
	rep.Report(model.ProgressEvent{Fraction: 0.2, Completed: 0, Total: 100, Label: fmt.Sprintf("初筛完成，找到 %d 只活跃股", len(candidates))})

	records := r.deps.Refined.Enrich(ctx, candidates, batch, rep)
	rep.Report(model.ProgressEvent{Fraction: 1, Completed: 100, Total: 100, Label: statusStandardDone})
	return r.finish(ctx, Report{Mode: ModeStandard, Records: records, Status: statusStandardDone}, start)
}

// Tail 尾盘扫描，topN 为 0 时取默认值。
func (r *Radar) Tail(ctx context.Context, topN int) Report {
	start := r.deps.Clock.Now()
	if topN <= 0 {
		topN = r.deps.TailTopN
	}
	trace.Log(ctx, "radar: 启动尾盘扫描 topN=%d", topN)
	records := r.deps.Tail.Scan(ctx, topN)
	status := statusTailDone
	if len(records) == 0 {
		status = statusTailEmpty
	}
	return r.finish(ctx, Report{Mode: ModeTail, Tail: records, Status: status}, start)
}

// Auto 按当前时间选择模式：切换时刻之前走标准模式，之后走尾盘模式。
func (r *Radar) Auto(ctx context.Context, reporter progress.Reporter) Report {
	mode := r.SelectMode()
	trace.Log(ctx, "radar: 自动模式选择 %s", mode)
	if mode == ModeTail {
		return r.Tail(ctx, 0)
	}
	return r.Standard(ctx, StandardOptions{Reporter: reporter})
}

// SelectMode 按当前时间返回自动模式应使用的扫描模式。
func (r *Radar) SelectMode() Mode { return r.deps.Selector.Select() }

// Sector 板块扫描，保留情绪分不低于 threshold 的成分股。
func (r *Radar) Sector(ctx context.Context, board string, threshold float64, reporter progress.Reporter) Report {
	start := r.deps.Clock.Now()
	if r.deps.Sector == nil {
		return r.finish(ctx, Report{Mode: ModeSector, Status: "未配置板块扫描"}, start)
	}
	trace.Log(ctx, "radar: 开始扫描板块 %s threshold=%.2f", board, threshold)
	records := r.deps.Sector.Scan(ctx, board, threshold, r.deps.SectorBatchTimeout, reporter)
	status := statusSectorDone
	if len(records) == 0 {
		status = fmt.Sprintf(statusSectorEmptyFn, board)
	}
	return r.finish(ctx, Report{Mode: ModeSector, Records: records, Status: status}, start)
}

func (r *Radar) finish(ctx context.Context, rep Report, start time.Time) Report {
	rep.Elapsed = r.deps.Clock.Now().Sub(start)
	r.deps.Metrics.ScanDone(string(rep.Mode), rep.Elapsed, rep.Len())
	trace.Log(ctx, "radar: %s 完成，入选 %d 只，耗时 %s", rep.Mode.Label(), rep.Len(), rep.Elapsed.Round(time.Millisecond))
	return rep
}
