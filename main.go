// Package main 是 A 股扫描程序入口：全市场雷达（初筛 + 新闻情绪精筛）、尾盘扫描、板块扫描与单条新闻情绪打分。
// 支持单次运行或调度模式（每半小时 9:15~15:00，周一至周五），可选邮件推送。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stockRadar/internal/config"
	"stockRadar/internal/mail"
	"stockRadar/internal/model"
	"stockRadar/internal/progress"
	"stockRadar/internal/radar"
	"stockRadar/internal/trace"
)

// 单次扫描超时
const runTimeout = 10 * time.Minute

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "stockradar",
		Short:        "A 股全市场雷达：技术面初筛 + 新闻情绪精筛",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径（默认 $CONFIG_PATH 或 config.yaml）")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别 debug/info/warn/error")

	root.AddCommand(
		newScanCmd(opts),
		newSectorCmd(opts),
		newSentimentCmd(opts),
		newScheduleCmd(opts),
	)
	return root
}

// setup 加载配置、初始化日志并装配组件，返回的 ctx 带 trace ID 并响应中断信号。
func setup(opts *rootOptions) (context.Context, context.CancelFunc, *app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := trace.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, nil, nil, fmt.Errorf("log setup: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = trace.WithTraceID(ctx, trace.NewTraceID())
	a := newApp(ctx, cfg)
	a.serveMetrics(ctx)
	cancel := func() {
		a.Close()
		stop()
	}
	return ctx, cancel, a, nil
}

func newScanCmd(root *rootOptions) *cobra.Command {
	var (
		mode     string
		topN     int
		sendMail bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "执行一次扫描（auto 按时间选择：14:30 前全市场雷达，之后尾盘扫描）",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, a, err := setup(root)
			if err != nil {
				return err
			}
			defer cancel()
			ctx, cancelRun := context.WithTimeout(ctx, runTimeout)
			defer cancelRun()

			rep, err := a.scan(ctx, radar.Mode(mode), topN, progress.NewTerminal(os.Stderr))
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), rep, asJSON); err != nil {
				return err
			}
			if sendMail {
				return mail.SendReport(ctx, a.cfg.SMTP, rep)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "auto", "扫描模式 auto/standard/tail")
	cmd.Flags().IntVarP(&topN, "top", "n", 0, "返回数量（0 使用配置）")
	cmd.Flags().BoolVar(&sendMail, "mail", false, "扫描后发送邮件")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}

func (a *app) scan(ctx context.Context, mode radar.Mode, topN int, reporter progress.Reporter) (radar.Report, error) {
	defer a.observeSnapshot()
	switch mode {
	case "", "auto":
		if topN > 0 {
			mode = a.radar.SelectMode()
			return a.scan(ctx, mode, topN, reporter)
		}
		return a.radar.Auto(ctx, reporter), nil
	case radar.ModeStandard:
		return a.radar.Standard(ctx, radar.StandardOptions{TopN: topN, Reporter: reporter}), nil
	case radar.ModeTail:
		return a.radar.Tail(ctx, topN), nil
	default:
		return radar.Report{}, fmt.Errorf("unknown mode %q", mode)
	}
}

func newSectorCmd(root *rootOptions) *cobra.Command {
	var (
		threshold float64
		asJSON    bool
		sendMail  bool
	)
	cmd := &cobra.Command{
		Use:   "sector BOARD",
		Short: "扫描板块成分股（如 BK0477），保留情绪分不低于阈值的股票",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, a, err := setup(root)
			if err != nil {
				return err
			}
			defer cancel()
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Sector.Threshold
			}
			ctx, cancelRun := context.WithTimeout(ctx, runTimeout)
			defer cancelRun()

			rep := a.radar.Sector(ctx, args[0], threshold, progress.NewTerminal(os.Stderr))
			if err := printReport(cmd.OutOrStdout(), rep, asJSON); err != nil {
				return err
			}
			if sendMail {
				return mail.SendReport(ctx, a.cfg.SMTP, rep)
			}
			return nil
		},
	}
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0.3, "情绪分阈值")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	cmd.Flags().BoolVar(&sendMail, "mail", false, "扫描后发送邮件")
	return cmd
}

func newSentimentCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sentiment TITLE [BODY]",
		Short: "对一条新闻打分并输出 JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, a, err := setup(root)
			if err != nil {
				return err
			}
			defer cancel()
			body := ""
			if len(args) == 2 {
				body = args[1]
			}
			r := a.scorer.Score(ctx, args[0], body)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		},
	}
}

func newScheduleCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "常驻调度：周一至周五 9:15~15:00 每半小时自动扫描并发邮件",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, a, err := setup(root)
			if err != nil {
				return err
			}
			defer cancel()
			s := &radar.Scheduler{
				Location:   a.cfg.Tail.Location(),
				RunTimeout: runTimeout,
				OnIdle: func(ctx context.Context, n int) {
					if err := mail.SendNoSelectionReminder(ctx, a.cfg.SMTP, n); err != nil {
						trace.Error(ctx, "main: 发送提醒邮件失败 err=%v", err)
					}
				},
			}
			err = s.Run(ctx, func(ctx context.Context) radar.Report {
				rep, _ := a.scan(ctx, "auto", 0, progress.Log{Ctx: ctx})
				if err := printReport(cmd.OutOrStdout(), rep, false); err != nil {
					trace.Warn(ctx, "main: 输出结果失败 err=%v", err)
				}
				if err := mail.SendReport(ctx, a.cfg.SMTP, rep); err != nil {
					trace.Error(ctx, "main: 发送邮件失败 err=%v", err)
				}
				return rep
			})
			if ctx.Err() != nil {
				trace.Log(ctx, "main: 调度退出")
				return nil
			}
			return err
		},
	}
}

func printReport(w io.Writer, rep radar.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintf(w, "%s：%s（%d 只，耗时 %s）\n", rep.Mode.Label(), rep.Status, rep.Len(), rep.Elapsed.Round(time.Millisecond))
	if rep.Mode == radar.ModeTail {
		for _, r := range rep.Tail {
			fmt.Fprintf(w, "%s %s 现价=%.2f 涨跌幅=%.2f%% 情绪=%.2f 趋势=%+.2f 净流入=%.0f万 %s | %s\n",
				r.Code, r.Name, r.Price, r.ChangePct, r.Sentiment.Score, r.SentimentTrend, r.NetInflow/1e4,
				describe(r.Sentiment), r.LatestHeadline)
		}
		return nil
	}
	for _, r := range rep.Records {
		fmt.Fprintf(w, "%s %s 现价=%.2f MA20=%.2f 偏离=%+.2f%% 情绪=%.2f %s | %s\n",
			r.Code, r.Name, r.Price, r.MA20, r.PriceDeviationPct, r.Sentiment.Score,
			describe(r.Sentiment), r.LatestHeadline)
	}
	return nil
}

func describe(s model.SentimentResult) string {
	return s.Category.Label() + "：" + s.Rationale
}
