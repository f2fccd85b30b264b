// Package progress 扫描进度回调。Reporter 在聚合协程中同步调用，实现不得长时间阻塞。
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"stockRadar/internal/model"
	"stockRadar/internal/trace"
)

type Reporter interface {
	Report(model.ProgressEvent)
}

// Func 适配普通函数。
type Func func(model.ProgressEvent)

func (f Func) Report(e model.ProgressEvent) {
	if f != nil {
		f(e)
	}
}

// Nop 丢弃所有事件。
var Nop Reporter = Func(nil)

// Event 按完成数构造进度事件，total 为 0 时比例记为 1。
func Event(completed, total int, label string) model.ProgressEvent {
	frac := 1.0
	if total > 0 {
		frac = float64(completed) / float64(total)
	}
	return model.ProgressEvent{Fraction: frac, Completed: completed, Total: total, Label: label}
}

// Log 写入 trace 日志。
type Log struct {
	Ctx context.Context
}

func (l Log) Report(e model.ProgressEvent) {
	trace.Log(l.Ctx, "progress: %3.0f%% %d/%d %s", e.Fraction*100, e.Completed, e.Total, e.Label)
}

const barWidth = 30

// Terminal 在终端上原地刷新进度条；非终端时退化为逐行输出。
type Terminal struct {
	mu  sync.Mutex
	w   io.Writer
	tty bool
}

// NewTerminal w 为 nil 时使用 stderr。
func NewTerminal(w io.Writer) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &Terminal{w: w, tty: tty}
}

func (t *Terminal) Report(e model.ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	filled := int(e.Fraction * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	line := fmt.Sprintf("[%s] %3.0f%% (%d/%d) %s", bar, e.Fraction*100, e.Completed, e.Total, e.Label)
	if !t.tty {
		fmt.Fprintln(t.w, line)
		return
	}
	fmt.Fprintf(t.w, "\r\033[K%s", line)
	if e.Fraction >= 1 {
		fmt.Fprintln(t.w)
	}
}

// Multi 依次转发给多个 Reporter。
func Multi(rs ...Reporter) Reporter {
	return Func(func(e model.ProgressEvent) {
		for _, r := range rs {
			if r != nil {
				r.Report(e)
			}
		}
	})
}

// Or 在 r 为 nil 时返回 Nop。
func Or(r Reporter) Reporter {
	if r == nil {
		return Nop
	}
	return r
}
