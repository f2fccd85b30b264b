// Package worker 有界并发任务池：每个任务独立超时，结果按完成顺序输出，支持中途停止派发。
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const defaultConcurrency = 10

// ErrNoResult 任务正常结束但没有产出（如无新闻），对应 StatusEmpty。
var ErrNoResult = errors.New("worker: no result")

type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusTimeout
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusTimeout:
		return "timeout"
	default:
		return "failed"
	}
}

// Task 一个待执行的单元；Name 用于日志与进度标签。
type Task[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Outcome 任务结果，Index 为任务在入参切片中的下标。
type Outcome[T any] struct {
	Index  int
	Name   string
	Status Status
	Value  T
	Err    error
}

// Config 控制并发数与单任务超时；TaskTimeout 为 0 表示不限时。
type Config struct {
	Concurrency int
	TaskTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Concurrency: defaultConcurrency}
}

// Run 以 cfg.Concurrency 个 worker 执行 tasks，返回的 channel 按完成顺序输出每个已派发任务的结果，
// 全部结束后关闭。stop 关闭（或 ctx 结束）后不再派发新任务，已派发的任务照常执行并输出。
// 超时的任务被放弃：调用方立即得到 StatusTimeout，任务本身可能仍在后台跑完，其结果被丢弃。
// 输出 channel 容量等于任务数，调用方提前停止读取不会阻塞 worker。
func Run[T any](ctx context.Context, stop <-chan struct{}, cfg Config, tasks []Task[T]) <-chan Outcome[T] {
	out := make(chan Outcome[T], len(tasks))
	if len(tasks) == 0 {
		close(out)
		return out
	}
	n := cfg.Concurrency
	if n <= 0 {
		n = defaultConcurrency
	}
	if n > len(tasks) {
		n = len(tasks)
	}

	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for i := range tasks {
			select {
			case <-stop:
				return
			default:
			}
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out <- runOne(ctx, cfg.TaskTimeout, i, tasks[i])
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

type result[T any] struct {
	value T
	err   error
}

func runOne[T any](ctx context.Context, timeout time.Duration, idx int, task Task[T]) Outcome[T] {
	tctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result[T]{err: fmt.Errorf("worker: task %s panic: %v", task.Name, p)}
			}
		}()
		v, err := task.Run(tctx)
		done <- result[T]{value: v, err: err}
	}()

	o := Outcome[T]{Index: idx, Name: task.Name}
	select {
	case r := <-done:
		o.Value, o.Err = r.value, r.err
		switch {
		case r.err == nil:
			o.Status = StatusOK
		case errors.Is(r.err, ErrNoResult):
			o.Status = StatusEmpty
		case errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil:
			o.Status = StatusTimeout
		default:
			o.Status = StatusFailed
		}
	case <-tctx.Done():
		o.Err = tctx.Err()
		if ctx.Err() != nil {
			o.Status = StatusFailed
		} else {
			o.Status = StatusTimeout
		}
	}
	return o
}

// Drain 非阻塞地读出 ch 中已就绪的结果并逐个交给 fn，ch 暂无数据或已关闭时返回。
// 批次截止时用它收下截止前已完成、尚未读取的结果。
func Drain[T any](ch <-chan Outcome[T], fn func(Outcome[T])) {
	for {
		select {
		case o, ok := <-ch:
			if !ok {
				return
			}
			fn(o)
		default:
			return
		}
	}
}
