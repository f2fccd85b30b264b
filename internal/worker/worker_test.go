package worker

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockRadar/internal/model"
)

func collect[T any](ch <-chan Outcome[T]) []Outcome[T] {
	var out []Outcome[T]
	for o := range ch {
		out = append(out, o)
	}
	return out
}

func TestRunStatuses(t *testing.T) {
	tasks := []Task[int]{
		{Name: "ok", Run: func(context.Context) (int, error) { return 7, nil }},
		{Name: "empty", Run: func(context.Context) (int, error) { return 0, ErrNoResult }},
		{Name: "failed", Run: func(context.Context) (int, error) { return 0, errors.New("boom") }},
		{Name: "slow", Run: func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}},
		{Name: "panic", Run: func(context.Context) (int, error) { panic("bad") }},
	}
	got := collect(Run(context.Background(), nil, Config{Concurrency: 5, TaskTimeout: 50 * time.Millisecond}, tasks))
	require.Len(t, got, len(tasks))

	byName := map[string]Outcome[int]{}
	for _, o := range got {
		byName[o.Name] = o
		assert.Equal(t, tasks[o.Index].Name, o.Name)
	}
	assert.Equal(t, StatusOK, byName["ok"].Status)
	assert.Equal(t, 7, byName["ok"].Value)
	assert.Equal(t, StatusEmpty, byName["empty"].Status)
	assert.Equal(t, StatusFailed, byName["failed"].Status)
	assert.Equal(t, StatusTimeout, byName["slow"].Status)
	assert.Equal(t, StatusFailed, byName["panic"].Status)
}

func TestRunAbandonsTaskThatIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	tasks := []Task[int]{{Name: "stuck", Run: func(context.Context) (int, error) {
		<-release
		return 1, nil
	}}}

	start := time.Now()
	got := collect(Run(context.Background(), nil, Config{Concurrency: 1, TaskTimeout: 30 * time.Millisecond}, tasks))
	require.Len(t, got, 1)
	assert.Equal(t, StatusTimeout, got[0].Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunBoundsConcurrency(t *testing.T) {
	var running, peak int32
	tasks := make([]Task[int], 20)
	for i := range tasks {
		i := i
		tasks[i] = Task[int]{Run: func(context.Context) (int, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return i, nil
		}}
	}
	got := collect(Run(context.Background(), nil, Config{Concurrency: 3}, tasks))
	require.Len(t, got, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))

	idx := make([]int, 0, len(got))
	for _, o := range got {
		idx = append(idx, o.Value)
	}
	sort.Ints(idx)
	for i, v := range idx {
		assert.Equal(t, i, v)
	}
}

func TestRunStopHaltsDispatch(t *testing.T) {
	stop := make(chan struct{})
	var started int32
	tasks := make([]Task[int], 50)
	for i := range tasks {
		tasks[i] = Task[int]{Run: func(context.Context) (int, error) {
			atomic.AddInt32(&started, 1)
			time.Sleep(10 * time.Millisecond)
			return 0, nil
		}}
	}
	ch := Run(context.Background(), stop, Config{Concurrency: 2}, tasks)
	<-ch
	close(stop)
	rest := collect(ch)
	assert.Less(t, len(rest)+1, len(tasks))
	assert.Equal(t, int(atomic.LoadInt32(&started)), len(rest)+1)
}

func TestRunEmpty(t *testing.T) {
	got := collect(Run[int](context.Background(), nil, DefaultConfig(), nil))
	assert.Empty(t, got)
}

func TestRunParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tasks := []Task[int]{{Run: func(ctx context.Context) (int, error) { return 0, ctx.Err() }}}
	for _, o := range collect(Run(ctx, nil, Config{Concurrency: 1, TaskTimeout: time.Second}, tasks)) {
		assert.Equal(t, StatusFailed, o.Status)
	}
}

func klines(closes ...float64) []model.KLine {
	out := make([]model.KLine, len(closes))
	for i, c := range closes {
		out[i] = model.KLine{Close: c}
	}
	return out
}

func TestMA20OrLatest(t *testing.T) {
	_, ok := MA20OrLatest(nil)
	assert.False(t, ok)

	ma, ok := MA20OrLatest(klines(10, 11, 12))
	require.True(t, ok)
	assert.Equal(t, 12.0, ma)

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	ma, ok = MA20OrLatest(klines(closes...))
	require.True(t, ok)
	assert.InDelta(t, 20.5, ma, 1e-9) // 11..30
	assert.Equal(t, ma, MA20(klines(closes...)))
}

func TestDeviationPct(t *testing.T) {
	assert.InDelta(t, 10.0, DeviationPct(11, 10), 1e-9)
	assert.InDelta(t, -5.0, DeviationPct(9.5, 10), 1e-9)
	assert.Zero(t, DeviationPct(5, 0))
}

func TestDrainReadsReadyOutcomes(t *testing.T) {
	ch := make(chan Outcome[int], 3)
	ch <- Outcome[int]{Index: 0, Value: 1}
	ch <- Outcome[int]{Index: 1, Value: 2}

	var got []int
	Drain(ch, func(o Outcome[int]) { got = append(got, o.Value) })
	assert.Equal(t, []int{1, 2}, got)

	// 空 channel 不阻塞
	Drain(ch, func(o Outcome[int]) { t.Fatalf("unexpected outcome %v", o) })

	ch <- Outcome[int]{Index: 2, Value: 3}
	close(ch)
	got = nil
	Drain(ch, func(o Outcome[int]) { got = append(got, o.Value) })
	assert.Equal(t, []int{3}, got)
}
