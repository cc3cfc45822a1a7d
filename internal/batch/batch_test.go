package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
	// doneAtSleep is the number of settled items when each sleep started.
	doneAtSleep []int64
	done        *atomic.Int64
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	s.doneAtSleep = append(s.doneAtSleep, s.done.Load())
	return nil
}

// barrier releases once n goroutines arrived, or fails after a timeout.
type barrier struct {
	wg sync.WaitGroup
}

func newBarrier(n int) *barrier {
	b := &barrier{}
	b.wg.Add(n)
	return b
}

func (b *barrier) arrive() error {
	b.wg.Done()
	ch := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return nil
	case <-time.After(2 * time.Second):
		return errors.New("chunk siblings did not run concurrently")
	}
}

func TestRun_ChunksScenePlot(t *testing.T) {
	const n, k = 5, 2
	var inFlight, maxInFlight, done atomic.Int64
	rec := &sleepRecorder{done: &done}

	barriers := []*barrier{newBarrier(2), newBarrier(2), newBarrier(1)}
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{ID: fmt.Sprintf("frame-%d", i), Run: func(ctx context.Context) error {
			cur := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
					break
				}
			}
			err := barriers[i/k].arrive()
			inFlight.Add(-1)
			done.Add(1)
			return err
		}}
	}

	var progress []Progress
	report := Run(context.Background(), items, Options{
		Concurrency: k,
		Pace:        1500 * time.Millisecond,
		Sleep:       rec.sleep,
		OnProgress:  func(p Progress) { progress = append(progress, p) },
	})

	assert.Equal(t, 5, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.LessOrEqual(t, maxInFlight.Load(), int64(k))
	assert.Equal(t, int64(k), maxInFlight.Load())

	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, rec.calls)
	assert.Equal(t, []int64{2, 4}, rec.doneAtSleep)

	require.Len(t, progress, 3)
	assert.Equal(t, []int{2, 4, 5}, []int{progress[0].Done, progress[1].Done, progress[2].Done})
	assert.Equal(t, 3, progress[2].Chunks)
	assert.Equal(t, 100, progress[2].Percent())
}

func TestRun_FailureDoesNotCancelSiblings(t *testing.T) {
	var ran atomic.Int64
	boom := errors.New("quota")
	items := []Item{
		{ID: "a", Run: func(context.Context) error { ran.Add(1); return boom }},
		{ID: "b", Run: func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			ran.Add(1)
			return ctx.Err()
		}},
		{ID: "c", Run: func(context.Context) error { ran.Add(1); return nil }},
		{ID: "d", Run: func(context.Context) error { ran.Add(1); return boom }},
	}
	report := Run(context.Background(), items, Options{Concurrency: 2, Sleep: func(context.Context, time.Duration) error { return nil }, Pace: time.Millisecond})

	assert.Equal(t, int64(4), ran.Load())
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, []string{"a", "d"}, report.FailedIDs())
	assert.ErrorIs(t, report.Results[0].Err, boom)
}

func TestRun_CancelDuringPacingFailsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran atomic.Int64
	items := make([]Item, 4)
	for i := range items {
		items[i] = Item{ID: fmt.Sprint(i), Run: func(context.Context) error { ran.Add(1); return nil }}
	}
	report := Run(ctx, items, Options{
		Concurrency: 2,
		Pace:        time.Hour,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	assert.Equal(t, int64(2), ran.Load())
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"2", "3"}, report.FailedIDs())
	assert.ErrorIs(t, report.Results[3].Err, context.Canceled)
}

func TestRun_SequentialScenePreset(t *testing.T) {
	opts := SceneOptions()
	assert.Equal(t, 1, opts.Concurrency)
	assert.Equal(t, time.Second, opts.Pace)

	var order []string
	var sleeps int
	opts.Sleep = func(context.Context, time.Duration) error { sleeps++; return nil }
	items := []Item{
		{ID: "1", Run: func(context.Context) error { order = append(order, "1"); return nil }},
		{ID: "2", Run: func(context.Context) error { order = append(order, "2"); return nil }},
		{ID: "3", Run: func(context.Context) error { order = append(order, "3"); return nil }},
	}
	Run(context.Background(), items, opts)
	assert.Equal(t, []string{"1", "2", "3"}, order)
	assert.Equal(t, 2, sleeps)
}

func TestRun_Empty(t *testing.T) {
	called := false
	report := Run(context.Background(), nil, Options{Concurrency: 2, OnProgress: func(Progress) { called = true }})
	assert.Empty(t, report.Results)
	assert.False(t, called)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, Options{Concurrency: 2, Pace: 1500 * time.Millisecond}, StoryboardOptions())
	assert.Equal(t, Options{Concurrency: 4, Pace: 800 * time.Millisecond}, AmazonOptions())
}

func slowItem(id string, d time.Duration) Item {
	return Item{ID: id, Run: func(ctx context.Context) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
}

func TestRun_ItemTimeoutIsPerItem(t *testing.T) {
	items := make([]Item, 6)
	for i := range items {
		items[i] = slowItem(fmt.Sprintf("frame-%d", i+1), 60*time.Millisecond)
	}

	start := time.Now()
	report := Run(context.Background(), items, Options{Concurrency: 1, ItemTimeout: 150 * time.Millisecond})

	assert.Greater(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, 6, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.FailedIDs())
}

func TestRun_ItemTimeoutFailsOnlyTheSlowItem(t *testing.T) {
	items := []Item{
		slowItem("quick", time.Millisecond),
		slowItem("stuck", time.Second),
		slowItem("after", time.Millisecond),
	}

	report := Run(context.Background(), items, Options{Concurrency: 1, ItemTimeout: 50 * time.Millisecond})

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"stuck"}, report.FailedIDs())
	require.Len(t, report.Results, 3)
	assert.ErrorIs(t, report.Results[1].Err, context.DeadlineExceeded)
}
