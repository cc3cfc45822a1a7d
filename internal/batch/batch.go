// Package batch runs independent generation calls in paced chunks of bounded size.
package batch

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Item is one unit of work. Its error marks only this item failed.
type Item struct {
	ID  string
	Run func(ctx context.Context) error
}

type Result struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

func (r Result) OK() bool { return r.Err == nil }

// Progress is cumulative over the whole run.
type Progress struct {
	Done      int `json:"done"`
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Chunk     int `json:"chunk"`
	Chunks    int `json:"chunks"`
}

// Percent is the share of settled items, 0 to 100.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return p.Done * 100 / p.Total
}

type Options struct {
	Concurrency int
	Pace        time.Duration
	// ItemTimeout bounds each item on its own. The run as a whole has no deadline of its own.
	ItemTimeout time.Duration
	// Sleep waits between chunks; nil uses a context-aware timer.
	Sleep      func(ctx context.Context, d time.Duration) error
	OnProgress func(Progress)
	Logger     *slog.Logger
}

const (
	StoryboardConcurrency = 2
	StoryboardPace        = 1500 * time.Millisecond
	AmazonConcurrency     = 4
	AmazonPace            = 800 * time.Millisecond
	ScenePace             = 1000 * time.Millisecond
)

func StoryboardOptions() Options {
	return Options{Concurrency: StoryboardConcurrency, Pace: StoryboardPace}
}

func AmazonOptions() Options {
	return Options{Concurrency: AmazonConcurrency, Pace: AmazonPace}
}

// SceneOptions renders a scene frame by frame so each frame can chain from the previous one.
func SceneOptions() Options {
	return Options{Concurrency: 1, Pace: ScenePace}
}

// Report holds one result per item, in input order.
type Report struct {
	Results   []Result
	Succeeded int
	Failed    int
}

func (r Report) FailedIDs() []string {
	var out []string
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res.ID)
		}
	}
	return out
}

// Run splits items into chunks of opts.Concurrency. Items of a chunk run concurrently and every
// item settles on its own; the next chunk starts after the whole chunk settled and the pacing
// delay passed. There is no delay after the last chunk.
func Run(ctx context.Context, items []Item, opts Options) Report {
	size := opts.Concurrency
	if size <= 0 {
		size = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	report := Report{Results: make([]Result, len(items))}
	for i, it := range items {
		report.Results[i].ID = it.ID
	}
	chunks := (len(items) + size - 1) / size

	settle := func(from int, err error) {
		for i := from; i < len(items); i++ {
			report.Results[i].Err = err
			report.Failed++
		}
	}

	for c := 0; c < chunks; c++ {
		start := c * size
		end := min(start+size, len(items))

		if err := ctx.Err(); err != nil {
			settle(start, err)
			break
		}

		// Items never return their error to the group, so siblings are not cancelled.
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				report.Results[i].Err = runItem(ctx, items[i], opts.ItemTimeout)
				return nil
			})
		}
		_ = g.Wait()

		for i := start; i < end; i++ {
			if report.Results[i].OK() {
				report.Succeeded++
				continue
			}
			report.Failed++
			logger.Warn("batch item failed", "item", items[i].ID, "err", report.Results[i].Err)
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Done:      end,
				Total:     len(items),
				Succeeded: report.Succeeded,
				Failed:    report.Failed,
				Chunk:     c + 1,
				Chunks:    chunks,
			})
		}

		if c == chunks-1 || opts.Pace <= 0 {
			continue
		}
		if err := sleep(ctx, opts.Pace); err != nil {
			settle(end, err)
			if opts.OnProgress != nil {
				opts.OnProgress(Progress{Done: len(items), Total: len(items), Succeeded: report.Succeeded, Failed: report.Failed, Chunk: c + 1, Chunks: chunks})
			}
			break
		}
	}

	logger.Debug("batch finished", "total", len(items), "succeeded", report.Succeeded, "failed", report.Failed)
	return report
}

func runItem(ctx context.Context, it Item, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return it.Run(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
