// Package runner executes a pipeline stage over a batch of items with a
// bounded worker pool. Per-item failures are captured as data; the runner
// never aborts a stage because one item failed. A skip predicate evaluated
// before scheduling is the pipeline's primary resumability mechanism.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// failedSampleSize bounds how many failing item IDs the end-of-stage
// summary log carries.
const failedSampleSize = 5

// progressInterval is how often throughput is reported mid-stage.
const progressInterval = 30 * time.Second

// Failure records one failed item with its error text.
type Failure[K comparable] struct {
	Item K
	Err  string
}

// Summary tallies a completed stage. Every input item lands in exactly
// one of Succeeded, Failed, or Skipped.
type Summary[K comparable, R any] struct {
	Name      string
	Succeeded []R
	Failed    []Failure[K]
	Skipped   []K
	Elapsed   time.Duration
}

// Total returns the number of items the stage saw.
func (s Summary[K, R]) Total() int {
	return len(s.Succeeded) + len(s.Failed) + len(s.Skipped)
}

// Log emits the end-of-stage summary with a bounded sample of failures.
func (s Summary[K, R]) Log() {
	fields := []zap.Field{
		zap.String("stage", s.Name),
		zap.Int("total", s.Total()),
		zap.Int("succeeded", len(s.Succeeded)),
		zap.Int("failed", len(s.Failed)),
		zap.Int("skipped", len(s.Skipped)),
		zap.Duration("elapsed", s.Elapsed),
	}
	if len(s.Failed) > 0 {
		sample := make([]string, 0, failedSampleSize)
		for _, f := range s.Failed {
			if len(sample) == failedSampleSize {
				break
			}
			sample = append(sample, fmt.Sprintf("%v: %s", f.Item, f.Err))
		}
		fields = append(fields, zap.Strings("failed_sample", sample))
	}
	zap.L().Info("stage complete", fields...)
}

// Options configures a stage run.
type Options[K comparable] struct {
	// Concurrency bounds the worker pool. Values < 1 mean serial.
	Concurrency int

	// Skip, when non-nil, is evaluated before scheduling each item;
	// items it accepts are counted as skipped without running the task.
	Skip func(item K) bool
}

// Run maps task over items with a bounded pool. Item completion order is
// unspecified; the only guarantee is the total-count invariant on the
// returned Summary. Cancellation is stage-level: once ctx is done no new
// items are scheduled, but in-flight items run to completion.
func Run[K comparable, R any](ctx context.Context, name string, items []K, opts Options[K], task func(ctx context.Context, item K) (R, error)) Summary[K, R] {
	start := time.Now()
	summary := Summary[K, R]{Name: name}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var pending []K
	for _, item := range items {
		if opts.Skip != nil && opts.Skip(item) {
			summary.Skipped = append(summary.Skipped, item)
			continue
		}
		pending = append(pending, item)
	}

	zap.L().Info("stage starting",
		zap.String("stage", name),
		zap.Int("items", len(pending)),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int("concurrency", concurrency),
	)

	var mu sync.Mutex
	var done int

	stopProgress := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopProgress:
				return
			case <-ticker.C:
				mu.Lock()
				n := done
				mu.Unlock()
				elapsed := time.Since(start).Seconds()
				if elapsed > 0 {
					zap.L().Info("stage progress",
						zap.String("stage", name),
						zap.Int("done", n),
						zap.Int("total", len(pending)),
						zap.Float64("items_per_sec", float64(n)/elapsed),
					)
				}
			}
		}
	}()

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for _, item := range pending {
		if ctx.Err() != nil {
			mu.Lock()
			summary.Failed = append(summary.Failed, Failure[K]{Item: item, Err: ctx.Err().Error()})
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			res, err := runOne(ctx, item, task)
			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				summary.Failed = append(summary.Failed, Failure[K]{Item: item, Err: err.Error()})
				return nil // per-item failures never abort the stage
			}
			summary.Succeeded = append(summary.Succeeded, res)
			return nil
		})
	}

	_ = g.Wait()
	close(stopProgress)

	summary.Elapsed = time.Since(start)
	summary.Log()
	return summary
}

// runOne executes the task for a single item, converting panics into
// ordinary failures so one bad item cannot take down the stage.
func runOne[K comparable, R any](ctx context.Context, item K, task func(ctx context.Context, item K) (R, error)) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx, item)
}
