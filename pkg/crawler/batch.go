package crawler

import (
	"context"
	"sync"
	"time"
)

// BatchOptions configures batch execution.
type BatchOptions struct {
	// Concurrency caps how many sessions run at once. Zero or negative
	// means one at a time.
	Concurrency int

	// GroupDelay is slept between groups to avoid bursts against the
	// backend.
	GroupDelay time.Duration
}

// RunBatch crawls urls in groups no larger than the concurrency limit,
// awaiting each group before starting the next. Results are returned in
// input order. If the context is cancelled, the remaining URLs get failed
// results without sessions being created for them.
func (o *Orchestrator) RunBatch(ctx context.Context, urls []string, opts Options, batch BatchOptions) []*Result {
	if batch.Concurrency <= 0 {
		batch.Concurrency = 1
	}

	results := make([]*Result, len(urls))
	for start := 0; start < len(urls); start += batch.Concurrency {
		if err := ctx.Err(); err != nil {
			o.failRemaining(results, urls, start, err)
			return results
		}

		end := min(start+batch.Concurrency, len(urls))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = o.Run(ctx, urls[i], opts)
			}(i)
		}
		wg.Wait()

		if end < len(urls) {
			if err := sleepCtx(ctx, batch.GroupDelay); err != nil {
				o.failRemaining(results, urls, end, err)
				return results
			}
		}
	}
	return results
}

func (o *Orchestrator) failRemaining(results []*Result, urls []string, from int, err error) {
	now := time.Now()
	for i := from; i < len(urls); i++ {
		if results[i] != nil {
			continue
		}
		results[i] = &Result{
			URL:       urls[i],
			CrawledAt: now,
			Error:     "batch cancelled: " + err.Error(),
		}
	}
}
