// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ignition

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// newParallelGate returns the bounded-concurrency gate, nil when unbounded.
func (c *Coordinator) newParallelGate() *semaphore.Weighted {
	if c.opts.MaxParallel > 0 {
		return semaphore.NewWeighted(int64(c.opts.MaxParallel))
	}
	return nil
}

// runParallel starts one execution per signal, bounded by the optional
// parallelism gate, and races the aggregate against the global timer.
//
// Results are emitted in registration order regardless of completion order.
// When usePolicy is set, the policy is evaluated against the completed set
// after all executions resolve; a stop decision cancels the run source and
// surfaces the aggregated failures.
func (c *Coordinator) runParallel(ctx context.Context, cancel context.CancelFunc, timerC <-chan time.Time, signals []Signal, usePolicy bool) ([]SignalResult, error) {
	results := make([]SignalResult, len(signals))
	sem := c.newParallelGate()

	var wg sync.WaitGroup
	for i, sig := range signals {
		wg.Add(1)
		go func(i int, sig Signal) {
			defer wg.Done()
			if sem != nil {
				// Acquire fails only when the run is cancelled;
				// the execution below then classifies immediately.
				if err := sem.Acquire(ctx, 1); err == nil {
					defer sem.Release(1)
				}
			}
			results[i] = c.executeOne(ctx, sig)
		}(i, sig)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-timerC:
		c.raiseGlobalTimeout(cancel)
		// Hard timeout: the cancelled executions drain quickly.
		// Soft timeout: keep waiting for natural completion.
		<-allDone
	}

	if !usePolicy {
		return results, nil
	}
	for i := range results {
		if !c.policyContinue(results[i], results[:i+1], len(signals)) {
			cancel()
			return results, aggregateFailures(results)
		}
	}
	return results, nil
}
