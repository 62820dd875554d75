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
	"time"
)

// runSequential executes signals one at a time in registration order, each
// raced against the shared global timer.
//
// A hard global timeout cancels the in-flight signal and stops, returning
// the partial result list. A soft timeout awaits the current signal and
// continues. After each completion the policy decides whether to continue;
// a stop cancels the run source and surfaces the aggregated failures.
func (c *Coordinator) runSequential(ctx context.Context, cancel context.CancelFunc, timerC <-chan time.Time, signals []Signal, usePolicy bool) ([]SignalResult, error) {
	results := make([]SignalResult, 0, len(signals))
	for _, sig := range signals {
		resCh := make(chan SignalResult, 1)
		go func(sig Signal) { resCh <- c.executeOne(ctx, sig) }(sig)

		var res SignalResult
		select {
		case res = <-resCh:
		case <-timerC:
			c.raiseGlobalTimeout(cancel)
			timerC = nil
			res = <-resCh
			if c.opts.CancelOnGlobalTimeout {
				results = append(results, res)
				return results, nil
			}
		}

		results = append(results, res)
		if usePolicy && !c.policyContinue(res, results, len(signals)) {
			cancel()
			return results, aggregateFailures(results)
		}
	}
	return results, nil
}
