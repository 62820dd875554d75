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
	"math"
	"sort"
	"sync"
	"time"
)

// stageGroup is one stage's signals in registration order.
type stageGroup struct {
	num     int
	signals []Signal
}

// partitionStages groups signals by stage number, ascending. Signals
// without a stage run in stage 0.
func partitionStages(signals []Signal) []stageGroup {
	byStage := make(map[int][]Signal)
	var nums []int
	for _, sig := range signals {
		n := stageOf(sig)
		if _, ok := byStage[n]; !ok {
			nums = append(nums, n)
		}
		byStage[n] = append(byStage[n], sig)
	}
	sort.Ints(nums)
	groups := make([]stageGroup, 0, len(nums))
	for _, n := range nums {
		groups = append(groups, stageGroup{num: n, signals: byStage[n]})
	}
	return groups
}

// runStaged executes stages in ascending order. The interior of each stage
// uses StageMode; stage boundaries apply StagePolicy. A hard global timeout
// cancels the in-flight stage and halts the remaining ones; halted stages
// emit one Skipped result per signal with zero duration and a non-completed
// stage record.
//
// Under StageEarlyPromotion a stage hands control to the next one as soon
// as ceil(stageSize*threshold) signals have succeeded; its residual signals
// keep running in the background and their outcomes are merged in before
// the run result is assembled. The global timeout dominates promotion.
func (c *Coordinator) runStaged(ctx context.Context, cancel context.CancelFunc, timerC <-chan time.Time) ([]SignalResult, []StageResult, error) {
	groups := partitionStages(c.signals)
	stageResults := make([]StageResult, 0, len(groups))

	type background struct {
		idx  int // index into stageResults
		wait func() []SignalResult
	}
	var backgrounds []background
	halted := false
	policyStopped := false

	for _, g := range groups {
		if halted {
			sr := StageResult{Stage: g.num}
			for _, sig := range g.signals {
				res := SignalResult{Name: sig.Name(), Status: StatusSkipped, Stage: g.num}
				c.finishResult(ctx, &res, nil)
				sr.Results = append(sr.Results, res)
			}
			stageResults = append(stageResults, sr)
			continue
		}

		stageStart := time.Since(c.start)
		var (
			results  []SignalResult
			promoted bool
			waitRest func() []SignalResult
		)
		if c.opts.StagePolicy == StageEarlyPromotion {
			results, promoted, waitRest = c.runStagePromoted(ctx, cancel, timerC, g.signals)
		} else {
			switch c.opts.StageMode {
			case ModeSequential:
				results, _ = c.runSequential(ctx, cancel, timerC, g.signals, false)
			case ModeDependencyAware:
				results, _ = c.runDAG(ctx, cancel, timerC, g.signals, false)
			default:
				results, _ = c.runParallel(ctx, cancel, timerC, g.signals, false)
			}
		}
		if c.globalElapsed.Load() {
			// The shared timer has fired; later selects must not block
			// on it again.
			timerC = nil
		}

		sr := StageResult{
			Stage:     g.num,
			Results:   results,
			Duration:  time.Since(c.start) - stageStart,
			Promoted:  promoted,
			Completed: true,
		}
		countStage(&sr)
		if waitRest != nil {
			backgrounds = append(backgrounds, background{idx: len(stageResults), wait: waitRest})
		}

		if c.hardTimedOut.Load() {
			sr.Completed = false
			stageResults = append(stageResults, sr)
			halted = true
			continue
		}
		stageResults = append(stageResults, sr)

		switch c.opts.StagePolicy {
		case StageAllMustSucceed:
			if sr.Failed > 0 || sr.TimedOut > 0 {
				halted = true
				policyStopped = true
			}
		case StageFailFast:
			if sr.Failed > 0 {
				halted = true
				policyStopped = true
			}
		case StageEarlyPromotion:
			if !promoted {
				halted = true
				policyStopped = true
			}
		}
	}

	// Merge residual background outcomes of promoted stages.
	for _, bg := range backgrounds {
		full := bg.wait()
		sr := &stageResults[bg.idx]
		sr.Results = full
		countStage(sr)
	}

	var all []SignalResult
	for _, sr := range stageResults {
		all = append(all, sr.Results...)
	}

	var runErr error
	if policyStopped {
		runErr = aggregateFailures(all)
	}
	return all, stageResults, runErr
}

// countStage recomputes the terminal-status counters of a stage record.
// Unfilled placeholder entries (residual background signals of a promoted
// stage) have empty names and are not counted.
func countStage(sr *StageResult) {
	sr.Succeeded, sr.Failed, sr.TimedOut = 0, 0, 0
	for _, r := range sr.Results {
		if r.Name == "" {
			continue
		}
		switch r.Status {
		case StatusSucceeded:
			sr.Succeeded++
		case StatusFailed:
			sr.Failed++
		case StatusTimedOut:
			sr.TimedOut++
		}
	}
}

// runStagePromoted runs a stage's signals in parallel and returns as soon
// as the promotion predicate is satisfied (or the stage drains). The
// returned slice is indexed by registration order; entries for signals
// still running are zero-valued until waitAll fills them in. waitAll is nil
// when nothing is left in the background.
func (c *Coordinator) runStagePromoted(ctx context.Context, cancel context.CancelFunc, timerC <-chan time.Time, signals []Signal) (results []SignalResult, promoted bool, waitAll func() []SignalResult) {
	results = make([]SignalResult, len(signals))
	need := 0
	if c.opts.EarlyPromotionThreshold != EarlyPromotionImmediate {
		need = int(math.Ceil(float64(len(signals)) * c.opts.EarlyPromotionThreshold))
	}

	type indexed struct {
		i   int
		res SignalResult
	}
	completeCh := make(chan indexed, len(signals))
	sem := c.newParallelGate()

	var wg sync.WaitGroup
	for i, sig := range signals {
		wg.Add(1)
		go func(i int, sig Signal) {
			defer wg.Done()
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err == nil {
					defer sem.Release(1)
				}
			}
			completeCh <- indexed{i: i, res: c.executeOne(ctx, sig)}
		}(i, sig)
	}

	succeeded, done := 0, 0
	for done < len(signals) {
		// The global timeout dominates promotion. A zero requirement
		// (EarlyPromotionImmediate) promotes before any completion.
		if succeeded >= need && !c.hardTimedOut.Load() {
			promoted = true
			break
		}
		select {
		case ir := <-completeCh:
			done++
			results[ir.i] = ir.res
			if ir.res.Status == StatusSucceeded {
				succeeded++
			}
		case <-timerC:
			c.raiseGlobalTimeout(cancel)
			timerC = nil
		}
	}
	if !promoted && succeeded >= need && !c.hardTimedOut.Load() {
		promoted = true
	}

	if done == len(signals) {
		return results, promoted, nil
	}

	remaining := len(signals) - done
	waitAll = func() []SignalResult {
		for i := 0; i < remaining; i++ {
			ir := <-completeCh
			results[ir.i] = ir.res
		}
		wg.Wait()
		return results
	}
	snapshot := make([]SignalResult, len(results))
	copy(snapshot, results)
	return snapshot, promoted, waitAll
}
