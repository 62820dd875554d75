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
	"strings"
	"time"

	"github.com/AleutianAI/ignition/pkg/ignition/scope"
)

// runDAG executes signals as their dependencies complete.
//
// The scheduler keeps per-signal pending-dependency counts, a ready queue,
// and the set of non-successful signals. A ready signal whose dependencies
// include failures never starts: it is classified Skipped (default) or
// Cancelled with reason dependency_failed when CancelDependentsOnFailure is
// set, with the failed dependency names recorded (comma-joined in
// CancelledBy when several).
//
// Results are returned in graph (topological) order; signals the graph does
// not know run as independent roots and follow in registration order. The
// signal set may be a subset of the graph (stage interiors): dependencies
// outside the set belong to earlier stages and are ignored.
func (c *Coordinator) runDAG(ctx context.Context, cancel context.CancelFunc, timerC <-chan time.Time, signals []Signal, usePolicy bool) ([]SignalResult, error) {
	g := c.opts.Graph

	inSet := make(map[string]bool, len(signals))
	for _, s := range signals {
		inSet[s.Name()] = true
	}

	var order []string
	seen := make(map[string]bool, len(signals))
	if g != nil {
		for _, name := range g.Signals() {
			if inSet[name] {
				order = append(order, name)
				seen[name] = true
			}
		}
	}
	for _, s := range signals {
		if !seen[s.Name()] {
			order = append(order, s.Name())
		}
	}

	deps := func(name string) []string {
		if g == nil {
			return nil
		}
		var out []string
		for _, d := range g.Dependencies(name) {
			if inSet[d] {
				out = append(out, d)
			}
		}
		return out
	}

	pending := make(map[string]int, len(order))
	var ready []string
	for _, name := range order {
		pending[name] = len(deps(name))
		if pending[name] == 0 {
			ready = append(ready, name)
		}
	}

	var (
		blocked    = make(map[string]bool)
		recorded   = make(map[string]SignalResult, len(order))
		completed  []SignalResult // completion order, for policy context
		completeCh = make(chan SignalResult, len(order))
		active     = 0
		stopped    = false
	)
	sem := c.newParallelGate()

	notifyDependents := func(name string) {
		if g == nil {
			return
		}
		for _, dep := range g.Dependents(name) {
			if !inSet[dep] {
				continue
			}
			if _, done := recorded[dep]; done {
				continue
			}
			pending[dep]--
			if pending[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	// Any non-success blocks dependents: a skipped or cancelled signal
	// never performed its readiness work, so the cascade must continue
	// through it.
	record := func(res SignalResult) {
		recorded[res.Name] = res
		completed = append(completed, res)
		switch res.Status {
		case StatusFailed, StatusTimedOut, StatusCancelled, StatusSkipped:
			blocked[res.Name] = true
		}
	}

	for len(recorded) < len(order) {
		for len(ready) > 0 {
			name := ready[0]
			ready = ready[1:]

			var failedDeps []string
			for _, d := range deps(name) {
				if blocked[d] {
					failedDeps = append(failedDeps, d)
				}
			}
			if len(failedDeps) > 0 {
				now := time.Since(c.start)
				res := SignalResult{
					Name:               name,
					Stage:              stageOf(c.byName[name]),
					StartedAt:          now,
					CompletedAt:        now,
					FailedDependencies: failedDeps,
				}
				if c.opts.CancelDependentsOnFailure {
					res.Status = StatusCancelled
					res.Reason = scope.ReasonDependencyFailed
					res.CancelledBy = strings.Join(failedDeps, ",")
				} else {
					res.Status = StatusSkipped
				}
				c.finishResult(ctx, &res, nil)
				record(res)
				notifyDependents(name)
				continue
			}

			active++
			go func(sig Signal) {
				if sem != nil {
					if err := sem.Acquire(ctx, 1); err == nil {
						defer sem.Release(1)
					}
				}
				completeCh <- c.executeOne(ctx, sig)
			}(c.byName[name])
		}

		if active == 0 {
			if len(recorded) < len(order) {
				// Unreachable for a built graph: cycles are rejected
				// at construction.
				break
			}
			continue
		}

		select {
		case res := <-completeCh:
			active--
			record(res)
			if usePolicy && !stopped && !c.policyContinue(res, completed, len(order)) {
				stopped = true
				cancel()
			}
			notifyDependents(res.Name)
		case <-timerC:
			c.raiseGlobalTimeout(cancel)
			timerC = nil
		}
	}

	ordered := make([]SignalResult, 0, len(order))
	for _, name := range order {
		ordered = append(ordered, recorded[name])
	}
	if stopped {
		return ordered, aggregateFailures(ordered)
	}
	return ordered, nil
}
