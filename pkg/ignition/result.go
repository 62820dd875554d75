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
	"time"

	"github.com/AleutianAI/ignition/pkg/ignition/scope"
)

// SignalResult is the classified outcome of one signal execution.
//
// StartedAt and CompletedAt are monotonic offsets from run start. A skipped
// signal that never started carries its decision-time offsets and a zero
// Duration (zero offsets when its whole stage never ran).
type SignalResult struct {
	// Name is the signal name.
	Name string

	// Status is the terminal classification.
	Status Status

	// Duration is CompletedAt - StartedAt.
	Duration time.Duration

	// Err is the captured failure value for StatusFailed.
	Err error

	// FailedDependencies lists the dependency names that caused a skip or
	// dependency cancellation. Empty otherwise.
	FailedDependencies []string

	// Reason attributes the cancellation source, scope.ReasonNone when
	// the signal was not cancelled or timed out.
	Reason scope.Reason

	// CancelledBy names the signal(s) that triggered the cancellation,
	// comma-joined when several dependencies failed.
	CancelledBy string

	// StartedAt is the offset from run start when execution began.
	StartedAt time.Duration

	// CompletedAt is the offset from run start when the result was
	// recorded.
	CompletedAt time.Duration

	// Stage is the signal's stage number (0 outside staged mode).
	Stage int

	// Timeout is the effective per-signal timeout used, 0 for none.
	Timeout time.Duration
}

// StageResult summarizes one stage of a staged run.
type StageResult struct {
	// Stage is the stage number.
	Stage int

	// Duration is the wall time the stage occupied, zero for stages that
	// never ran.
	Duration time.Duration

	// Results holds the stage's signal results in registration order.
	Results []SignalResult

	// Succeeded, Failed and TimedOut count terminal statuses.
	Succeeded int
	Failed    int
	TimedOut  int

	// Completed reports whether the stage ran to completion. False for
	// skipped stages and stages cut off by a hard global timeout.
	Completed bool

	// Promoted reports whether the stage satisfied the early-promotion
	// predicate.
	Promoted bool
}

// Result is the aggregate outcome of a run.
type Result struct {
	// Duration is the total run duration.
	Duration time.Duration

	// Signals holds one result per signal: graph order for
	// dependency-aware runs, stage-then-interior order for staged runs,
	// registration order otherwise.
	Signals []SignalResult

	// TimedOut is true when a hard global timeout fired or any signal
	// timed out.
	TimedOut bool

	// GlobalTimeoutElapsed is true when the global deadline passed,
	// regardless of whether it was hard or soft.
	GlobalTimeoutElapsed bool

	// Stages holds per-stage results for staged runs, nil otherwise.
	Stages []StageResult
}

// Signal returns the result for the named signal.
func (r *Result) Signal(name string) (SignalResult, bool) {
	for _, sr := range r.Signals {
		if sr.Name == name {
			return sr, true
		}
	}
	return SignalResult{}, false
}

// Counts returns the number of results per status.
func (r *Result) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, sr := range r.Signals {
		counts[sr.Status]++
	}
	return counts
}

// Success reports whether every signal succeeded or was skipped.
func (r *Result) Success() bool {
	for _, sr := range r.Signals {
		if !sr.Status.Success() {
			return false
		}
	}
	return true
}

// finalState derives the terminal coordinator state from the result.
func (r *Result) finalState() State {
	if r.Success() {
		return StateCompleted
	}
	for _, sr := range r.Signals {
		if sr.Status == StatusFailed {
			return StateFailed
		}
	}
	return StateTimedOut
}
