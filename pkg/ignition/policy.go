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

import "time"

// PolicyContext is the information a Policy sees after a signal completes.
type PolicyContext struct {
	// Last is the just-completed signal result.
	Last SignalResult

	// Results holds all results accumulated so far, Last included.
	Results []SignalResult

	// TotalSignals is the number of signals in the run.
	TotalSignals int

	// Elapsed is the time since run start.
	Elapsed time.Duration

	// GlobalDeadlineElapsed reports whether the global deadline has
	// passed.
	GlobalDeadlineElapsed bool

	// Mode is the execution mode of the run.
	Mode ExecutionMode
}

// Policy decides after each signal completion whether execution continues.
//
// Implementations must be deterministic and safe for concurrent use.
type Policy interface {
	// Name identifies the policy in logs and recordings.
	Name() string

	// ShouldContinue returns false to stop the run.
	ShouldContinue(pc PolicyContext) bool
}

// PolicyFunc adapts a function to a Policy named "custom".
type PolicyFunc func(pc PolicyContext) bool

func (f PolicyFunc) Name() string                         { return "custom" }
func (f PolicyFunc) ShouldContinue(pc PolicyContext) bool { return f(pc) }

type failFastPolicy struct{}

func (failFastPolicy) Name() string { return "fail_fast" }

func (failFastPolicy) ShouldContinue(pc PolicyContext) bool {
	return pc.Last.Status != StatusFailed && pc.Last.Status != StatusTimedOut
}

// FailFast stops the run on the first failed or timed-out signal.
func FailFast() Policy { return failFastPolicy{} }

type bestEffortPolicy struct{}

func (bestEffortPolicy) Name() string                      { return "best_effort" }
func (bestEffortPolicy) ShouldContinue(PolicyContext) bool { return true }

// BestEffort never stops the run; every signal gets its chance.
func BestEffort() Policy { return bestEffortPolicy{} }

type continueOnTimeoutPolicy struct{}

func (continueOnTimeoutPolicy) Name() string { return "continue_on_timeout" }

func (continueOnTimeoutPolicy) ShouldContinue(pc PolicyContext) bool {
	// Failures and per-signal timeouts do not stop the run; the elapsed
	// global deadline does, cleanly.
	return !pc.GlobalDeadlineElapsed
}

// ContinueOnTimeout tolerates individual failures and timeouts but stops
// cleanly once the global deadline has elapsed.
func ContinueOnTimeout() Policy { return continueOnTimeoutPolicy{} }
