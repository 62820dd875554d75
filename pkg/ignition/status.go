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

// Status is the terminal classification of a signal execution.
type Status int

const (
	// StatusSucceeded means the wait operation returned without error.
	StatusSucceeded Status = iota

	// StatusFailed means the wait operation returned an error.
	StatusFailed

	// StatusTimedOut means a per-signal or global deadline elapsed before
	// the wait completed.
	StatusTimedOut

	// StatusSkipped means the signal never started because a dependency
	// failed (or its stage never ran).
	StatusSkipped

	// StatusCancelled means the signal was actively cancelled through a
	// scope: bundle sibling failure, dependency-cancel propagation, or
	// parent scope cancellation.
	StatusCancelled
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	case StatusSkipped:
		return "skipped"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Success reports whether the status counts toward a completed run:
// succeeded and skipped signals do, everything else does not.
func (s Status) Success() bool {
	return s == StatusSucceeded || s == StatusSkipped
}

// State is the coordinator lifecycle state.
type State int32

const (
	// StateNotStarted is the initial state before the first Run call.
	StateNotStarted State = iota

	// StateRunning means the run is in progress.
	StateRunning

	// StateCompleted means every signal succeeded or was skipped.
	StateCompleted

	// StateFailed means at least one signal failed.
	StateFailed

	// StateTimedOut means the run is classified as timed out.
	StateTimedOut
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is one of the three final states.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}
