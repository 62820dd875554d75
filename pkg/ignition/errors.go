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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilSignal is returned when a nil signal is registered.
	ErrNilSignal = errors.New("signal must not be nil")

	// ErrEmptySignalName is returned when a signal has an empty name.
	ErrEmptySignalName = errors.New("signal name must not be empty")

	// ErrNegativeTimeout is returned for negative timeout configuration.
	ErrNegativeTimeout = errors.New("timeout must not be negative")

	// ErrInvalidThreshold is returned when the early-promotion threshold
	// is outside [0,1].
	ErrInvalidThreshold = errors.New("early promotion threshold must be in [0,1]")

	// ErrMissingGraph is returned when dependency-aware execution is
	// requested without a graph.
	ErrMissingGraph = errors.New("dependency-aware execution requires a graph")

	// ErrUnresolvedDependency is returned when the graph references a
	// signal that was not registered.
	ErrUnresolvedDependency = errors.New("graph references unregistered signal")
)

// IgnitionError aggregates the captured failures of a run that was stopped
// by policy. The coordinator completes its state transition and emits the
// completed event before surfacing it.
type IgnitionError struct {
	// Failures holds the results with captured failure values: failed
	// signals and locally timed-out signals.
	Failures []SignalResult
}

// Error summarizes the aggregated failures.
func (e *IgnitionError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", f.Name, f.Err))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Status))
		}
	}
	return fmt.Sprintf("ignition failed: %d signal(s) unsuccessful: %s",
		len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the captured signal errors for errors.Is/As.
func (e *IgnitionError) Unwrap() []error {
	var errs []error
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
