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
	"log/slog"
	"time"

	"github.com/AleutianAI/ignition/pkg/ignition/graph"
)

// ExecutionMode selects the scheduling engine for a run.
type ExecutionMode int

const (
	// ModeParallel runs every signal concurrently, bounded by
	// MaxParallel.
	ModeParallel ExecutionMode = iota

	// ModeSequential runs signals one at a time in registration order.
	ModeSequential

	// ModeDependencyAware runs signals as their dependencies complete.
	// Requires Options.Graph.
	ModeDependencyAware

	// ModeStaged partitions signals by stage number and runs stages in
	// ascending order.
	ModeStaged
)

// String returns the string representation of the mode.
func (m ExecutionMode) String() string {
	switch m {
	case ModeParallel:
		return "parallel"
	case ModeSequential:
		return "sequential"
	case ModeDependencyAware:
		return "dependency_aware"
	case ModeStaged:
		return "staged"
	default:
		return "unknown"
	}
}

// StagePolicy decides whether the next stage starts after a stage finishes.
type StagePolicy int

const (
	// StageAllMustSucceed proceeds only if the stage has zero failures
	// and zero timeouts.
	StageAllMustSucceed StagePolicy = iota

	// StageFailFast stops at the stage boundary as soon as any signal
	// has failed.
	StageFailFast

	// StageBestEffort always proceeds.
	StageBestEffort

	// StageEarlyPromotion begins the next stage once
	// ceil(stageSize * EarlyPromotionThreshold) signals of the stage have
	// succeeded; the rest of the stage keeps running in the background.
	StageEarlyPromotion
)

// String returns the string representation of the stage policy.
func (p StagePolicy) String() string {
	switch p {
	case StageAllMustSucceed:
		return "all_must_succeed"
	case StageFailFast:
		return "fail_fast"
	case StageBestEffort:
		return "best_effort"
	case StageEarlyPromotion:
		return "early_promotion"
	default:
		return "unknown"
	}
}

// GlobalTimeoutDisabled turns the global deadline off entirely.
const GlobalTimeoutDisabled = time.Duration(-1)

// EarlyPromotionImmediate makes StageEarlyPromotion hand control to the next
// stage as soon as the current one starts, without waiting for any
// successes.
const EarlyPromotionImmediate = -1.0

// Default option values.
const (
	// DefaultGlobalTimeout bounds the whole run unless overridden.
	DefaultGlobalTimeout = 5 * time.Second

	// DefaultEarlyPromotionThreshold is the fraction of a stage that must
	// succeed before early promotion.
	DefaultEarlyPromotionThreshold = 0.8

	// DefaultSlowSignalCount is how many slow signals the post-run report
	// logs when LogSlowSignals is set.
	DefaultSlowSignalCount = 5
)

// Options configures a Coordinator. The zero value is usable: ApplyDefaults
// fills it in as a parallel, fail-fast run with a 5 second global timeout.
type Options struct {
	// GlobalTimeout bounds the entire run. 0 uses DefaultGlobalTimeout;
	// GlobalTimeoutDisabled removes the deadline.
	GlobalTimeout time.Duration

	// Mode selects the scheduling engine.
	Mode ExecutionMode

	// Policy decides after each signal completion whether the run
	// continues. Nil uses FailFast().
	Policy Policy

	// MaxParallel bounds concurrent signal executions. 0 means unbounded.
	MaxParallel int

	// CancelOnGlobalTimeout makes the global deadline hard: in-flight
	// signals are cancelled when it elapses. When false the deadline is
	// soft; the run keeps waiting but records that the deadline passed.
	CancelOnGlobalTimeout bool

	// CancelSignalOnTimeout cancels a signal's wait when its own deadline
	// elapses. When false the wait is abandoned but not cancelled.
	CancelSignalOnTimeout bool

	// CancelDependentsOnFailure classifies dependents of a failed signal
	// as Cancelled with reason dependency_failed instead of Skipped.
	CancelDependentsOnFailure bool

	// StagePolicy governs stage boundaries in ModeStaged.
	StagePolicy StagePolicy

	// StageMode is the execution mode used inside each stage. Must not be
	// ModeStaged itself. Default ModeParallel.
	StageMode ExecutionMode

	// EarlyPromotionThreshold is the success fraction in [0,1] required
	// by StageEarlyPromotion. 0 uses DefaultEarlyPromotionThreshold;
	// EarlyPromotionImmediate promotes without waiting for any successes.
	EarlyPromotionThreshold float64

	// EnableTracing emits an OpenTelemetry span for the run and one per
	// signal execution.
	EnableTracing bool

	// LogSlowSignals logs the SlowSignalCount slowest executed signals
	// after the run.
	LogSlowSignals bool

	// SlowSignalCount is the size of the slow-signal report.
	// 0 uses DefaultSlowSignalCount.
	SlowSignalCount int

	// TimeoutStrategy overrides per-signal timeout selection. Nil uses
	// the default strategy (the signal's own timeout and
	// CancelSignalOnTimeout).
	TimeoutStrategy TimeoutStrategy

	// Metrics receives per-signal and total durations and statuses.
	// Optional.
	Metrics Metrics

	// Hooks is the optional lifecycle observer. Hook errors are logged
	// and swallowed.
	Hooks LifecycleHooks

	// Graph is the dependency DAG. Required for ModeDependencyAware;
	// consulted in ModeStaged when StageMode is ModeDependencyAware.
	Graph *graph.Graph

	// Logger receives coordinator logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// ApplyDefaults fills in zero values with sensible defaults.
func (o *Options) ApplyDefaults() {
	if o.GlobalTimeout == 0 {
		o.GlobalTimeout = DefaultGlobalTimeout
	}
	if o.Policy == nil {
		o.Policy = FailFast()
	}
	if o.EarlyPromotionThreshold == 0 {
		o.EarlyPromotionThreshold = DefaultEarlyPromotionThreshold
	}
	if o.SlowSignalCount == 0 {
		o.SlowSignalCount = DefaultSlowSignalCount
	}
	if o.TimeoutStrategy == nil {
		o.TimeoutStrategy = DefaultTimeoutStrategy()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Validate checks the options. Call after ApplyDefaults.
func (o *Options) Validate() error {
	if o.GlobalTimeout < 0 && o.GlobalTimeout != GlobalTimeoutDisabled {
		return fmt.Errorf("%w: GlobalTimeout %v", ErrNegativeTimeout, o.GlobalTimeout)
	}
	if o.MaxParallel < 0 {
		return errors.New("MaxParallel must be >= 0")
	}
	if t := o.EarlyPromotionThreshold; t != EarlyPromotionImmediate && (t < 0 || t > 1) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, t)
	}
	if o.Mode == ModeDependencyAware && o.Graph == nil {
		return ErrMissingGraph
	}
	if o.Mode == ModeStaged {
		if o.StageMode == ModeStaged {
			return errors.New("StageMode must not be staged")
		}
		if o.StageMode == ModeDependencyAware && o.Graph == nil {
			return ErrMissingGraph
		}
	}
	return nil
}
