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
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ignition/pkg/ignition/scope"
)

const tracerName = "github.com/AleutianAI/ignition"

// Coordinator runs a fixed set of signals once and memoizes the outcome.
//
// Thread Safety: Safe for concurrent use. Concurrent Run calls observe the
// same completion; State is a lock-free monotonic snapshot.
type Coordinator struct {
	signals []Signal
	byName  map[string]Signal
	opts    Options
	logger  *slog.Logger

	state atomic.Int32

	once   sync.Once
	done   chan struct{}
	result *Result
	runErr error

	events events

	// Run-time fields, written only by the executing goroutine or under
	// the one-shot guards below.
	start         time.Time
	globalElapsed atomic.Bool // global deadline passed (soft or hard)
	hardTimedOut  atomic.Bool // hard global timeout fired
	timeoutOnce   sync.Once
	tracer        trace.Tracer
}

// NewCoordinator validates the configuration and builds a coordinator.
//
// Inputs:
//   - signals: The pre-constructed signals to run. May be empty; an empty
//     run completes immediately.
//   - opts: Run configuration. Zero values use defaults.
//
// Outputs:
//   - *Coordinator: The coordinator in StateNotStarted. Nil on error.
//   - error: Non-nil on configuration errors: nil signals, empty names,
//     negative timeouts, invalid threshold, missing graph for
//     dependency-aware mode, or a graph referencing unregistered signals.
//     No run is started when an error is returned.
func NewCoordinator(signals []Signal, opts Options) (*Coordinator, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	byName := make(map[string]Signal, len(signals))
	for _, sig := range signals {
		if sig == nil {
			return nil, ErrNilSignal
		}
		if sig.Name() == "" {
			return nil, ErrEmptySignalName
		}
		if sig.Timeout() < 0 {
			return nil, fmt.Errorf("%w: signal %q", ErrNegativeTimeout, sig.Name())
		}
		byName[sig.Name()] = sig
	}

	// Name-based graph wiring resolves at construction: every node must
	// map to a registered signal.
	if opts.Graph != nil {
		for _, name := range opts.Graph.Signals() {
			if _, ok := byName[name]; !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnresolvedDependency, name)
			}
		}
	}

	c := &Coordinator{
		signals: signals,
		byName:  byName,
		opts:    opts,
		logger:  opts.Logger.With(slog.String("component", "ignition_coordinator")),
		done:    make(chan struct{}),
	}
	c.state.Store(int32(StateNotStarted))
	return c, nil
}

// Run executes the signals. The first call performs the run; every later
// call, concurrent or not, waits for and returns the same outcome.
//
// The returned error is non-nil only for policy-driven stops that captured
// failures; global timeouts and caller cancellation surface as result
// classification, not errors.
func (c *Coordinator) Run(ctx context.Context) error {
	c.once.Do(func() { c.execute(ctx) })
	<-c.done
	return c.runErr
}

// Result blocks until the run has produced a result and returns it.
func (c *Coordinator) Result() *Result {
	<-c.done
	return c.result
}

// Peek returns the result without blocking, and whether it is available.
func (c *Coordinator) Peek() (*Result, bool) {
	select {
	case <-c.done:
		return c.result, true
	default:
		return nil, false
	}
}

// Done returns a channel closed when the run has finished.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// State returns the current lifecycle state. Monotonic: the observed
// sequence is always a prefix of NotStarted, Running, terminal.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// OnSignalStarted registers a handler for signal start events.
func (c *Coordinator) OnSignalStarted(fn func(SignalStartedEvent)) { c.events.onStarted(fn) }

// OnSignalCompleted registers a handler for signal completion events.
func (c *Coordinator) OnSignalCompleted(fn func(SignalCompletedEvent)) { c.events.onCompleted(fn) }

// OnGlobalTimeout registers a handler for the global timeout event.
func (c *Coordinator) OnGlobalTimeout(fn func(GlobalTimeoutEvent)) { c.events.onTimeout(fn) }

// OnCompleted registers a handler for the coordinator completion event.
func (c *Coordinator) OnCompleted(fn func(CompletedEvent)) { c.events.onFinished(fn) }

// execute performs the one and only run. Called exactly once via c.once.
func (c *Coordinator) execute(ctx context.Context) {
	c.state.Store(int32(StateRunning))

	var runSpan trace.Span
	if c.opts.EnableTracing {
		c.tracer = otel.Tracer(tracerName)
		ctx, runSpan = c.tracer.Start(ctx, "ignition.run",
			trace.WithAttributes(
				attribute.String("mode", c.opts.Mode.String()),
				attribute.String("policy", c.opts.Policy.Name()),
				attribute.Int("signals", len(c.signals)),
			))
	}

	c.callHook("before_ignition", func() error {
		return c.opts.Hooks.BeforeIgnition(ctx)
	})

	c.start = time.Now()
	c.logger.Info("ignition started",
		slog.String("mode", c.opts.Mode.String()),
		slog.String("policy", c.opts.Policy.Name()),
		slog.Int("signals", len(c.signals)),
		slog.Duration("global_timeout", c.opts.GlobalTimeout),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timerC <-chan time.Time
	if c.opts.GlobalTimeout > 0 {
		timer := time.NewTimer(c.opts.GlobalTimeout)
		defer timer.Stop()
		timerC = timer.C
	}

	var (
		results []SignalResult
		stages  []StageResult
		runErr  error
	)
	switch c.opts.Mode {
	case ModeSequential:
		results, runErr = c.runSequential(runCtx, cancel, timerC, c.signals, true)
	case ModeDependencyAware:
		results, runErr = c.runDAG(runCtx, cancel, timerC, c.signals, true)
	case ModeStaged:
		results, stages, runErr = c.runStaged(runCtx, cancel, timerC)
	default:
		results, runErr = c.runParallel(runCtx, cancel, timerC, c.signals, true)
	}

	res := &Result{
		Duration:             time.Since(c.start),
		Signals:              results,
		Stages:               stages,
		GlobalTimeoutElapsed: c.globalElapsed.Load(),
	}
	res.TimedOut = c.hardTimedOut.Load()
	for _, sr := range results {
		if sr.Status == StatusTimedOut {
			res.TimedOut = true
			break
		}
	}

	if m := c.opts.Metrics; m != nil {
		m.RecordTotalDuration(res.Duration)
	}
	c.logSlowSignals(results)

	final := res.finalState()
	c.result = res
	c.state.Store(int32(final))

	c.logger.Info("ignition finished",
		slog.String("state", final.String()),
		slog.Duration("duration", res.Duration),
		slog.Bool("timed_out", res.TimedOut),
	)
	if runSpan != nil {
		runSpan.SetAttributes(
			attribute.String("state", final.String()),
			attribute.Float64("duration_ms", float64(res.Duration)/float64(time.Millisecond)),
			attribute.Bool("timed_out", res.TimedOut),
		)
		runSpan.End()
	}

	// The completed event and after-hook fire before any failure is
	// surfaced to the caller, so observers always see the final result.
	c.events.emitFinished(c.logger, CompletedEvent{State: final, Result: res})
	c.callHook("after_ignition", func() error {
		return c.opts.Hooks.AfterIgnition(ctx, res)
	})

	c.runErr = runErr
	close(c.done)
}

// raiseGlobalTimeout records the elapsed global deadline, emits the event
// at most once, and cancels the run-scoped source when the deadline is
// hard.
func (c *Coordinator) raiseGlobalTimeout(cancel context.CancelFunc) {
	c.timeoutOnce.Do(func() {
		hard := c.opts.CancelOnGlobalTimeout
		c.globalElapsed.Store(true)
		if hard {
			// Set before cancelling so racing classifications see it.
			c.hardTimedOut.Store(true)
		}
		c.logger.Warn("global timeout reached",
			slog.Duration("timeout", c.opts.GlobalTimeout),
			slog.Bool("hard", hard),
		)
		c.events.emitTimeout(c.logger, GlobalTimeoutEvent{
			Elapsed: time.Since(c.start),
			Timeout: c.opts.GlobalTimeout,
			Hard:    hard,
		})
		if hard {
			cancel()
		}
	})
}

// policyContinue consults the configured policy after a completion.
func (c *Coordinator) policyContinue(last SignalResult, sofar []SignalResult, total int) bool {
	return c.opts.Policy.ShouldContinue(PolicyContext{
		Last:                  last,
		Results:               sofar,
		TotalSignals:          total,
		Elapsed:               time.Since(c.start),
		GlobalDeadlineElapsed: c.globalElapsed.Load(),
		Mode:                  c.opts.Mode,
	})
}

// callHook invokes one lifecycle hook, logging and swallowing errors and
// panics.
func (c *Coordinator) callHook(name string, fn func() error) {
	if c.opts.Hooks == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("lifecycle hook panicked",
				slog.String("hook", name),
				slog.Any("panic", r),
			)
		}
	}()
	if err := fn(); err != nil {
		c.logger.Warn("lifecycle hook failed",
			slog.String("hook", name),
			slog.Any("error", err),
		)
	}
}

// logSlowSignals reports the slowest executed signals after the run.
func (c *Coordinator) logSlowSignals(results []SignalResult) {
	if !c.opts.LogSlowSignals || len(results) == 0 {
		return
	}
	executed := make([]SignalResult, 0, len(results))
	for _, r := range results {
		if r.Status != StatusSkipped {
			executed = append(executed, r)
		}
	}
	sort.Slice(executed, func(i, j int) bool {
		return executed[i].Duration > executed[j].Duration
	})
	n := c.opts.SlowSignalCount
	if n > len(executed) {
		n = len(executed)
	}
	for i := 0; i < n; i++ {
		c.logger.Info("slow signal",
			slog.Int("rank", i+1),
			slog.String("signal", executed[i].Name),
			slog.String("status", executed[i].Status.String()),
			slog.Duration("duration", executed[i].Duration),
		)
	}
}

// aggregateFailures collects the captured failure values of a result set:
// failed signals and locally timed-out signals. Global-timeout and
// cancellation classifications are not failures.
func aggregateFailures(results []SignalResult) error {
	var failures []SignalResult
	for _, r := range results {
		if r.Status == StatusFailed {
			failures = append(failures, r)
			continue
		}
		if r.Status == StatusTimedOut && r.Reason == scope.ReasonSignalTimeout {
			failures = append(failures, r)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &IgnitionError{Failures: failures}
}
