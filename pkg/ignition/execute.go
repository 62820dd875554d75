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
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ignition/pkg/ignition/scope"
)

// executeOne runs a single signal to a classified result.
//
// The effective cancellation token is the run-scoped ctx linked with the
// signal's scope token, if any. The wait races against the effective
// per-signal timeout. Classification follows the source-priority order:
// scope-originated reasons, then the global timeout, then external
// cancellation; a per-signal timeout is attributed locally because it is
// observed before the other sources can change the outcome.
//
// The primitive never returns an error: every failure is captured in the
// result.
func (c *Coordinator) executeOne(ctx context.Context, sig Signal) SignalResult {
	res := SignalResult{
		Name:      sig.Name(),
		Stage:     stageOf(sig),
		StartedAt: time.Since(c.start),
	}

	var span trace.Span
	if c.tracer != nil {
		_, span = c.tracer.Start(ctx, "ignition.signal",
			trace.WithAttributes(attribute.String("signal", sig.Name())))
	}

	c.callHook("before_signal", func() error {
		return c.opts.Hooks.BeforeSignal(ctx, sig)
	})
	c.events.emitStarted(c.logger, SignalStartedEvent{Name: sig.Name(), StartedAt: res.StartedAt})

	sc, cancelScopeOnFailure := scopeOf(sig)
	linked, cancelLinked := context.WithCancel(ctx)
	if sc != nil {
		stop := context.AfterFunc(sc.Context(), cancelLinked)
		defer stop()
	}

	timeout, cancelOnTimeout := c.opts.TimeoutStrategy.EffectiveTimeout(sig, c.opts)
	if timeout < 0 {
		timeout = 0
	}
	res.Timeout = timeout

	waitErr := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				waitErr <- fmt.Errorf("signal panicked: %v", r)
			}
		}()
		waitErr <- sig.Wait(linked)
	}()

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case err := <-waitErr:
		wasCancelled := linked.Err() != nil
		cancelLinked()
		c.classify(&res, err, wasCancelled, ctx, sc)
		if res.Status == StatusFailed && cancelScopeOnFailure && sc != nil {
			sc.Cancel(scope.ReasonBundleCancelled, sig.Name())
		}

	case <-timerC:
		res.Status = StatusTimedOut
		res.Reason = scope.ReasonSignalTimeout
		if cancelOnTimeout {
			cancelLinked()
		}
		// A soft per-signal timeout abandons the wait; its goroutine
		// drains into the buffered channel when the work finishes.
		if cancelScopeOnFailure && sc != nil {
			sc.Cancel(scope.ReasonBundleCancelled, sig.Name())
		}
	}

	res.CompletedAt = time.Since(c.start)
	res.Duration = res.CompletedAt - res.StartedAt

	c.finishResult(ctx, &res, span)
	return res
}

// classify maps a wait outcome to a status, reason, and trigger.
func (c *Coordinator) classify(res *SignalResult, err error, wasCancelled bool, parent context.Context, sc *scope.Scope) {
	switch {
	case err == nil:
		res.Status = StatusSucceeded

	case wasCancelled && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		// Attribute to the highest-priority active source.
		if sc != nil && sc.Cancelled() {
			res.Status = StatusCancelled
			res.Reason = sc.Reason()
			res.CancelledBy = sc.TriggeredBy()
		} else if parent.Err() != nil && c.hardTimedOut.Load() {
			res.Status = StatusTimedOut
			res.Reason = scope.ReasonGlobalTimeout
		} else {
			res.Status = StatusTimedOut
			res.Reason = scope.ReasonExternal
		}

	default:
		res.Status = StatusFailed
		res.Err = err
	}
}

// finishResult records metrics, closes the span, fires the after-signal
// hook and the completion event. Also used for synthesized results that
// never started (skips, dependency cancellations).
func (c *Coordinator) finishResult(ctx context.Context, res *SignalResult, span trace.Span) {
	if span != nil {
		span.SetAttributes(
			attribute.String("status", res.Status.String()),
			attribute.String("reason", res.Reason.String()),
			attribute.Float64("duration_ms", float64(res.Duration)/float64(time.Millisecond)),
		)
		span.End()
	}
	if m := c.opts.Metrics; m != nil {
		m.RecordSignalDuration(res.Name, res.Duration)
		m.RecordSignalStatus(res.Name, res.Status)
	}
	c.callHook("after_signal", func() error {
		return c.opts.Hooks.AfterSignal(ctx, *res)
	})
	c.events.emitCompleted(c.logger, SignalCompletedEvent{Result: *res})
}
