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
	"log/slog"
	"sync"
	"time"
)

// SignalStartedEvent is emitted when a signal's wait begins.
type SignalStartedEvent struct {
	Name      string
	StartedAt time.Duration
}

// SignalCompletedEvent is emitted when a signal result is recorded,
// including synthesized skip results.
type SignalCompletedEvent struct {
	Result SignalResult
}

// GlobalTimeoutEvent is emitted at most once per run, when the global
// deadline elapses.
type GlobalTimeoutEvent struct {
	Elapsed time.Duration
	Timeout time.Duration
	Hard    bool
}

// CompletedEvent is emitted exactly once per run, after the terminal state
// transition and before any failure is surfaced to the caller.
type CompletedEvent struct {
	State  State
	Result *Result
}

// events fans run lifecycle notifications out to registered handlers.
// Handlers are invoked synchronously from whichever worker observed the
// transition, outside all coordinator locks. Panics are recovered and
// logged.
type events struct {
	mu        sync.Mutex
	started   []func(SignalStartedEvent)
	completed []func(SignalCompletedEvent)
	timeout   []func(GlobalTimeoutEvent)
	finished  []func(CompletedEvent)
}

func (e *events) onStarted(fn func(SignalStartedEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, fn)
}

func (e *events) onCompleted(fn func(SignalCompletedEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, fn)
}

func (e *events) onTimeout(fn func(GlobalTimeoutEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeout = append(e.timeout, fn)
}

func (e *events) onFinished(fn func(CompletedEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, fn)
}

func (e *events) emitStarted(logger *slog.Logger, ev SignalStartedEvent) {
	e.mu.Lock()
	handlers := append([]func(SignalStartedEvent){}, e.started...)
	e.mu.Unlock()
	for _, fn := range handlers {
		safeEmit(logger, "signal_started", func() { fn(ev) })
	}
}

func (e *events) emitCompleted(logger *slog.Logger, ev SignalCompletedEvent) {
	e.mu.Lock()
	handlers := append([]func(SignalCompletedEvent){}, e.completed...)
	e.mu.Unlock()
	for _, fn := range handlers {
		safeEmit(logger, "signal_completed", func() { fn(ev) })
	}
}

func (e *events) emitTimeout(logger *slog.Logger, ev GlobalTimeoutEvent) {
	e.mu.Lock()
	handlers := append([]func(GlobalTimeoutEvent){}, e.timeout...)
	e.mu.Unlock()
	for _, fn := range handlers {
		safeEmit(logger, "global_timeout_reached", func() { fn(ev) })
	}
}

func (e *events) emitFinished(logger *slog.Logger, ev CompletedEvent) {
	e.mu.Lock()
	handlers := append([]func(CompletedEvent){}, e.finished...)
	e.mu.Unlock()
	for _, fn := range handlers {
		safeEmit(logger, "coordinator_completed", func() { fn(ev) })
	}
}

// safeEmit runs one handler, recovering and logging panics so handler
// misbehavior never influences the run.
func safeEmit(logger *slog.Logger, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("event handler panicked",
				slog.String("event", event),
				slog.Any("panic", r),
			)
		}
	}()
	fn()
}
