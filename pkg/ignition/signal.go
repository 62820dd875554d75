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
	"time"

	"github.com/AleutianAI/ignition/pkg/ignition/scope"
)

// Signal is a single unit of startup readiness work.
//
// Names are unique by convention: the coordinator does not enforce
// uniqueness, but result lookup assumes it. A zero Timeout means the signal
// carries no per-signal deadline of its own.
//
// Wait must honour ctx: when the context is cancelled it should return
// promptly with ctx.Err() (or an error wrapping it).
type Signal interface {
	// Name returns the stable, non-empty signal name.
	Name() string

	// Timeout returns the signal's own deadline, or 0 for none.
	Timeout() time.Duration

	// Wait performs the readiness work. A nil return means the signal
	// succeeded.
	Wait(ctx context.Context) error
}

// Staged is an optional mixin assigning a signal to an integer stage.
// Signals without it run in stage 0.
type Staged interface {
	Stage() int
}

// Scoped is an optional mixin attaching a signal to a cancellation scope.
type Scoped interface {
	// Scope returns the participating scope, or nil.
	Scope() *scope.Scope

	// CancelScopeOnFailure reports whether a failure or timeout of this
	// signal should cancel the scope (bundle semantics).
	CancelScopeOnFailure() bool
}

// WaitFunc adapts a plain function to a signal wait operation.
type WaitFunc func(ctx context.Context) error

// SignalOption configures a signal built by NewSignal.
type SignalOption func(*funcSignal)

// WithTimeout sets the signal's own deadline.
func WithTimeout(d time.Duration) SignalOption {
	return func(s *funcSignal) { s.timeout = d }
}

// WithStage assigns the signal to a stage for staged execution.
func WithStage(stage int) SignalOption {
	return func(s *funcSignal) { s.stage = stage }
}

// WithScope attaches the signal to a cancellation scope.
func WithScope(sc *scope.Scope) SignalOption {
	return func(s *funcSignal) { s.scope = sc }
}

// WithScopeCancelOnFailure attaches the signal to a scope and requests that
// a failure or timeout of this signal cancels the whole scope.
func WithScopeCancelOnFailure(sc *scope.Scope) SignalOption {
	return func(s *funcSignal) {
		s.scope = sc
		s.cancelScope = true
	}
}

// NewSignal builds a Signal from a name and a wait function.
func NewSignal(name string, wait WaitFunc, opts ...SignalOption) Signal {
	s := &funcSignal{name: name, wait: wait}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// funcSignal is the standard Signal implementation. It carries every
// optional mixin; the zero values match the mixin defaults.
type funcSignal struct {
	name        string
	timeout     time.Duration
	stage       int
	scope       *scope.Scope
	cancelScope bool
	wait        WaitFunc
}

func (s *funcSignal) Name() string               { return s.name }
func (s *funcSignal) Timeout() time.Duration     { return s.timeout }
func (s *funcSignal) Stage() int                 { return s.stage }
func (s *funcSignal) Scope() *scope.Scope        { return s.scope }
func (s *funcSignal) CancelScopeOnFailure() bool { return s.cancelScope }
func (s *funcSignal) Wait(ctx context.Context) error {
	return s.wait(ctx)
}

// stageOf returns the stage of a signal, 0 when unstated.
func stageOf(sig Signal) int {
	if st, ok := sig.(Staged); ok {
		return st.Stage()
	}
	return 0
}

// scopeOf returns the signal's scope and cancel-on-failure flag.
func scopeOf(sig Signal) (*scope.Scope, bool) {
	if sc, ok := sig.(Scoped); ok {
		return sc.Scope(), sc.CancelScopeOnFailure()
	}
	return nil, false
}
