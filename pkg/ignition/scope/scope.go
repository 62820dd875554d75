// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scope implements the hierarchical cancellation tree used by the
// ignition coordinator.
//
// A Scope is a node owning a cancellation source linked to its parent's
// source. Cancelling a scope records a reason and the name of the signal
// that triggered it, then propagates to every descendant with reason
// ReasonScopeCancelled. A scope is cancelled at most once; later requests
// are no-ops.
package scope

import (
	"context"
	"sync"
)

// Reason indicates why a cancellation occurred.
type Reason int

const (
	// ReasonNone means no cancellation has occurred.
	ReasonNone Reason = iota

	// ReasonGlobalTimeout indicates the run's global deadline elapsed.
	ReasonGlobalTimeout

	// ReasonSignalTimeout indicates a per-signal timeout elapsed.
	ReasonSignalTimeout

	// ReasonScopeCancelled indicates an ancestor scope was cancelled.
	ReasonScopeCancelled

	// ReasonBundleCancelled indicates a sibling signal in the same scope
	// failed or timed out and requested scope cancellation.
	ReasonBundleCancelled

	// ReasonDependencyFailed indicates a dependency of the signal failed.
	ReasonDependencyFailed

	// ReasonExternal indicates the caller cancelled the run.
	ReasonExternal
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonGlobalTimeout:
		return "global_timeout"
	case ReasonSignalTimeout:
		return "signal_timeout"
	case ReasonScopeCancelled:
		return "scope_cancelled"
	case ReasonBundleCancelled:
		return "bundle_cancelled"
	case ReasonDependencyFailed:
		return "dependency_failed"
	case ReasonExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Priority orders reasons for result attribution when multiple cancellation
// sources race. Scope-originated reasons outrank the global timeout, which
// outranks external cancellation.
func (r Reason) Priority() int {
	switch r {
	case ReasonScopeCancelled, ReasonBundleCancelled, ReasonDependencyFailed, ReasonSignalTimeout:
		return 3
	case ReasonGlobalTimeout:
		return 2
	case ReasonExternal:
		return 1
	default:
		return 0
	}
}

// Scope is a node in the hierarchical cancellation tree.
//
// Thread Safety: Safe for concurrent use.
type Scope struct {
	name   string
	parent *Scope

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	children    []*Scope
	cancelled   bool
	released    bool
	reason      Reason
	triggeredBy string
}

// New creates a root scope with the given name.
//
// The returned scope owns its cancellation source; call Release when the
// scope is no longer needed to free the source on paths where Cancel was
// never invoked.
func New(name string) *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scope{name: name, ctx: ctx, cancel: cancel}
}

// Child creates a scope whose cancellation source is linked to s. Cancelling
// s cancels the child, both at the context level and in recorded reason.
func (s *Scope) Child(name string) *Scope {
	ctx, cancel := context.WithCancel(s.ctx)
	child := &Scope{name: name, parent: s, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	s.children = append(s.children, child)
	cancelled := s.cancelled
	trigger := s.triggeredBy
	s.mu.Unlock()

	// Parent already cancelled: the child must observe it immediately.
	if cancelled {
		child.Cancel(ReasonScopeCancelled, trigger)
	}
	return child
}

// Name returns the scope name.
func (s *Scope) Name() string { return s.name }

// Parent returns the parent scope, or nil for a root.
func (s *Scope) Parent() *Scope { return s.parent }

// Context returns the cancellation token for this scope.
func (s *Scope) Context() context.Context { return s.ctx }

// Done returns a channel closed when the scope is cancelled or released.
func (s *Scope) Done() <-chan struct{} { return s.ctx.Done() }

// Cancel cancels the scope, recording the reason and the name of the signal
// that triggered it, and propagates to all descendants with reason
// ReasonScopeCancelled and the same triggering name.
//
// The first cancellation wins; subsequent calls are no-ops and return false.
func (s *Scope) Cancel(reason Reason, triggeredBy string) bool {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return false
	}
	s.cancelled = true
	s.reason = reason
	s.triggeredBy = triggeredBy
	children := make([]*Scope, len(s.children))
	copy(children, s.children)
	s.mu.Unlock()

	s.cancel()

	// Propagate outside the lock; descendants record the parent's
	// triggering signal with reason ReasonScopeCancelled.
	for _, child := range children {
		child.Cancel(ReasonScopeCancelled, triggeredBy)
	}
	return true
}

// Cancelled reports whether the scope has been cancelled with a reason.
// A released-but-never-cancelled scope reports false.
func (s *Scope) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Reason returns the recorded cancellation reason, ReasonNone if the scope
// has not been cancelled.
func (s *Scope) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// TriggeredBy returns the name of the signal recorded as the trigger of the
// cancellation, or "" if the scope has not been cancelled.
func (s *Scope) TriggeredBy() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggeredBy
}

// Release frees the scope's cancellation source without recording a
// cancellation. Safe to call on all exit paths; a no-op after Cancel.
func (s *Scope) Release() {
	s.mu.Lock()
	if s.released || s.cancelled {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()
	s.cancel()
}
