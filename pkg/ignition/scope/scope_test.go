// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScope_CancelRecordsReasonAndTrigger verifies the first cancellation
// records its attribution.
func TestScope_CancelRecordsReasonAndTrigger(t *testing.T) {
	sc := New("db")
	defer sc.Release()

	ok := sc.Cancel(ReasonBundleCancelled, "db-primary")
	require.True(t, ok, "first cancel should win")

	assert.True(t, sc.Cancelled())
	assert.Equal(t, ReasonBundleCancelled, sc.Reason())
	assert.Equal(t, "db-primary", sc.TriggeredBy())

	select {
	case <-sc.Context().Done():
	default:
		t.Fatal("scope context should be cancelled")
	}
}

// TestScope_FirstCancellationWins verifies later cancel requests are no-ops
// and do not overwrite the recorded attribution.
func TestScope_FirstCancellationWins(t *testing.T) {
	sc := New("cache")
	defer sc.Release()

	require.True(t, sc.Cancel(ReasonBundleCancelled, "redis"))
	assert.False(t, sc.Cancel(ReasonExternal, "operator"), "second cancel should be a no-op")

	assert.Equal(t, ReasonBundleCancelled, sc.Reason())
	assert.Equal(t, "redis", sc.TriggeredBy())
}

// TestScope_ParentCancelPropagatesToChildren verifies cancelling a parent
// cancels every descendant exactly once.
func TestScope_ParentCancelPropagatesToChildren(t *testing.T) {
	root := New("root")
	defer root.Release()
	child := root.Child("child")
	grandchild := child.Child("grandchild")

	root.Cancel(ReasonExternal, "shutdown")

	for _, sc := range []*Scope{child, grandchild} {
		assert.True(t, sc.Cancelled(), "%s should be cancelled", sc.Name())
		select {
		case <-sc.Context().Done():
		default:
			t.Fatalf("%s context should be cancelled", sc.Name())
		}
	}
	assert.Equal(t, ReasonScopeCancelled, child.Reason())
	assert.Equal(t, "shutdown", child.TriggeredBy(), "trigger propagates down the tree")
}

// TestScope_ChildCancelDoesNotAffectParent verifies cancellation only flows
// downward.
func TestScope_ChildCancelDoesNotAffectParent(t *testing.T) {
	root := New("root")
	defer root.Release()
	child := root.Child("child")

	child.Cancel(ReasonBundleCancelled, "flaky")

	assert.False(t, root.Cancelled())
	select {
	case <-root.Context().Done():
		t.Fatal("parent context must stay live")
	default:
	}
}

// TestScope_ChildOfCancelledParent verifies a child created after its
// parent was cancelled starts in the cancelled state.
func TestScope_ChildOfCancelledParent(t *testing.T) {
	root := New("root")
	defer root.Release()
	root.Cancel(ReasonExternal, "shutdown")

	child := root.Child("late")
	assert.True(t, child.Cancelled())
	assert.Equal(t, ReasonScopeCancelled, child.Reason())
}

// TestReason_Priority verifies the attribution precedence ordering.
func TestReason_Priority(t *testing.T) {
	assert.Greater(t, ReasonScopeCancelled.Priority(), ReasonGlobalTimeout.Priority(),
		"scope cancellation outranks the global timeout")
	assert.Greater(t, ReasonBundleCancelled.Priority(), ReasonGlobalTimeout.Priority())
	assert.Greater(t, ReasonGlobalTimeout.Priority(), ReasonExternal.Priority(),
		"global timeout outranks external cancellation")
	assert.Equal(t, 0, ReasonNone.Priority())
}

func TestReason_String(t *testing.T) {
	tests := []struct {
		reason Reason
		want   string
	}{
		{ReasonNone, "none"},
		{ReasonGlobalTimeout, "global_timeout"},
		{ReasonSignalTimeout, "signal_timeout"},
		{ReasonScopeCancelled, "scope_cancelled"},
		{ReasonBundleCancelled, "bundle_cancelled"},
		{ReasonDependencyFailed, "dependency_failed"},
		{ReasonExternal, "external"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.reason.String())
	}
}
