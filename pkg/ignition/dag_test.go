// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ignition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ignition/pkg/ignition/graph"
)

// TestDAG_TopologicalOrdering verifies a dependent never starts before its
// last dependency completes.
func TestDAG_TopologicalOrdering(t *testing.T) {
	g, err := graph.NewBuilder().
		Add("db").Add("cache").Add("api").
		Dependency("api", "db").
		Dependency("api", "cache").
		Build()
	require.NoError(t, err)

	signals := []Signal{
		sleepSignal("db", 40*time.Millisecond),
		sleepSignal("cache", 20*time.Millisecond),
		sleepSignal("api", 10*time.Millisecond),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:   ModeDependencyAware,
		Policy: BestEffort(),
		Graph:  g,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()

	db, _ := res.Signal("db")
	cache, _ := res.Signal("cache")
	api, _ := res.Signal("api")

	assert.Equal(t, StatusSucceeded, api.Status)
	assert.LessOrEqual(t, db.CompletedAt, api.StartedAt)
	assert.LessOrEqual(t, cache.CompletedAt, api.StartedAt)
}

// TestDAG_FailurePropagation_Skip verifies dependents of a failed signal
// are skipped with the failed dependency recorded, while independent
// signals still run.
func TestDAG_FailurePropagation_Skip(t *testing.T) {
	g, err := graph.NewBuilder().
		Add("a").Add("b").Add("c").Add("d").
		Dependency("b", "a").
		Dependency("c", "a").
		Dependency("c", "d").
		Build()
	require.NoError(t, err)

	signals := []Signal{
		failSignal("a", 20*time.Millisecond, errors.New("boom")),
		sleepSignal("b", 10*time.Millisecond),
		sleepSignal("c", 10*time.Millisecond),
		sleepSignal("d", 10*time.Millisecond),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:   ModeDependencyAware,
		Policy: BestEffort(),
		Graph:  g,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()

	a, _ := res.Signal("a")
	assert.Equal(t, StatusFailed, a.Status)

	d, _ := res.Signal("d")
	assert.Equal(t, StatusSucceeded, d.Status, "d has no dependency on a")

	for _, name := range []string{"b", "c"} {
		sr, ok := res.Signal(name)
		require.True(t, ok)
		assert.Equal(t, StatusSkipped, sr.Status, "signal %s", name)
		assert.Contains(t, sr.FailedDependencies, "a")
		assert.Zero(t, sr.Duration, "a skip consumes no time")
		assert.LessOrEqual(t, a.CompletedAt, sr.StartedAt,
			"skip decision happens after the failure")
	}
}

// TestDAG_FailurePropagation_Cancel verifies CancelDependentsOnFailure
// classifies dependents as cancelled with the joined trigger names.
func TestDAG_FailurePropagation_Cancel(t *testing.T) {
	g, err := graph.NewBuilder().
		Add("a").Add("b").Add("c").
		Dependency("c", "a").
		Dependency("c", "b").
		Build()
	require.NoError(t, err)

	signals := []Signal{
		failSignal("a", 10*time.Millisecond, errors.New("boom")),
		failSignal("b", 15*time.Millisecond, errors.New("boom")),
		sleepSignal("c", 10*time.Millisecond),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:                      ModeDependencyAware,
		Policy:                    BestEffort(),
		CancelDependentsOnFailure: true,
		Graph:                     g,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	c, ok := coord.Result().Signal("c")
	require.True(t, ok)

	assert.Equal(t, StatusCancelled, c.Status)
	assert.Equal(t, "dependency_failed", c.Reason.String())
	assert.Equal(t, "a,b", c.CancelledBy, "both failed dependencies joined")
	assert.ElementsMatch(t, []string{"a", "b"}, c.FailedDependencies)
}

// TestDAG_SkipCascade verifies skips propagate transitively down a chain.
func TestDAG_SkipCascade(t *testing.T) {
	g, err := graph.NewBuilder().
		Add("a").Add("b").Add("c").Add("d").
		Dependency("b", "a").
		Dependency("c", "b").
		Dependency("d", "c").
		Build()
	require.NoError(t, err)

	signals := []Signal{
		failSignal("a", 5*time.Millisecond, errors.New("boom")),
		sleepSignal("b", 5*time.Millisecond),
		sleepSignal("c", 5*time.Millisecond),
		sleepSignal("d", 5*time.Millisecond),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:   ModeDependencyAware,
		Policy: BestEffort(),
		Graph:  g,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()

	b, _ := res.Signal("b")
	assert.Equal(t, StatusSkipped, b.Status)
	assert.Equal(t, []string{"a"}, b.FailedDependencies)

	c, _ := res.Signal("c")
	assert.Equal(t, StatusSkipped, c.Status)
	assert.Equal(t, []string{"b"}, c.FailedDependencies,
		"the cascade attributes the immediate dependency")

	d, _ := res.Signal("d")
	assert.Equal(t, StatusSkipped, d.Status)
	assert.Equal(t, []string{"c"}, d.FailedDependencies,
		"a skipped dependency blocks its own dependents")
}

// TestDAG_UnresolvedGraphName verifies construction rejects a graph node
// with no registered signal.
func TestDAG_UnresolvedGraphName(t *testing.T) {
	g, err := graph.NewBuilder().Add("registered").Add("ghost").Build()
	require.NoError(t, err)

	_, err = NewCoordinator([]Signal{sleepSignal("registered", time.Millisecond)}, Options{
		Mode:  ModeDependencyAware,
		Graph: g,
	})
	assert.ErrorIs(t, err, ErrUnresolvedDependency)
}

// TestDAG_ResultsInGraphOrder verifies the result slice follows the
// topological order of the graph.
func TestDAG_ResultsInGraphOrder(t *testing.T) {
	g, err := graph.NewBuilder().
		Add("z").Add("a").
		Dependency("z", "a").
		Build()
	require.NoError(t, err)

	signals := []Signal{
		sleepSignal("z", 5*time.Millisecond),
		sleepSignal("a", 5*time.Millisecond),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:   ModeDependencyAware,
		Policy: BestEffort(),
		Graph:  g,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()
	require.Len(t, res.Signals, 2)
	assert.Equal(t, "a", res.Signals[0].Name)
	assert.Equal(t, "z", res.Signals[1].Name)
}
