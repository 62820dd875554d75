// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuilder_TopologicalOrder verifies dependencies sort before their
// dependents and ties break in registration order.
func TestBuilder_TopologicalOrder(t *testing.T) {
	g, err := NewBuilder().
		Add("api").
		Add("db").
		Add("cache").
		Add("migrations").
		Dependency("api", "db").
		Dependency("api", "cache").
		Dependency("migrations", "db").
		Build()
	require.NoError(t, err)

	order := g.Signals()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}

	assert.Less(t, pos["db"], pos["api"])
	assert.Less(t, pos["cache"], pos["api"])
	assert.Less(t, pos["db"], pos["migrations"])
	// db registered before cache; both are roots.
	assert.Less(t, pos["db"], pos["cache"])
}

// TestBuilder_CycleDetected verifies a cycle fails the build with the
// exact path in the error.
func TestBuilder_CycleDetected(t *testing.T) {
	_, err := NewBuilder().
		Add("s1").Add("s2").Add("s3").
		Dependency("s1", "s3").
		Dependency("s2", "s1").
		Dependency("s3", "s2").
		Build()
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, err.Error(), "dependency cycle detected")
	assert.Contains(t, err.Error(), " -> ")
	// The path closes on its starting node.
	require.GreaterOrEqual(t, len(cycleErr.Path), 2)
	assert.Equal(t, cycleErr.Path[0], cycleErr.Path[len(cycleErr.Path)-1])
}

// TestBuilder_SelfDependency verifies a self-edge is rejected.
func TestBuilder_SelfDependency(t *testing.T) {
	_, err := NewBuilder().Add("a").Dependency("a", "a").Build()
	assert.True(t, errors.Is(err, ErrSelfDependency))
}

// TestBuilder_UnknownSignal verifies edges may only reference registered
// signals.
func TestBuilder_UnknownSignal(t *testing.T) {
	_, err := NewBuilder().Add("a").Dependency("a", "ghost").Build()
	assert.True(t, errors.Is(err, ErrUnknownSignal))
}

// TestBuilder_EmptyName verifies blank names are rejected.
func TestBuilder_EmptyName(t *testing.T) {
	_, err := NewBuilder().Add("").Build()
	assert.True(t, errors.Is(err, ErrEmptyName))
}

// TestBuilder_DuplicateAdd verifies re-adding a signal is idempotent.
func TestBuilder_DuplicateAdd(t *testing.T) {
	g, err := NewBuilder().Add("a").Add("a").Add("b").Build()
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
}

// TestGraph_Queries verifies the read-side accessors.
func TestGraph_Queries(t *testing.T) {
	g, err := NewBuilder().
		Add("db").Add("cache").Add("api").Add("worker").
		Dependency("api", "db").
		Dependency("api", "cache").
		Dependency("worker", "api").
		Build()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"db", "cache"}, g.Dependencies("api"))
	assert.ElementsMatch(t, []string{"api"}, g.Dependents("db"))
	assert.ElementsMatch(t, []string{"db", "cache"}, g.Roots())
	assert.ElementsMatch(t, []string{"worker"}, g.Leaves())
	assert.True(t, g.Contains("worker"))
	assert.False(t, g.Contains("ghost"))
	assert.Equal(t, 4, g.Len())
}

// TestGraph_NoEdges verifies a graph of independent signals.
func TestGraph_NoEdges(t *testing.T) {
	g, err := NewBuilder().Add("a").Add("b").Add("c").Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, g.Signals())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, g.Roots())
	assert.Empty(t, g.Dependencies("a"))
}
