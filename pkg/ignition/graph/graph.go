// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds the immutable dependency DAG over signal names.
//
// The builder records signals and dependency edges, then Build runs a
// Kahn topological sort. Cycles are rejected at build time with the exact
// cycle path in the error message. The built Graph answers dependency and
// dependent queries from pre-computed maps.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyName is returned when a signal name is empty.
	ErrEmptyName = errors.New("signal name must not be empty")

	// ErrUnknownSignal is returned when a dependency references a signal
	// that was never registered.
	ErrUnknownSignal = errors.New("unknown signal")

	// ErrSelfDependency is returned when a signal depends on itself.
	ErrSelfDependency = errors.New("signal cannot depend on itself")
)

// CycleError reports a dependency cycle found at build time.
type CycleError struct {
	// Path is the cycle, first node repeated at the end.
	Path []string
}

// Error formats the cycle as "s1 -> s2 -> s3 -> s1".
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// Builder accumulates signals and dependency edges for a Graph.
//
// Thread Safety: NOT safe for concurrent use; build the graph on one
// goroutine, then share the immutable Graph freely.
type Builder struct {
	names []string
	index map[string]int

	// deps[i] lists the indexes signal i depends on, in declaration order.
	deps map[int][]int

	err error
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		index: make(map[string]int),
		deps:  make(map[int][]int),
	}
}

// Add registers a signal name. Adding the same name twice is a no-op.
func (b *Builder) Add(name string) *Builder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = ErrEmptyName
		return b
	}
	if _, ok := b.index[name]; ok {
		return b
	}
	b.index[name] = len(b.names)
	b.names = append(b.names, name)
	return b
}

// Dependency declares that name depends on dependsOn: dependsOn must
// complete before name starts. Both signals must already be registered;
// referencing an unknown name fails the build.
func (b *Builder) Dependency(name, dependsOn string) *Builder {
	if b.err != nil {
		return b
	}
	from, ok := b.index[name]
	if !ok {
		b.err = fmt.Errorf("%w: %q", ErrUnknownSignal, name)
		return b
	}
	to, ok := b.index[dependsOn]
	if !ok {
		b.err = fmt.Errorf("%w: %q (dependency of %q)", ErrUnknownSignal, dependsOn, name)
		return b
	}
	if from == to {
		b.err = fmt.Errorf("%w: %q", ErrSelfDependency, name)
		return b
	}
	for _, d := range b.deps[from] {
		if d == to {
			return b // duplicate edge
		}
	}
	b.deps[from] = append(b.deps[from], to)
	return b
}

// Build performs the topological sort and freezes the graph.
//
// Outputs:
//   - *Graph: The immutable graph. Nil on error.
//   - error: Non-nil on empty names, unresolved dependencies, or cycles.
//     A cycle surfaces as *CycleError carrying the exact path.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}

	n := len(b.names)
	dependents := make(map[int][]int, n)
	inDegree := make([]int, n)
	for from, tos := range b.deps {
		inDegree[from] = len(tos)
		for _, to := range tos {
			dependents[to] = append(dependents[to], from)
		}
	}

	// Kahn's algorithm. The queue is seeded and drained in registration
	// order so the sort is deterministic.
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	sorted := make([]int, 0, n)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		sorted = append(sorted, cur)
		for _, dep := range dependents[cur] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(sorted) != n {
		return nil, b.findCycle()
	}

	g := &Graph{
		order:      make([]string, n),
		index:      make(map[string]int, n),
		deps:       make(map[string][]string, n),
		dependents: make(map[string][]string, n),
	}
	for pos, i := range sorted {
		g.order[pos] = b.names[i]
	}
	for i, name := range b.names {
		g.index[name] = i
		for _, to := range b.deps[i] {
			g.deps[name] = append(g.deps[name], b.names[to])
		}
		for _, from := range dependents[i] {
			g.dependents[name] = append(g.dependents[name], b.names[from])
		}
	}
	return g, nil
}

// findCycle locates one cycle via DFS over the recorded edges. Only called
// when the topological sort came up short, so a cycle must exist.
func (b *Builder) findCycle() *CycleError {
	const (
		white = 0 // unvisited
		grey  = 1 // on stack
		black = 2 // done
	)
	color := make([]int, len(b.names))
	var stack []int

	var visit func(i int) []int
	visit = func(i int) []int {
		color[i] = grey
		stack = append(stack, i)
		for _, to := range b.deps[i] {
			switch color[to] {
			case grey:
				// Back edge: slice the stack from the first occurrence.
				for pos, v := range stack {
					if v == to {
						cycle := append([]int{}, stack[pos:]...)
						return append(cycle, to)
					}
				}
			case white:
				if cycle := visit(to); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return nil
	}

	for i := range b.names {
		if color[i] != white {
			continue
		}
		if cycle := visit(i); cycle != nil {
			path := make([]string, len(cycle))
			for pos, v := range cycle {
				path[pos] = b.names[v]
			}
			return &CycleError{Path: path}
		}
		stack = stack[:0]
	}
	// Unreachable when Build detected a shortfall.
	return &CycleError{}
}

// Graph is the immutable dependency DAG. All queries are O(1) map lookups
// backed by structures computed at build time.
//
// Thread Safety: Safe for concurrent use; never mutated after Build.
type Graph struct {
	order      []string
	index      map[string]int
	deps       map[string][]string
	dependents map[string][]string
}

// Signals returns the signal names in topological order.
func (g *Graph) Signals() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Dependencies returns the names the given signal depends on.
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Dependents returns the names that depend on the given signal.
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.dependents[name]...)
}

// Roots returns the signals with no dependencies, in topological order.
func (g *Graph) Roots() []string {
	var out []string
	for _, name := range g.order {
		if len(g.deps[name]) == 0 {
			out = append(out, name)
		}
	}
	return out
}

// Leaves returns the signals nothing depends on, in topological order.
func (g *Graph) Leaves() []string {
	var out []string
	for _, name := range g.order {
		if len(g.dependents[name]) == 0 {
			out = append(out, name)
		}
	}
	return out
}

// Contains reports whether the graph knows the given signal name.
func (g *Graph) Contains(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Len returns the number of signals in the graph.
func (g *Graph) Len() int { return len(g.order) }
