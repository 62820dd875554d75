// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ignition coordinates the asynchronous readiness work a process
// must finish before it is safe to serve traffic.
//
// A Signal is a named, cancellable unit of startup work. The Coordinator
// runs a fixed set of signals under one of four execution modes (parallel,
// sequential, dependency-aware, staged), enforcing a global timeout,
// per-signal timeouts, a continuation Policy, and hierarchical cancellation
// scopes, and produces one classified, timestamped result per signal.
//
// # Basic Usage
//
//	sigs := []ignition.Signal{
//	    ignition.NewSignal("database", waitForDB, ignition.WithTimeout(2*time.Second)),
//	    ignition.NewSignal("cache", waitForCache),
//	}
//	coord, err := ignition.NewCoordinator(sigs, ignition.Options{
//	    GlobalTimeout: 5 * time.Second,
//	    Policy:        ignition.BestEffort(),
//	})
//	if err != nil {
//	    return err
//	}
//	if err := coord.Run(ctx); err != nil {
//	    return err
//	}
//	result := coord.Result()
//
// Run is single-shot: the first call executes the signals, every later call
// returns the memoized outcome. State is readable at any time and moves
// monotonically through NotStarted, Running and exactly one terminal state.
//
// # Thread Safety
//
// Coordinator, Signal results, and the built-in policies and strategies are
// safe for concurrent use. Signals themselves must tolerate their Wait being
// raced against timers and cancellation.
package ignition
