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

import "time"

// TimeoutStrategy decides the effective per-signal timeout and whether the
// signal's wait is cancelled when it expires.
//
// The strategy is consulted exactly once per signal execution. A zero
// returned duration disables the per-signal timeout entirely.
//
// Implementations must be deterministic and safe for concurrent use.
type TimeoutStrategy interface {
	// EffectiveTimeout returns the timeout to apply to sig and whether
	// expiry cancels the wait.
	EffectiveTimeout(sig Signal, opts Options) (time.Duration, bool)
}

// TimeoutStrategyFunc adapts a function to a TimeoutStrategy.
type TimeoutStrategyFunc func(sig Signal, opts Options) (time.Duration, bool)

func (f TimeoutStrategyFunc) EffectiveTimeout(sig Signal, opts Options) (time.Duration, bool) {
	return f(sig, opts)
}

type defaultTimeoutStrategy struct{}

func (defaultTimeoutStrategy) EffectiveTimeout(sig Signal, opts Options) (time.Duration, bool) {
	return sig.Timeout(), opts.CancelSignalOnTimeout
}

// DefaultTimeoutStrategy uses the signal's own timeout and the
// CancelSignalOnTimeout option.
func DefaultTimeoutStrategy() TimeoutStrategy { return defaultTimeoutStrategy{} }

// ScaledTimeoutStrategy multiplies every signal timeout by a constant
// factor. Useful for slow environments (CI, cold caches) without touching
// individual signals.
type ScaledTimeoutStrategy struct {
	// Factor scales each signal's own timeout. Must be > 0.
	Factor float64
}

func (s ScaledTimeoutStrategy) EffectiveTimeout(sig Signal, opts Options) (time.Duration, bool) {
	t := sig.Timeout()
	if t <= 0 || s.Factor <= 0 {
		return t, opts.CancelSignalOnTimeout
	}
	return time.Duration(float64(t) * s.Factor), opts.CancelSignalOnTimeout
}
