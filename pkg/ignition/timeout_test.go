// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ignition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultTimeoutStrategy verifies the default passes through the
// signal's own timeout and the cancel flag.
func TestDefaultTimeoutStrategy(t *testing.T) {
	sig := sleepSignal("s", time.Millisecond, WithTimeout(2*time.Second))

	d, cancelOn := DefaultTimeoutStrategy().EffectiveTimeout(sig, Options{CancelSignalOnTimeout: true})
	assert.Equal(t, 2*time.Second, d)
	assert.True(t, cancelOn)

	d, cancelOn = DefaultTimeoutStrategy().EffectiveTimeout(sig, Options{})
	assert.Equal(t, 2*time.Second, d)
	assert.False(t, cancelOn)
}

// TestScaledTimeoutStrategy verifies scaling and the zero-timeout
// passthrough.
func TestScaledTimeoutStrategy(t *testing.T) {
	s := ScaledTimeoutStrategy{Factor: 2.5}

	withTimeout := sleepSignal("a", time.Millisecond, WithTimeout(100*time.Millisecond))
	d, _ := s.EffectiveTimeout(withTimeout, Options{})
	assert.Equal(t, 250*time.Millisecond, d)

	noTimeout := sleepSignal("b", time.Millisecond)
	d, _ = s.EffectiveTimeout(noTimeout, Options{})
	assert.Zero(t, d, "no timeout stays disabled regardless of factor")
}

// TestStrategy_ZeroDisablesSignalTimeout verifies a strategy returning zero
// disables the per-signal timer even when the signal declares one.
func TestStrategy_ZeroDisablesSignalTimeout(t *testing.T) {
	sig := sleepSignal("slow", 60*time.Millisecond, WithTimeout(10*time.Millisecond))
	coord, err := NewCoordinator([]Signal{sig}, Options{
		Policy: BestEffort(),
		TimeoutStrategy: TimeoutStrategyFunc(func(Signal, Options) (time.Duration, bool) {
			return 0, false
		}),
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res, _ := coord.Result().Signal("slow")
	assert.Equal(t, StatusSucceeded, res.Status, "the declared timeout was overridden away")
}

// TestStrategy_OverridesSignalTimeout verifies the strategy output wins
// over the signal's declaration.
func TestStrategy_OverridesSignalTimeout(t *testing.T) {
	sig := sleepSignal("slow", 100*time.Millisecond, WithTimeout(time.Second))
	coord, err := NewCoordinator([]Signal{sig}, Options{
		Policy: BestEffort(),
		TimeoutStrategy: TimeoutStrategyFunc(func(Signal, Options) (time.Duration, bool) {
			return 20 * time.Millisecond, true
		}),
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res, _ := coord.Result().Signal("slow")
	assert.Equal(t, StatusTimedOut, res.Status)
	assert.Equal(t, 20*time.Millisecond, res.Timeout, "the effective timeout is recorded")
}
