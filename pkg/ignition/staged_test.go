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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStaged_OrderingAcrossStages verifies a later stage starts only after
// the earlier one completes under non-promotion policies.
func TestStaged_OrderingAcrossStages(t *testing.T) {
	signals := []Signal{
		sleepSignal("infra1", 30*time.Millisecond, WithStage(0)),
		sleepSignal("infra2", 50*time.Millisecond, WithStage(0)),
		sleepSignal("app", 10*time.Millisecond, WithStage(1)),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:        ModeStaged,
		StagePolicy: StageAllMustSucceed,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()

	require.Len(t, res.Stages, 2)
	assert.True(t, res.Stages[0].Completed)
	assert.True(t, res.Stages[1].Completed)

	app, _ := res.Signal("app")
	for _, name := range []string{"infra1", "infra2"} {
		sr, _ := res.Signal(name)
		assert.LessOrEqual(t, sr.CompletedAt, app.StartedAt,
			"%s completes before the next stage starts", name)
	}
	assert.Equal(t, StateCompleted, coord.State())
}

// TestStaged_AllMustSucceedHalts verifies a failed stage skips the
// remaining stages with non-completed stage records.
func TestStaged_AllMustSucceedHalts(t *testing.T) {
	signals := []Signal{
		failSignal("bad", 10*time.Millisecond, errors.New("boom"), WithStage(0)),
		sleepSignal("later1", 10*time.Millisecond, WithStage(1)),
		sleepSignal("later2", 10*time.Millisecond, WithStage(2)),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:        ModeStaged,
		StagePolicy: StageAllMustSucceed,
	})
	require.NoError(t, err)

	runErr := coord.Run(context.Background())
	require.Error(t, runErr, "the halting failure surfaces to the caller")

	res := coord.Result()
	require.Len(t, res.Stages, 3)
	assert.True(t, res.Stages[0].Completed)

	for _, st := range res.Stages[1:] {
		assert.False(t, st.Completed, "stage %d never ran", st.Stage)
		assert.Zero(t, st.Duration)
	}
	for _, name := range []string{"later1", "later2"} {
		sr, ok := res.Signal(name)
		require.True(t, ok)
		assert.Equal(t, StatusSkipped, sr.Status)
		assert.Zero(t, sr.StartedAt, "stage-level skips carry zero offsets")
		assert.Zero(t, sr.Duration)
	}
	assert.Equal(t, StateFailed, coord.State())
}

// TestStaged_BestEffortContinues verifies best-effort stages run to the end
// despite failures.
func TestStaged_BestEffortContinues(t *testing.T) {
	signals := []Signal{
		failSignal("bad", 5*time.Millisecond, errors.New("boom"), WithStage(0)),
		sleepSignal("next", 5*time.Millisecond, WithStage(1)),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:        ModeStaged,
		StagePolicy: StageBestEffort,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()), "best effort surfaces no policy error")
	res := coord.Result()

	next, _ := res.Signal("next")
	assert.Equal(t, StatusSucceeded, next.Status)
	assert.Equal(t, StateFailed, coord.State(), "the failure still decides the final state")
}

// TestStaged_FailFastToleratesTimeouts verifies the fail-fast stage policy
// halts on failures only, not per-signal timeouts.
func TestStaged_FailFastToleratesTimeouts(t *testing.T) {
	signals := []Signal{
		sleepSignal("slow", 80*time.Millisecond, WithStage(0), WithTimeout(20*time.Millisecond)),
		sleepSignal("next", 5*time.Millisecond, WithStage(1)),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:                  ModeStaged,
		StagePolicy:           StageFailFast,
		CancelSignalOnTimeout: true,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()

	slow, _ := res.Signal("slow")
	assert.Equal(t, StatusTimedOut, slow.Status)
	next, _ := res.Signal("next")
	assert.Equal(t, StatusSucceeded, next.Status, "fail-fast tolerates timeouts")
}

// TestStaged_EarlyPromotion verifies the next stage starts once the
// threshold fraction has succeeded, with the residual signals finishing in
// the background.
func TestStaged_EarlyPromotion(t *testing.T) {
	signals := make([]Signal, 0, 11)
	for i := 0; i < 8; i++ {
		signals = append(signals, sleepSignal(fmt.Sprintf("fast%d", i), 20*time.Millisecond, WithStage(0)))
	}
	signals = append(signals,
		sleepSignal("straggler1", 150*time.Millisecond, WithStage(0)),
		sleepSignal("straggler2", 150*time.Millisecond, WithStage(0)),
		sleepSignal("app", 10*time.Millisecond, WithStage(1)),
	)
	coord, err := NewCoordinator(signals, Options{
		Mode:                    ModeStaged,
		StagePolicy:             StageEarlyPromotion,
		EarlyPromotionThreshold: 0.8,
	})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, coord.Run(context.Background()))
	elapsed := time.Since(start)

	res := coord.Result()
	require.Len(t, res.Stages, 2)
	assert.True(t, res.Stages[0].Promoted)

	app, _ := res.Signal("app")
	assert.Equal(t, StatusSucceeded, app.Status)
	s1, _ := res.Signal("straggler1")
	assert.Equal(t, StatusSucceeded, s1.Status, "background residual still records its outcome")
	assert.Less(t, app.StartedAt, s1.CompletedAt, "stage 1 overlaps the stragglers")

	var total time.Duration
	for _, sr := range res.Signals {
		total += sr.Duration
	}
	assert.Less(t, elapsed, total, "promotion beats the serial sum")
	assert.Equal(t, 10, res.Stages[0].Succeeded)
}

// TestStaged_EarlyPromotionImmediate verifies the immediate threshold
// promotes a stage before any of its signals complete.
func TestStaged_EarlyPromotionImmediate(t *testing.T) {
	signals := []Signal{
		sleepSignal("infra", 60*time.Millisecond, WithStage(0)),
		sleepSignal("app", 5*time.Millisecond, WithStage(1)),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:                    ModeStaged,
		StagePolicy:             StageEarlyPromotion,
		EarlyPromotionThreshold: EarlyPromotionImmediate,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()

	require.Len(t, res.Stages, 2)
	assert.True(t, res.Stages[0].Promoted)

	infra, _ := res.Signal("infra")
	app, _ := res.Signal("app")
	assert.Equal(t, StatusSucceeded, infra.Status)
	assert.Equal(t, StatusSucceeded, app.Status)
	assert.Less(t, app.StartedAt, infra.CompletedAt, "stage 1 starts while stage 0 still runs")
	assert.Equal(t, 1, res.Stages[0].Succeeded, "background outcome merged into the stage record")
}

// TestStaged_EarlyPromotionNotReached verifies a stage that cannot reach
// the threshold halts the run.
func TestStaged_EarlyPromotionNotReached(t *testing.T) {
	signals := []Signal{
		failSignal("bad1", 5*time.Millisecond, errors.New("boom"), WithStage(0)),
		failSignal("bad2", 5*time.Millisecond, errors.New("boom"), WithStage(0)),
		sleepSignal("ok", 5*time.Millisecond, WithStage(0)),
		sleepSignal("app", 5*time.Millisecond, WithStage(1)),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:                    ModeStaged,
		StagePolicy:             StageEarlyPromotion,
		EarlyPromotionThreshold: 0.8,
	})
	require.NoError(t, err)

	runErr := coord.Run(context.Background())
	require.Error(t, runErr)

	res := coord.Result()
	assert.False(t, res.Stages[0].Promoted)
	app, _ := res.Signal("app")
	assert.Equal(t, StatusSkipped, app.Status)
}

// TestStaged_HardGlobalTimeoutHaltsStages verifies the deadline cuts off
// the in-flight stage and skips the rest.
func TestStaged_HardGlobalTimeoutHaltsStages(t *testing.T) {
	signals := []Signal{
		blockSignal("stuck", WithStage(0)),
		sleepSignal("never", 5*time.Millisecond, WithStage(1)),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:                  ModeStaged,
		StagePolicy:           StageBestEffort,
		GlobalTimeout:         40 * time.Millisecond,
		CancelOnGlobalTimeout: true,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()

	assert.True(t, res.TimedOut)
	require.Len(t, res.Stages, 2)
	assert.False(t, res.Stages[0].Completed, "the in-flight stage was cut off")
	assert.False(t, res.Stages[1].Completed)

	never, _ := res.Signal("never")
	assert.Equal(t, StatusSkipped, never.Status)
	assert.Equal(t, StateTimedOut, coord.State())
}

// TestStaged_SingleStage verifies a run where every signal shares one stage
// behaves like its interior mode.
func TestStaged_SingleStage(t *testing.T) {
	signals := []Signal{
		sleepSignal("a", 10*time.Millisecond),
		sleepSignal("b", 10*time.Millisecond),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:        ModeStaged,
		StagePolicy: StageAllMustSucceed,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()
	require.Len(t, res.Stages, 1)
	assert.True(t, res.Stages[0].Completed)
	assert.True(t, res.Success())
}

// TestStaged_SequentialInterior verifies StageMode drives execution inside
// a stage.
func TestStaged_SequentialInterior(t *testing.T) {
	signals := []Signal{
		sleepSignal("s1", 20*time.Millisecond, WithStage(0)),
		sleepSignal("s2", 20*time.Millisecond, WithStage(0)),
	}
	coord, err := NewCoordinator(signals, Options{
		Mode:        ModeStaged,
		StageMode:   ModeSequential,
		StagePolicy: StageAllMustSucceed,
	})
	require.NoError(t, err)

	require.NoError(t, coord.Run(context.Background()))
	res := coord.Result()

	s1, _ := res.Signal("s1")
	s2, _ := res.Signal("s2")
	assert.LessOrEqual(t, s1.CompletedAt, s2.StartedAt, "sequential interior serializes the stage")
}
