// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recording derives serializable artifacts from a completed
// ignition run: a Recording (schema v1.0 JSON snapshot) and a Timeline
// (Gantt-shaped view with concurrency lanes, stage bands, and boundary
// markers). Both are deterministic for a given result, modulo the
// wall-clock and run-identity fields.
package recording

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/ignition/pkg/ignition"
	"github.com/AleutianAI/ignition/pkg/ignition/scope"
)

// SchemaVersion is the wire schema of Recording. Readers ignore unknown
// fields, so additive changes stay on 1.0.
const SchemaVersion = "1.0"

// Config is the snapshot of the options that shaped a run.
type Config struct {
	Mode                      string  `json:"mode"`
	Policy                    string  `json:"policy,omitempty"`
	GlobalTimeoutMs           float64 `json:"globalTimeoutMs"`
	CancelOnGlobalTimeout     bool    `json:"cancelOnGlobalTimeout"`
	CancelSignalOnTimeout     bool    `json:"cancelSignalOnTimeout"`
	CancelDependentsOnFailure bool    `json:"cancelDependentsOnFailure"`
	MaxParallel               int     `json:"maxParallel,omitempty"`
	StagePolicy               string  `json:"stagePolicy,omitempty"`
	StageMode                 string  `json:"stageMode,omitempty"`
	EarlyPromotionThreshold   float64 `json:"earlyPromotionThreshold,omitempty"`
}

// SignalRecord is one signal's outcome. Offsets are milliseconds from
// run start.
type SignalRecord struct {
	Name               string   `json:"name"`
	Status             string   `json:"status"`
	StartMs            float64  `json:"startMs"`
	EndMs              float64  `json:"endMs"`
	DurationMs         float64  `json:"durationMs"`
	Stage              *int     `json:"stage,omitempty"`
	Dependencies       []string `json:"dependencies,omitempty"`
	FailedDependencies []string `json:"failedDependencies,omitempty"`
	Reason             string   `json:"reason,omitempty"`
	CancelledBy        string   `json:"cancelledBy,omitempty"`
	ErrorType          string   `json:"errorType,omitempty"`
	ErrorMessage       string   `json:"errorMessage,omitempty"`
	TimeoutMs          float64  `json:"timeoutMs,omitempty"`
}

// StageRecord is one stage's aggregate outcome.
type StageRecord struct {
	Stage      int     `json:"stage"`
	DurationMs float64 `json:"durationMs"`
	Succeeded  int     `json:"succeeded"`
	Failed     int     `json:"failed"`
	TimedOut   int     `json:"timedOut"`
	Completed  bool    `json:"completed"`
	Promoted   bool    `json:"promoted,omitempty"`
}

// Summary aggregates the run for quick inspection without walking the
// per-signal records.
type Summary struct {
	Total             int     `json:"total"`
	Succeeded         int     `json:"succeeded"`
	Failed            int     `json:"failed"`
	TimedOut          int     `json:"timedOut"`
	Skipped           int     `json:"skipped"`
	Cancelled         int     `json:"cancelled"`
	MaxConcurrency    int     `json:"maxConcurrency"`
	SlowestSignal     string  `json:"slowestSignal,omitempty"`
	FastestSignal     string  `json:"fastestSignal,omitempty"`
	AverageDurationMs float64 `json:"averageDurationMs"`
}

// Recording is the schema v1.0 artifact of a completed run.
type Recording struct {
	SchemaVersion   string         `json:"schemaVersion"`
	RunID           string         `json:"runId,omitempty"`
	RecordedAt      time.Time      `json:"recordedAt,omitempty"`
	TotalDurationMs float64        `json:"totalDurationMs"`
	TimedOut        bool           `json:"timedOut"`
	Config          Config         `json:"config"`
	Signals         []SignalRecord `json:"signals"`
	Stages          []StageRecord  `json:"stages,omitempty"`
	Summary         Summary        `json:"summary"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FromResult builds a Recording from a completed run. The options must be
// the ones the coordinator ran with; they supply the configuration
// snapshot and the dependency names.
func FromResult(res *ignition.Result, opts ignition.Options) *Recording {
	rec := &Recording{
		SchemaVersion:   SchemaVersion,
		RunID:           uuid.NewString(),
		RecordedAt:      time.Now().UTC(),
		TotalDurationMs: ms(res.Duration),
		TimedOut:        res.TimedOut,
		Config: Config{
			Mode:                      opts.Mode.String(),
			GlobalTimeoutMs:           ms(opts.GlobalTimeout),
			CancelOnGlobalTimeout:     opts.CancelOnGlobalTimeout,
			CancelSignalOnTimeout:     opts.CancelSignalOnTimeout,
			CancelDependentsOnFailure: opts.CancelDependentsOnFailure,
			MaxParallel:               opts.MaxParallel,
			EarlyPromotionThreshold:   opts.EarlyPromotionThreshold,
		},
	}
	if opts.Policy != nil {
		rec.Config.Policy = opts.Policy.Name()
	}
	if opts.Mode == ignition.ModeStaged {
		rec.Config.StagePolicy = opts.StagePolicy.String()
		rec.Config.StageMode = opts.StageMode.String()
	}

	for _, s := range res.Signals {
		sr := SignalRecord{
			Name:               s.Name,
			Status:             s.Status.String(),
			StartMs:            ms(s.StartedAt),
			EndMs:              ms(s.CompletedAt),
			DurationMs:         ms(s.Duration),
			FailedDependencies: s.FailedDependencies,
			CancelledBy:        s.CancelledBy,
			TimeoutMs:          ms(s.Timeout),
		}
		if s.Stage != 0 {
			stage := s.Stage
			sr.Stage = &stage
		}
		if s.Reason != scope.ReasonNone {
			sr.Reason = s.Reason.String()
		}
		if opts.Graph != nil {
			sr.Dependencies = opts.Graph.Dependencies(s.Name)
		}
		if s.Err != nil {
			sr.ErrorType = fmt.Sprintf("%T", s.Err)
			sr.ErrorMessage = s.Err.Error()
		}
		rec.Signals = append(rec.Signals, sr)
	}

	for _, st := range res.Stages {
		rec.Stages = append(rec.Stages, StageRecord{
			Stage:      st.Stage,
			DurationMs: ms(st.Duration),
			Succeeded:  st.Succeeded,
			Failed:     st.Failed,
			TimedOut:   st.TimedOut,
			Completed:  st.Completed,
			Promoted:   st.Promoted,
		})
	}

	rec.Summary = summarize(res)
	return rec
}

// summarize computes totals by status, max observed concurrency, and the
// duration extremes over the signals that actually executed.
func summarize(res *ignition.Result) Summary {
	s := Summary{Total: len(res.Signals)}

	var (
		executed    int
		totalDur    time.Duration
		intervals   []interval
		slowest     time.Duration
		fastest     time.Duration
		haveExtreme bool
	)
	for _, sig := range res.Signals {
		switch sig.Status {
		case ignition.StatusSucceeded:
			s.Succeeded++
		case ignition.StatusFailed:
			s.Failed++
		case ignition.StatusTimedOut:
			s.TimedOut++
		case ignition.StatusSkipped:
			s.Skipped++
		case ignition.StatusCancelled:
			s.Cancelled++
		}
		if sig.Status == ignition.StatusSkipped {
			continue
		}
		executed++
		totalDur += sig.Duration
		intervals = append(intervals, interval{start: sig.StartedAt, end: sig.CompletedAt})
		if !haveExtreme || sig.Duration > slowest {
			slowest = sig.Duration
			s.SlowestSignal = sig.Name
		}
		if !haveExtreme || sig.Duration < fastest {
			fastest = sig.Duration
			s.FastestSignal = sig.Name
		}
		haveExtreme = true
	}
	if executed > 0 {
		s.AverageDurationMs = ms(totalDur) / float64(executed)
	}
	s.MaxConcurrency = maxConcurrency(intervals)
	return s
}

// JSON serializes the recording as indented schema v1.0 JSON.
func (r *Recording) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Parse reads a serialized recording. Unknown fields are ignored; the
// required fields are validated.
func Parse(data []byte) (*Recording, error) {
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse recording: %w", err)
	}
	if rec.SchemaVersion == "" {
		return nil, fmt.Errorf("parse recording: missing schemaVersion")
	}
	if rec.Signals == nil {
		return nil, fmt.Errorf("parse recording: missing signals")
	}
	return &rec, nil
}
