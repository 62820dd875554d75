// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recording

import (
	"sort"
	"time"

	"github.com/AleutianAI/ignition/pkg/ignition"
)

// Event is one signal's bar on the timeline. Group is the lane index
// assigned by the concurrency sweep; overlapping events never share a
// lane.
type Event struct {
	Name    string  `json:"name"`
	Status  string  `json:"status"`
	StartMs float64 `json:"startMs"`
	EndMs   float64 `json:"endMs"`
	Group   int     `json:"group"`
	Stage   *int    `json:"stage,omitempty"`
}

// StageBand marks the wall-time span a stage occupied.
type StageBand struct {
	Stage   int     `json:"stage"`
	StartMs float64 `json:"startMs"`
	EndMs   float64 `json:"endMs"`
}

// Marker is a vertical boundary line: the configured global timeout and
// the run completion.
type Marker struct {
	Label string  `json:"label"`
	AtMs  float64 `json:"atMs"`
}

// Timeline is a Gantt-shaped view over a run result.
type Timeline struct {
	Events         []Event     `json:"events"`
	Bands          []StageBand `json:"bands,omitempty"`
	Markers        []Marker    `json:"markers"`
	MaxConcurrency int         `json:"maxConcurrency"`
	TotalMs        float64     `json:"totalMs"`
}

type interval struct {
	start, end time.Duration
}

// maxConcurrency sweeps the sorted (time, ±1) points and returns the peak
// of the running sum. Ends sort before starts at equal times so abutting
// intervals do not overlap.
func maxConcurrency(intervals []interval) int {
	type point struct {
		at    time.Duration
		delta int
	}
	points := make([]point, 0, 2*len(intervals))
	for _, iv := range intervals {
		points = append(points, point{at: iv.start, delta: +1}, point{at: iv.end, delta: -1})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].at != points[j].at {
			return points[i].at < points[j].at
		}
		return points[i].delta < points[j].delta
	})
	running, peak := 0, 0
	for _, p := range points {
		running += p.delta
		if running > peak {
			peak = running
		}
	}
	return peak
}

// NewTimeline derives the timeline view from a completed run. Skipped
// signals that never started are excluded from the event list.
func NewTimeline(res *ignition.Result, opts ignition.Options) *Timeline {
	tl := &Timeline{TotalMs: ms(res.Duration)}

	var intervals []interval
	laneEnds := []time.Duration{} // per-lane latest end time

	sorted := make([]ignition.SignalResult, 0, len(res.Signals))
	for _, s := range res.Signals {
		if s.Status == ignition.StatusSkipped {
			continue
		}
		sorted = append(sorted, s)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt < sorted[j].StartedAt
	})

	for _, s := range sorted {
		lane := -1
		for i, end := range laneEnds {
			if end <= s.StartedAt {
				lane = i
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, 0)
		}
		laneEnds[lane] = s.CompletedAt

		ev := Event{
			Name:    s.Name,
			Status:  s.Status.String(),
			StartMs: ms(s.StartedAt),
			EndMs:   ms(s.CompletedAt),
			Group:   lane,
		}
		if s.Stage != 0 {
			stage := s.Stage
			ev.Stage = &stage
		}
		tl.Events = append(tl.Events, ev)
		intervals = append(intervals, interval{start: s.StartedAt, end: s.CompletedAt})
	}
	tl.MaxConcurrency = maxConcurrency(intervals)

	var cursor time.Duration
	for _, st := range res.Stages {
		if st.Duration == 0 && !st.Completed {
			continue
		}
		tl.Bands = append(tl.Bands, StageBand{
			Stage:   st.Stage,
			StartMs: ms(cursor),
			EndMs:   ms(cursor + st.Duration),
		})
		cursor += st.Duration
	}

	if opts.GlobalTimeout > 0 {
		tl.Markers = append(tl.Markers, Marker{Label: "global_timeout", AtMs: ms(opts.GlobalTimeout)})
	}
	tl.Markers = append(tl.Markers, Marker{Label: "completed", AtMs: ms(res.Duration)})
	return tl
}
