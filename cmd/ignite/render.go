// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/ignition/pkg/ignition/recording"
)

// Terminal palette for outcome rendering.
var (
	styleSucceeded = lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	styleTimedOut  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	styleMuted     = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "succeeded":
		return styleSucceeded
	case "failed":
		return styleFailed
	case "timed_out":
		return styleTimedOut
	default:
		return styleMuted
	}
}

// timelineWidth is the bar width in characters.
const timelineWidth = 60

// RenderTimeline draws the run as a Gantt-style block per signal: one row
// each, bar position proportional to start/end offsets.
func RenderTimeline(tl *recording.Timeline) string {
	var sb strings.Builder
	sb.WriteString(styleTitle.Render("Ignition Timeline"))
	sb.WriteString(fmt.Sprintf("  (total %.1fms, peak concurrency %d)\n\n", tl.TotalMs, tl.MaxConcurrency))

	nameWidth := 0
	for _, ev := range tl.Events {
		if len(ev.Name) > nameWidth {
			nameWidth = len(ev.Name)
		}
	}

	scale := float64(timelineWidth) / tl.TotalMs
	if tl.TotalMs <= 0 {
		scale = 0
	}

	for _, ev := range tl.Events {
		startCol := int(ev.StartMs * scale)
		endCol := int(ev.EndMs * scale)
		if endCol <= startCol {
			endCol = startCol + 1
		}
		if endCol > timelineWidth {
			endCol = timelineWidth
		}

		bar := strings.Repeat(" ", startCol) +
			statusStyle(ev.Status).Render(strings.Repeat("█", endCol-startCol))
		sb.WriteString(fmt.Sprintf("  %-*s │%s│ %s (%.1fms)\n",
			nameWidth, ev.Name, bar+strings.Repeat(" ", timelineWidth-endCol),
			ev.Status, ev.EndMs-ev.StartMs))
	}

	if len(tl.Bands) > 0 {
		sb.WriteString("\n")
		for _, band := range tl.Bands {
			sb.WriteString(styleMuted.Render(fmt.Sprintf("  stage %d: %.1fms - %.1fms\n",
				band.Stage, band.StartMs, band.EndMs)))
		}
	}
	return sb.String()
}

// RenderSummary prints the per-signal outcomes and the aggregate line.
func RenderSummary(rec *recording.Recording) string {
	var sb strings.Builder
	for _, s := range rec.Signals {
		mark := statusStyle(s.Status).Render("●")
		line := fmt.Sprintf("  %s %-20s %-12s %8.1fms", mark, s.Name, s.Status, s.DurationMs)
		if s.ErrorMessage != "" {
			line += styleFailed.Render("  " + s.ErrorMessage)
		}
		if s.CancelledBy != "" {
			line += styleMuted.Render("  cancelled by " + s.CancelledBy)
		}
		sb.WriteString(line + "\n")
	}

	sum := rec.Summary
	sb.WriteString(fmt.Sprintf("\n  %d signals: %d succeeded, %d failed, %d timed out, %d skipped, %d cancelled\n",
		sum.Total, sum.Succeeded, sum.Failed, sum.TimedOut, sum.Skipped, sum.Cancelled))
	if rec.TimedOut {
		sb.WriteString(styleTimedOut.Render("  run timed out\n"))
	}
	return sb.String()
}
