// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package health exposes a query-only readiness view over a coordinator.
// It consumes the cached run result and never re-enters the run.
package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ignition/pkg/ignition"
	"github.com/AleutianAI/ignition/pkg/ignition/scope"
)

// Status is the readiness classification of a run.
type Status int

const (
	// StatusPending means the run has not completed yet.
	StatusPending Status = iota

	// StatusHealthy means every signal succeeded.
	StatusHealthy

	// StatusDegraded means the soft global deadline elapsed but no signal
	// failed or timed out individually.
	StatusDegraded

	// StatusUnhealthy means at least one signal failed, or the run was cut
	// off by a hard timeout or a per-signal timeout.
	StatusUnhealthy
)

// String returns the lowercase wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Report is the readiness snapshot returned by a check.
type Report struct {
	Status    Status   `json:"-"`
	State     string   `json:"state"`
	Readiness string   `json:"status"`
	Failed    []string `json:"failed,omitempty"`
	TimedOut  []string `json:"timedOut,omitempty"`
}

// Checker classifies a coordinator's cached result.
type Checker struct {
	coord *ignition.Coordinator
}

// NewChecker returns a checker over the given coordinator.
func NewChecker(coord *ignition.Coordinator) *Checker {
	return &Checker{coord: coord}
}

// Check returns the current readiness snapshot. It never blocks: before
// the run completes it reports pending.
func (c *Checker) Check() Report {
	rep := Report{State: c.coord.State().String()}
	res, ok := c.coord.Peek()
	if !ok {
		rep.Status = StatusPending
		rep.Readiness = rep.Status.String()
		return rep
	}

	perSignalTimeout := false
	for _, sr := range res.Signals {
		switch sr.Status {
		case ignition.StatusFailed:
			rep.Failed = append(rep.Failed, sr.Name)
		case ignition.StatusTimedOut:
			rep.TimedOut = append(rep.TimedOut, sr.Name)
			if sr.Reason == scope.ReasonSignalTimeout {
				perSignalTimeout = true
			}
		case ignition.StatusCancelled:
			rep.Failed = append(rep.Failed, sr.Name)
		}
	}

	// A soft global timeout leaves signals running to completion: the
	// deadline elapsed but nothing failed or timed out individually.
	switch {
	case res.Success() && !res.GlobalTimeoutElapsed:
		rep.Status = StatusHealthy
	case res.GlobalTimeoutElapsed && !res.TimedOut && len(rep.Failed) == 0 && !perSignalTimeout:
		rep.Status = StatusDegraded
	default:
		rep.Status = StatusUnhealthy
	}
	rep.Readiness = rep.Status.String()
	return rep
}

// GinHandler serves the readiness report. Healthy and degraded map to
// 200, pending to 503 with Retry-After, unhealthy to 503.
func (c *Checker) GinHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rep := c.Check()
		code := http.StatusOK
		switch rep.Status {
		case StatusPending:
			code = http.StatusServiceUnavailable
			ctx.Header("Retry-After", "1")
		case StatusUnhealthy:
			code = http.StatusServiceUnavailable
		}
		ctx.JSON(code, rep)
	}
}
