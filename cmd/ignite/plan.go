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
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/ignition/pkg/ignition"
	"github.com/AleutianAI/ignition/pkg/ignition/graph"
)

// Plan is the YAML description of a simulated run: a set of signals with
// latencies and outcomes, plus coordinator options.
type Plan struct {
	Options PlanOptions  `yaml:"options"`
	Signals []PlanSignal `yaml:"signals"`
}

// PlanSignal describes one simulated signal. Durations use Go syntax
// ("250ms", "2s").
type PlanSignal struct {
	Name      string   `yaml:"name"`
	Latency   string   `yaml:"latency"`
	Fail      bool     `yaml:"fail"`
	FailWith  string   `yaml:"failWith"`
	Timeout   string   `yaml:"timeout"`
	Stage     int      `yaml:"stage"`
	DependsOn []string `yaml:"dependsOn"`
}

// PlanOptions mirrors the coordinator options in plan-file form.
type PlanOptions struct {
	Mode                      string  `yaml:"mode"`
	GlobalTimeout             string  `yaml:"globalTimeout"`
	Policy                    string  `yaml:"policy"`
	MaxParallel               int     `yaml:"maxParallel"`
	CancelOnGlobalTimeout     bool    `yaml:"cancelOnGlobalTimeout"`
	CancelSignalOnTimeout     bool    `yaml:"cancelSignalOnTimeout"`
	CancelDependentsOnFailure bool    `yaml:"cancelDependentsOnFailure"`
	StagePolicy               string  `yaml:"stagePolicy"`
	StageMode                 string  `yaml:"stageMode"`
	EarlyPromotionThreshold   float64 `yaml:"earlyPromotionThreshold"`
}

// LoadPlan reads and parses a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if len(p.Signals) == 0 {
		return nil, errors.New("plan has no signals")
	}
	return &p, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func parseMode(s string) (ignition.ExecutionMode, error) {
	switch s {
	case "", "parallel":
		return ignition.ModeParallel, nil
	case "sequential":
		return ignition.ModeSequential, nil
	case "dependency_aware", "dag":
		return ignition.ModeDependencyAware, nil
	case "staged":
		return ignition.ModeStaged, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

func parseStagePolicy(s string) (ignition.StagePolicy, error) {
	switch s {
	case "", "all_must_succeed":
		return ignition.StageAllMustSucceed, nil
	case "fail_fast":
		return ignition.StageFailFast, nil
	case "best_effort":
		return ignition.StageBestEffort, nil
	case "early_promotion":
		return ignition.StageEarlyPromotion, nil
	default:
		return 0, fmt.Errorf("unknown stage policy %q", s)
	}
}

func parsePolicy(s string) (ignition.Policy, error) {
	switch s {
	case "", "fail_fast":
		return ignition.FailFast(), nil
	case "best_effort":
		return ignition.BestEffort(), nil
	case "continue_on_timeout":
		return ignition.ContinueOnTimeout(), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", s)
	}
}

// BuildOptions converts the plan's option block into coordinator options,
// building the dependency graph when any signal declares dependencies.
func (p *Plan) BuildOptions() (ignition.Options, error) {
	var opts ignition.Options

	mode, err := parseMode(p.Options.Mode)
	if err != nil {
		return opts, err
	}
	opts.Mode = mode

	if p.Options.StageMode != "" {
		stageMode, err := parseMode(p.Options.StageMode)
		if err != nil {
			return opts, err
		}
		opts.StageMode = stageMode
	}

	stagePolicy, err := parseStagePolicy(p.Options.StagePolicy)
	if err != nil {
		return opts, err
	}
	opts.StagePolicy = stagePolicy

	policy, err := parsePolicy(p.Options.Policy)
	if err != nil {
		return opts, err
	}
	opts.Policy = policy

	if p.Options.GlobalTimeout != "" {
		if p.Options.GlobalTimeout == "none" {
			opts.GlobalTimeout = ignition.GlobalTimeoutDisabled
		} else {
			gt, err := parseDuration(p.Options.GlobalTimeout)
			if err != nil {
				return opts, fmt.Errorf("globalTimeout: %w", err)
			}
			opts.GlobalTimeout = gt
		}
	}

	opts.MaxParallel = p.Options.MaxParallel
	opts.CancelOnGlobalTimeout = p.Options.CancelOnGlobalTimeout
	opts.CancelSignalOnTimeout = p.Options.CancelSignalOnTimeout
	opts.CancelDependentsOnFailure = p.Options.CancelDependentsOnFailure
	opts.EarlyPromotionThreshold = p.Options.EarlyPromotionThreshold

	hasDeps := false
	for _, s := range p.Signals {
		if len(s.DependsOn) > 0 {
			hasDeps = true
			break
		}
	}
	if hasDeps || opts.Mode == ignition.ModeDependencyAware {
		b := graph.NewBuilder()
		for _, s := range p.Signals {
			b.Add(s.Name)
		}
		for _, s := range p.Signals {
			for _, dep := range s.DependsOn {
				b.Dependency(s.Name, dep)
			}
		}
		g, err := b.Build()
		if err != nil {
			return opts, err
		}
		opts.Graph = g
	}
	return opts, nil
}

// BuildSignals converts the plan's signal list into simulated signals that
// sleep for their latency and then succeed or fail as configured.
func (p *Plan) BuildSignals() ([]ignition.Signal, error) {
	signals := make([]ignition.Signal, 0, len(p.Signals))
	for _, ps := range p.Signals {
		latency, err := parseDuration(ps.Latency)
		if err != nil {
			return nil, fmt.Errorf("signal %s latency: %w", ps.Name, err)
		}
		timeout, err := parseDuration(ps.Timeout)
		if err != nil {
			return nil, fmt.Errorf("signal %s timeout: %w", ps.Name, err)
		}

		failWith := ps.FailWith
		if ps.Fail && failWith == "" {
			failWith = "simulated failure"
		}
		shouldFail := ps.Fail || ps.FailWith != ""

		wait := func(ctx context.Context) error {
			if latency > 0 {
				t := time.NewTimer(latency)
				defer t.Stop()
				select {
				case <-t.C:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if shouldFail {
				return errors.New(failWith)
			}
			return nil
		}

		sigOpts := []ignition.SignalOption{}
		if timeout > 0 {
			sigOpts = append(sigOpts, ignition.WithTimeout(timeout))
		}
		if ps.Stage != 0 {
			sigOpts = append(sigOpts, ignition.WithStage(ps.Stage))
		}
		signals = append(signals, ignition.NewSignal(ps.Name, wait, sigOpts...))
	}
	return signals, nil
}
