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

import "context"

// LifecycleHooks is the optional observer interface invoked at coordinator
// and signal boundaries. BeforeIgnition and AfterIgnition fire once per
// run; BeforeSignal fires once per started signal, AfterSignal once per
// recorded result (including skips).
//
// Hook errors and panics are logged and swallowed; they never influence the
// run.
type LifecycleHooks interface {
	BeforeIgnition(ctx context.Context) error
	AfterIgnition(ctx context.Context, result *Result) error
	BeforeSignal(ctx context.Context, sig Signal) error
	AfterSignal(ctx context.Context, res SignalResult) error
}

// NopHooks implements LifecycleHooks with no-ops; embed it to override a
// subset of the hooks.
type NopHooks struct{}

func (NopHooks) BeforeIgnition(context.Context) error            { return nil }
func (NopHooks) AfterIgnition(context.Context, *Result) error    { return nil }
func (NopHooks) BeforeSignal(context.Context, Signal) error      { return nil }
func (NopHooks) AfterSignal(context.Context, SignalResult) error { return nil }

var _ LifecycleHooks = NopHooks{}
