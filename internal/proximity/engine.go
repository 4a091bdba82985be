// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package proximity classifies the proximity channel as near or far with a
// hysteresis band and derives that band from a calibration sweep.
package proximity

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/alsprox/internal/sensors"
)

// Distance is the reported proximity state.
type Distance int

const (
	Far  Distance = 0
	Near Distance = 1
)

func (d Distance) String() string {
	if d == Near {
		return "near"
	}
	return "far"
}

// Thresholds is the hysteresis band. Hi must be greater than Lo.
type Thresholds struct {
	Lo uint16 `json:"lo"`
	Hi uint16 `json:"hi"`
}

// Window is the interrupt window programmed into registers 0x08-0x0B.
// The device interrupts when the proximity count leaves [Low, High].
type Window struct {
	Low  uint16
	High uint16
}

// disarmed never fires.
var disarmed = Window{Low: 0, High: 0xFFFF}

// SaturationPolicy selects what Run does when the clear channel is close to
// full scale during a proximity cycle.
type SaturationPolicy int

const (
	// SaturationFail aborts the cycle with sensors.ErrSaturation.
	SaturationFail SaturationPolicy = iota
	// SaturationSkip drops the cycle silently.
	SaturationSkip
)

func (p SaturationPolicy) String() string {
	if p == SaturationSkip {
		return "skip"
	}
	return "fail"
}

// ParseSaturationPolicy accepts "fail" or "skip".
func ParseSaturationPolicy(s string) (SaturationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail", "":
		return SaturationFail, nil
	case "skip":
		return SaturationSkip, nil
	}
	return SaturationFail, fmt.Errorf("unknown saturation policy %q (want fail|skip)", s)
}

// Sample holds registers 0x14-0x19: clear, IR and proximity, little-endian.
type Sample [6]byte

func (s Sample) Clear() uint16 { return uint16(s[0]) | uint16(s[1])<<8 }
func (s Sample) IR() uint16    { return uint16(s[2]) | uint16(s[3])<<8 }
func (s Sample) Prox() uint16  { return uint16(s[4]) | uint16(s[5])<<8 }

// Saturated reports whether clear exceeds 80% of the ALS full scale.
func Saturated(clear uint16, alsSaturation uint32) bool {
	return uint32(clear) > alsSaturation*80/100
}

// Decision is the outcome of one proximity evaluation.
type Decision struct {
	Distance Distance
	// Emit is set on a FAR or NEAR transition; no-change cycles only
	// re-arm the previous window.
	Emit    bool
	Skipped bool
	Window  Window
	Clear   uint16
	Prox    uint16
}

// Engine keeps the last armed window and reported distance. It is not safe
// for concurrent use; the driver calls it under its device lock.
type Engine struct {
	Policy SaturationPolicy

	window   Window
	distance Distance
}

// NewEngine returns an engine with a disarmed window.
func NewEngine(policy SaturationPolicy) *Engine {
	return &Engine{Policy: policy, window: disarmed}
}

// Window returns the last armed interrupt window.
func (e *Engine) Window() Window { return e.window }

// Distance returns the last reported distance.
func (e *Engine) Distance() Distance { return e.distance }

// Reset returns the engine to its initial state.
func (e *Engine) Reset() {
	e.window = disarmed
	e.distance = Far
}

// Decide evaluates s against th without touching engine state. engaged
// forces a FAR transition (first cycle after proximity is switched on).
func (e *Engine) Decide(s Sample, th Thresholds, alsSaturation uint32, engaged bool) (Decision, error) {
	d := Decision{Clear: s.Clear(), Prox: s.Prox(), Distance: e.distance, Window: e.window}

	if Saturated(d.Clear, alsSaturation) {
		if e.Policy == SaturationSkip {
			d.Skipped = true
			return d, nil
		}
		return d, fmt.Errorf("proximity: clear %d above 80%% of %d: %w", d.Clear, alsSaturation, sensors.ErrSaturation)
	}

	switch {
	case engaged || d.Prox < th.Lo:
		d.Distance = Far
		d.Emit = true
		d.Window = Window{Low: 0, High: th.Hi}
	case d.Prox > th.Hi:
		d.Distance = Near
		d.Emit = true
		d.Window = Window{Low: th.Lo, High: 0xFFFF}
	}
	return d, nil
}

// Commit adopts the window and distance of d.
func (e *Engine) Commit(d Decision) {
	if d.Skipped {
		return
	}
	e.window = d.Window
	e.distance = d.Distance
}

// Run reads one sample, decides, writes the resulting window and only then
// commits. A failed register write leaves the engine unchanged.
func (e *Engine) Run(regs sensors.RegisterAccess, th Thresholds, alsSaturation uint32, engaged bool) (Decision, error) {
	var s Sample
	if err := regs.ReadRegisters(sensors.RegClearLo, s[:]); err != nil {
		return Decision{}, fmt.Errorf("proximity: read sample: %w", err)
	}
	d, err := e.Decide(s, th, alsSaturation, engaged)
	if err != nil || d.Skipped {
		return d, err
	}
	if err := sensors.WriteWindow(regs, sensors.RegProxMinThreshLo, d.Window.Low, d.Window.High); err != nil {
		return d, fmt.Errorf("proximity: arm window: %w", err)
	}
	e.Commit(d)
	return d, nil
}

// Reading is one polled proximity measurement.
type Reading struct {
	Clear uint16 `json:"clear"`
	Prox  uint16 `json:"prox"`
}

// Poll reads one sample. Saturation is always an error here, regardless of
// any engine policy.
func Poll(regs sensors.RegisterAccess, alsSaturation uint32) (Reading, error) {
	var s Sample
	if err := regs.ReadRegisters(sensors.RegClearLo, s[:]); err != nil {
		return Reading{}, fmt.Errorf("proximity: poll: %w", err)
	}
	r := Reading{Clear: s.Clear(), Prox: s.Prox()}
	if Saturated(r.Clear, alsSaturation) {
		return r, fmt.Errorf("proximity: poll clear %d: %w", r.Clear, sensors.ErrSaturation)
	}
	return r, nil
}

// ProgramTiming writes the proximity timing, filter, pulse and gain
// registers. ATIME is programmed with the proximity integration time.
func ProgramTiming(regs sensors.RegisterAccess, cfg sensors.SensorConfig) error {
	return ProgramRegisters(regs, cfg, cfg.ProxIntTime)
}

// ProgramRegisters is ProgramTiming with ATIME set to atime. Proximity
// sensing alongside ALS keeps the ALS integration code so lux stays
// normalized to ALSTime.
func ProgramRegisters(regs sensors.RegisterAccess, cfg sensors.SensorConfig, atime uint8) error {
	seq := []struct {
		reg uint8
		val uint8
	}{
		{sensors.RegALSTime, atime},
		{sensors.RegProxTime, cfg.ProxADCTime},
		{sensors.RegWaitTime, cfg.ProxWaitTime},
		{sensors.RegInterrupt, cfg.ProxIntrFilter},
		{sensors.RegProxConfig, cfg.ProxConfig},
		{sensors.RegProxCount, cfg.ProxPulseCount},
		{sensors.RegGain, cfg.ProxGain},
	}
	for _, w := range seq {
		if err := regs.WriteRegister(w.reg, w.val); err != nil {
			return err
		}
	}
	return nil
}
