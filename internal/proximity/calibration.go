// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package proximity

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/alsprox/internal/sensors"
)

// CalibrationSamples is the number of readings per sweep.
const CalibrationSamples = 20

// DefaultSampleInterval is the delay between calibration readings.
const DefaultSampleInterval = 100 * time.Millisecond

// Clamp limits applied to derived thresholds.
const (
	maxCalibratedHi = 900
	minCalibratedLo = 100
)

// DefaultThresholds replace a derived band whose hi exceeds 900.
var DefaultThresholds = Thresholds{Lo: 600, Hi: 700}

// lowLightThresholds replace a derived band whose lo is under 100.
var lowLightThresholds = Thresholds{Lo: 150, Hi: 200}

// Clamp names the correction applied to a derived band.
type Clamp string

const (
	ClampNone Clamp = ""
	ClampHigh Clamp = "hi_above_900"
	ClampLow  Clamp = "lo_below_100"
	// ClampFlat is applied when a noiseless sweep yields hi == lo.
	ClampFlat Clamp = "flat"
)

// DeriveThresholds computes the hysteresis band from the sweep mean and
// peak: hi = mean + 2.0*(peak-mean), lo = mean + 1.7*(peak-mean), both
// rounded half up. Bands with hi above 900 fall back to DefaultThresholds;
// then bands with lo under 100 become 150/200.
func DeriveThresholds(mean, peak uint16) (Thresholds, Clamp) {
	if peak < mean {
		peak = mean
	}
	spread := uint32(peak - mean)
	hi := uint32(mean) + (spread*200+50)/100
	lo := uint32(mean) + (spread*170+50)/100

	th := Thresholds{Lo: uint16(min(lo, 0xFFFF)), Hi: uint16(min(hi, 0xFFFF))}
	clamp := ClampNone
	if hi > maxCalibratedHi {
		th, clamp = DefaultThresholds, ClampHigh
	}
	if th.Lo < minCalibratedLo {
		th, clamp = lowLightThresholds, ClampLow
	}
	if th.Hi <= th.Lo {
		th.Hi = th.Lo + 1
		clamp = ClampFlat
	}
	return th, clamp
}

// CalibrationResult describes one sweep.
type CalibrationResult struct {
	Samples    [CalibrationSamples]uint16 `json:"samples"`
	Mean       uint16                     `json:"mean"`
	Max        uint16                     `json:"max"`
	StdDev     float64                    `json:"std_dev"`
	Thresholds Thresholds                 `json:"thresholds"`
	Clamp      Clamp                      `json:"clamp,omitempty"`
	Duration   time.Duration              `json:"duration_ns"`
}

// Calibrator runs the proximity noise sweep. The caller must hold exclusive
// access to Regs for the whole run.
type Calibrator struct {
	Regs sensors.RegisterAccess
	// Interval between samples; DefaultSampleInterval when zero.
	Interval time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run programs the proximity registers, collects CalibrationSamples
// readings, derives thresholds and restores the power-on register bank.
// Any failure returns sensors.ErrPartialFailure and leaves the device in
// an unknown state; the sensor-on sequence must be run again.
func (c *Calibrator) Run(ctx context.Context, cfg sensors.SensorConfig) (CalibrationResult, error) {
	var res CalibrationResult
	start := time.Now()

	if err := ProgramTiming(c.Regs, cfg); err != nil {
		return res, partial("program timing", err)
	}
	ctrl := uint8(sensors.CtrlProxEnable | sensors.CtrlPowerOn | sensors.CtrlADCEnable)
	if err := c.Regs.WriteRegister(sensors.RegControl, ctrl); err != nil {
		return res, partial("enable", err)
	}

	var sum uint32
	vals := make([]float64, 0, CalibrationSamples)
	for i := range res.Samples {
		if i > 0 {
			if err := c.sleep(ctx); err != nil {
				return res, partial(fmt.Sprintf("sample %d", i), err)
			}
		}
		r, err := Poll(c.Regs, cfg.ALSSaturation())
		if err != nil {
			return res, partial(fmt.Sprintf("sample %d", i), err)
		}
		res.Samples[i] = r.Prox
		sum += uint32(r.Prox)
		res.Max = max(res.Max, r.Prox)
		vals = append(vals, float64(r.Prox))
	}
	res.Mean = uint16(sum / CalibrationSamples)
	res.StdDev = stat.StdDev(vals, nil)
	res.Thresholds, res.Clamp = DeriveThresholds(res.Mean, res.Max)

	for i, v := range sensors.InitRegisterBank {
		if i == int(sensors.RegProxMaxThreshHi) {
			continue
		}
		if err := c.Regs.WriteRegister(sensors.RegControl+uint8(i), v); err != nil {
			return res, partial("restore register bank", err)
		}
	}
	res.Duration = time.Since(start)

	sensors.Logf("calibration: mean=%d max=%d sd=%.2f -> hi=%d lo=%d clamp=%q",
		res.Mean, res.Max, res.StdDev, res.Thresholds.Hi, res.Thresholds.Lo, res.Clamp)
	return res, nil
}

func (c *Calibrator) sleep(ctx context.Context) error {
	d := c.Interval
	if d <= 0 {
		d = DefaultSampleInterval
	}
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func partial(step string, err error) error {
	return fmt.Errorf("calibration %s: %w: %w", step, sensors.ErrPartialFailure, err)
}
