// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package proximity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/alsprox/internal/sensors"
	"github.com/relabs-tech/alsprox/internal/sensors/sensorstest"
)

func TestDeriveThresholds(t *testing.T) {
	cases := []struct {
		name       string
		mean, peak uint16
		want       Thresholds
		clamp      Clamp
	}{
		{"quiet", 500, 520, Thresholds{Lo: 534, Hi: 540}, ClampNone},
		{"hi above 900", 1000, 1050, Thresholds{Lo: 600, Hi: 700}, ClampHigh},
		{"lo below 100", 50, 55, Thresholds{Lo: 150, Hi: 200}, ClampLow},
		{"flat", 300, 300, Thresholds{Lo: 300, Hi: 301}, ClampFlat},
		{"rounding", 400, 401, Thresholds{Lo: 402, Hi: 403}, ClampFlat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			th, clamp := DeriveThresholds(tc.mean, tc.peak)
			assert.Equal(t, tc.clamp, clamp)
			assert.Equal(t, tc.want, th)
			assert.Greater(t, th.Hi, th.Lo)
		})
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

// feed advances to the next sample on every block read starting at 0x14.
func feed(regs *sensorstest.Registers, samples []uint16) *int {
	n := 0
	regs.OnRead = func(reg uint8, bank *[sensors.NumRegisters]byte) {
		if reg != sensors.RegClearLo {
			return
		}
		v := samples[n%len(samples)]
		bank[sensors.RegProxLo] = uint8(v)
		bank[sensors.RegProxHi] = uint8(v >> 8)
		n++
	}
	return &n
}

func TestCalibratorRun(t *testing.T) {
	regs := sensorstest.New()
	samples := make([]uint16, CalibrationSamples)
	for i := range samples {
		samples[i] = 500
	}
	samples[3] = 520
	samples[4] = 480
	n := feed(regs, samples)

	c := &Calibrator{Regs: regs, Sleep: noSleep}
	res, err := c.Run(context.Background(), sensors.DefaultSensorConfig())
	require.NoError(t, err)
	assert.Equal(t, CalibrationSamples, *n)
	assert.Equal(t, uint16(500), res.Mean)
	assert.Equal(t, uint16(520), res.Max)
	assert.Equal(t, Thresholds{Lo: 534, Hi: 540}, res.Thresholds)
	assert.InDelta(t, 6.49, res.StdDev, 0.01)

	writes := regs.WriteLog()
	// timing, enable, then the restored bank without 0x0B
	require.Len(t, writes, 7+1+15)
	assert.Equal(t, sensorstest.Write{Reg: sensors.RegControl, Val: 0x07}, writes[7])
	for _, w := range writes[8:] {
		assert.NotEqual(t, uint8(sensors.RegProxMaxThreshHi), w.Reg)
		assert.Equal(t, sensors.InitRegisterBank[w.Reg], w.Val)
	}
}

func TestCalibratorPartialFailure(t *testing.T) {
	regs := sensorstest.New()
	feed(regs, []uint16{500})
	regs.FailWrite[sensors.RegProxCount] = true

	c := &Calibrator{Regs: regs, Sleep: noSleep}
	_, err := c.Run(context.Background(), sensors.DefaultSensorConfig())
	assert.True(t, errors.Is(err, sensors.ErrPartialFailure))
	assert.True(t, errors.Is(err, sensors.ErrTransport))
}

func TestCalibratorSaturatedSampleAborts(t *testing.T) {
	regs := sensorstest.New()
	feed(regs, []uint16{500})
	regs.SetWord(sensors.RegClearLo, 60000)

	c := &Calibrator{Regs: regs, Sleep: noSleep}
	_, err := c.Run(context.Background(), sensors.DefaultSensorConfig())
	assert.True(t, errors.Is(err, sensors.ErrPartialFailure))
	assert.True(t, errors.Is(err, sensors.ErrSaturation))
}

func TestCalibratorCancel(t *testing.T) {
	regs := sensorstest.New()
	feed(regs, []uint16{500})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Calibrator{Regs: regs, Interval: time.Hour}
	_, err := c.Run(ctx, sensors.DefaultSensorConfig())
	assert.True(t, errors.Is(err, sensors.ErrPartialFailure))
	assert.True(t, errors.Is(err, context.Canceled))
}
