// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package proximity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/alsprox/internal/sensors"
	"github.com/relabs-tech/alsprox/internal/sensors/sensorstest"
)

var testBand = Thresholds{Lo: 600, Hi: 700}

const alsSat = 18 << 10 // default ProxIntTime 0xEE

func setSample(r *sensorstest.Registers, clear, prox uint16) {
	r.SetWord(sensors.RegClearLo, clear)
	r.SetWord(sensors.RegProxLo, prox)
}

func armedWindow(r *sensorstest.Registers) Window {
	return Window{Low: r.Word(sensors.RegProxMinThreshLo), High: r.Word(sensors.RegProxMaxThreshLo)}
}

func TestEngineTransitions(t *testing.T) {
	regs := sensorstest.New()
	e := NewEngine(SaturationFail)

	// engaged forces FAR regardless of the reading
	setSample(regs, 100, 900)
	d, err := e.Run(regs, testBand, alsSat, true)
	require.NoError(t, err)
	assert.True(t, d.Emit)
	assert.Equal(t, Far, d.Distance)
	assert.Equal(t, Window{Low: 0, High: 700}, armedWindow(regs))

	setSample(regs, 100, 701)
	d, err = e.Run(regs, testBand, alsSat, false)
	require.NoError(t, err)
	assert.True(t, d.Emit)
	assert.Equal(t, Near, d.Distance)
	assert.Equal(t, Window{Low: 600, High: 0xFFFF}, armedWindow(regs))

	setSample(regs, 100, 599)
	d, err = e.Run(regs, testBand, alsSat, false)
	require.NoError(t, err)
	assert.True(t, d.Emit)
	assert.Equal(t, Far, d.Distance)
	assert.Equal(t, Window{Low: 0, High: 700}, armedWindow(regs))
}

func TestEngineStableInsideBand(t *testing.T) {
	regs := sensorstest.New()
	e := NewEngine(SaturationFail)

	setSample(regs, 100, 800)
	_, err := e.Run(regs, testBand, alsSat, false)
	require.NoError(t, err)
	require.Equal(t, Near, e.Distance())

	for _, p := range []uint16{601, 650, 699, 700, 600} {
		setSample(regs, 100, p)
		d, err := e.Run(regs, testBand, alsSat, false)
		require.NoError(t, err)
		assert.Falsef(t, d.Emit, "prox=%d", p)
		assert.Equal(t, Near, e.Distance())
		assert.Equal(t, Window{Low: 600, High: 0xFFFF}, armedWindow(regs))
	}
}

func TestEngineSaturationPolicy(t *testing.T) {
	regs := sensorstest.New()
	setSample(regs, 20000, 800)

	e := NewEngine(SaturationFail)
	_, err := e.Run(regs, testBand, alsSat, false)
	assert.True(t, errors.Is(err, sensors.ErrSaturation))

	regs.ResetLog()
	e = NewEngine(SaturationSkip)
	d, err := e.Run(regs, testBand, alsSat, false)
	require.NoError(t, err)
	assert.True(t, d.Skipped)
	assert.False(t, d.Emit)
	assert.Empty(t, regs.WriteLog())
	assert.Equal(t, Far, e.Distance())
}

func TestEngineWriteFailureKeepsState(t *testing.T) {
	regs := sensorstest.New()
	e := NewEngine(SaturationFail)
	setSample(regs, 100, 800)
	regs.FailWrite[sensors.RegProxMaxThreshLo] = true

	_, err := e.Run(regs, testBand, alsSat, false)
	assert.True(t, errors.Is(err, sensors.ErrTransport))
	assert.Equal(t, Far, e.Distance())
	assert.Equal(t, disarmed, e.Window())
}

func TestPollAlwaysFailsOnSaturation(t *testing.T) {
	regs := sensorstest.New()
	setSample(regs, 20000, 10)
	_, err := Poll(regs, alsSat)
	assert.True(t, errors.Is(err, sensors.ErrSaturation))

	setSample(regs, 14745, 321)
	r, err := Poll(regs, alsSat)
	require.NoError(t, err)
	assert.Equal(t, Reading{Clear: 14745, Prox: 321}, r)
}

func TestParseSaturationPolicy(t *testing.T) {
	p, err := ParseSaturationPolicy("Skip")
	require.NoError(t, err)
	assert.Equal(t, SaturationSkip, p)
	_, err = ParseSaturationPolicy("ignore")
	assert.Error(t, err)
}
