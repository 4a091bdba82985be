// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/alsprox/internal/proximity"
	"github.com/relabs-tech/alsprox/internal/sensors"
	"github.com/relabs-tech/alsprox/internal/sensors/sensorstest"
)

type recordingSink struct {
	mu       sync.Mutex
	lux      []int
	distance []int
}

func (s *recordingSink) ReportLux(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lux = append(s.lux, v)
}

func (s *recordingSink) ReportDistance(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distance = append(s.distance, v)
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestDriver(t *testing.T, policy proximity.SaturationPolicy) (*Driver, *sensorstest.Registers, *recordingSink) {
	t.Helper()
	regs := sensorstest.New()
	sink := &recordingSink{}
	d := New(regs, Options{SaturationPolicy: policy, Sink: sink, CalibrationSleep: noSleep})
	return d, regs, sink
}

func TestHandleInterruptALS(t *testing.T) {
	d, regs, sink := newTestDriver(t, proximity.SaturationFail)
	regs.Set(sensors.RegControl, sensors.CtrlADCEnable|sensors.CtrlPowerOn)
	regs.Set(sensors.RegStatus, sensors.StatusALSValid)
	regs.SetWord(sensors.RegClearLo, 8192)
	regs.SetWord(sensors.RegIRLo, 4096)

	require.NoError(t, d.HandleInterrupt(context.Background()))

	assert.Equal(t, []int{51}, sink.lux)
	assert.Empty(t, sink.distance)
	assert.Equal(t, uint16(6553), regs.Word(sensors.RegALSMinThreshLo))
	assert.Equal(t, uint16(9830), regs.Word(sensors.RegALSMaxThreshLo))
	assert.Equal(t, []uint8{sensors.CmdIntClear}, regs.SpecialLog())

	slots := d.Buffer().Peek()
	assert.Equal(t, ReadSlot{Data: 51, Interrupt: sensors.StatusALSValid}, slots[SlotLux])
	assert.True(t, d.Buffer().Ready())

	snap := d.Snapshot()
	assert.Equal(t, 51, snap.History[0])
	assert.Equal(t, ALSWindow{Lo: 6553, Hi: 9830}, snap.ALSWindow)
}

func TestHandleInterruptALSDisabledIsQuiet(t *testing.T) {
	d, regs, sink := newTestDriver(t, proximity.SaturationFail)
	regs.Set(sensors.RegStatus, sensors.StatusALSValid)
	regs.SetWord(sensors.RegClearLo, 1000)

	require.NoError(t, d.HandleInterrupt(context.Background()))
	assert.Empty(t, sink.lux)
	assert.False(t, d.Buffer().Ready())
}

func TestHandleInterruptThresholdCap(t *testing.T) {
	d, regs, _ := newTestDriver(t, proximity.SaturationFail)
	regs.Set(sensors.RegStatus, sensors.StatusALSValid)
	regs.SetWord(sensors.RegClearLo, 60000)

	require.NoError(t, d.HandleInterrupt(context.Background()))
	assert.Equal(t, uint16(0xFFFF), regs.Word(sensors.RegALSMaxThreshLo))
	assert.Equal(t, uint16(48000), regs.Word(sensors.RegALSMinThreshLo))
}

func TestHandleInterruptProximity(t *testing.T) {
	d, regs, sink := newTestDriver(t, proximity.SaturationFail)
	regs.Set(sensors.RegStatus, sensors.StatusProxInt)
	regs.SetWord(sensors.RegClearLo, 100)
	regs.SetWord(sensors.RegProxLo, 800)

	require.NoError(t, d.HandleInterrupt(context.Background()))
	assert.Equal(t, []int{1}, sink.distance)
	assert.Equal(t, uint16(600), regs.Word(sensors.RegProxMinThreshLo))
	assert.Equal(t, uint16(0xFFFF), regs.Word(sensors.RegProxMaxThreshLo))

	p := make([]byte, 32)
	n, err := d.Buffer().Drain(context.Background(), p, true)
	require.NoError(t, err)
	assert.Equal(t, BufferSize, n)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0x20, 0, 0, 0}, p[:n])
	assert.False(t, d.Buffer().Ready())

	// inside the band: no new event, buffer still refreshed
	regs.SetWord(sensors.RegProxLo, 650)
	require.NoError(t, d.HandleInterrupt(context.Background()))
	assert.Equal(t, []int{1}, sink.distance)
	assert.True(t, d.Buffer().Ready())
}

func TestHandleInterruptAlwaysClears(t *testing.T) {
	d, regs, _ := newTestDriver(t, proximity.SaturationFail)
	regs.FailRead[sensors.RegStatus] = true

	err := d.HandleInterrupt(context.Background())
	assert.True(t, errors.Is(err, sensors.ErrTransport))
	assert.Equal(t, []uint8{sensors.CmdIntClear}, regs.SpecialLog())
}

func TestHandleInterruptJoinsErrors(t *testing.T) {
	d, regs, sink := newTestDriver(t, proximity.SaturationFail)
	regs.Set(sensors.RegStatus, sensors.StatusALSValid|sensors.StatusProxInt)
	regs.SetWord(sensors.RegClearLo, 100)
	regs.SetWord(sensors.RegProxLo, 10)
	regs.FailWrite[sensors.RegALSMinThreshLo] = true
	regs.FailSpecial = true

	err := d.HandleInterrupt(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sensors.ErrTransport))
	assert.Contains(t, err.Error(), "als:")
	assert.Contains(t, err.Error(), "interrupt clear:")
	// proximity still ran
	assert.Equal(t, []int{0}, sink.distance)
}

func TestHandleInterruptSaturationPolicy(t *testing.T) {
	for _, tc := range []struct {
		policy  proximity.SaturationPolicy
		wantErr bool
	}{
		{proximity.SaturationFail, true},
		{proximity.SaturationSkip, false},
	} {
		t.Run(tc.policy.String(), func(t *testing.T) {
			d, regs, sink := newTestDriver(t, tc.policy)
			regs.Set(sensors.RegStatus, sensors.StatusProxInt)
			regs.SetWord(sensors.RegClearLo, 20000)
			regs.SetWord(sensors.RegProxLo, 800)

			err := d.HandleInterrupt(context.Background())
			if tc.wantErr {
				assert.True(t, errors.Is(err, sensors.ErrSaturation))
			} else {
				assert.NoError(t, err)
			}
			assert.Empty(t, sink.distance)
			assert.False(t, d.Buffer().Ready())
			assert.Equal(t, []uint8{sensors.CmdIntClear}, regs.SpecialLog())
		})
	}
}
