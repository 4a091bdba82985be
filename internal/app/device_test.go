// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/sensors"
)

func TestScene(t *testing.T) {
	c, ir, p := Scene(0)
	assert.Equal(t, uint16(2000), c)
	assert.Equal(t, uint16(500), ir)
	assert.Equal(t, uint16(300), p)

	_, _, p = Scene(75)
	assert.Equal(t, uint16(900), p)
}

func TestOpenSensorMock(t *testing.T) {
	cfg := config.Default()
	cfg.I2CBus = MockBus
	regs, release, err := OpenSensor(cfg)
	require.NoError(t, err)
	defer release()

	id, err := regs.ReadRegister(sensors.RegChipID)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x20), id)
}

func TestSimulatedStatusFollowsControl(t *testing.T) {
	s := NewSimulatedSensor()
	st, err := s.ReadRegister(sensors.RegStatus)
	require.NoError(t, err)
	assert.Zero(t, st, "powered down")

	require.NoError(t, s.WriteRegister(sensors.RegControl, 0x3F))
	st, err = s.ReadRegister(sensors.RegStatus)
	require.NoError(t, err)
	assert.Equal(t, uint8(sensors.StatusALSValid|sensors.StatusALSInt|sensors.StatusProxInt), st)
}

func TestSimulatedEndToEnd(t *testing.T) {
	cfg := config.Default()
	sink := NewMQTTSink(func(string, []byte) error { return nil }, cfg)
	d := NewDriver(NewSimulatedSensor(), cfg, sink)

	require.NoError(t, StartSensing(d))
	require.NotNil(t, sink.Status().Distance)
	assert.Equal(t, "far", sink.Status().Distance.State)

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		require.NoError(t, d.HandleInterrupt(ctx))
	}

	st := sink.Status()
	require.NotNil(t, st.Lux)
	assert.GreaterOrEqual(t, st.Lux.Lux, 0)
	assert.LessOrEqual(t, st.Lux.Lux, 10000)
	require.NotNil(t, st.Distance)
	assert.Equal(t, "near", st.Distance.State)

	require.NoError(t, StopSensing(d))
	assert.False(t, d.Snapshot().ALSOn)
}
