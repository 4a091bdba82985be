// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package lux

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/alsprox/internal/sensors"
)

func sample(clear, ir uint16) Sample {
	return Sample{uint8(clear), uint8(clear >> 8), uint8(ir), uint8(ir >> 8)}
}

func TestComputeGolden(t *testing.T) {
	cfg := sensors.DefaultSensorConfig()
	res, err := Compute(sample(8192, 4096), cfg, NewHistory())
	require.NoError(t, err)
	assert.Equal(t, 51, res.Lux)
	assert.False(t, res.Fallback)
}

func TestComputeSaturation(t *testing.T) {
	cfg := sensors.DefaultSensorConfig() // 200ms -> full scale 60000
	for _, ir := range []uint16{0, 1, 30000, 59999, 65535} {
		res, err := Compute(sample(60000, ir), cfg, nil)
		require.NoError(t, err)
		assert.Equalf(t, MaxLux, res.Lux, "ir=%d", ir)
		assert.True(t, res.Saturated)
	}
	cfg.ALSTime = 650 // full scale capped at 65535
	res, err := Compute(sample(65535, 0), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, MaxLux, res.Lux)
}

func TestComputeDark(t *testing.T) {
	res, err := Compute(sample(0, 0), sensors.DefaultSensorConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Lux)
}

func TestComputeSwapsChannels(t *testing.T) {
	cfg := sensors.DefaultSensorConfig()
	a, err := Compute(sample(8192, 4096), cfg, nil)
	require.NoError(t, err)
	b, err := Compute(sample(4096, 8192), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComputeTableBoundaryIsInclusive(t *testing.T) {
	// ratio exactly 9830 selects the first segment
	res, err := Compute(sample(32768, 9830), sensors.DefaultSensorConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 952, res.Lux)
}

func TestComputeFallsBackToHistory(t *testing.T) {
	cfg := sensors.DefaultSensorConfig()
	hist := NewHistory()

	res, err := Compute(sample(1000, 900), cfg, hist)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, 0, res.Lux)

	hist.Push(17)
	hist.Push(42)
	res, err = Compute(sample(1000, 900), cfg, hist)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, 42, res.Lux)
	assert.Equal(t, [HistoryDepth]int{42, 17, -1}, hist.Values())
}

func TestComputeArithmeticFault(t *testing.T) {
	cfg := sensors.DefaultSensorConfig()
	cfg.ALSTime = 10
	_, err := Compute(sample(100, 10), cfg, nil)
	assert.True(t, errors.Is(err, sensors.ErrArithmetic))
}

func TestComputeScaleFactor(t *testing.T) {
	cfg := sensors.DefaultSensorConfig()
	cfg.ScaleFactor = 2
	res, err := Compute(sample(4096, 2048), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 51, res.Lux)
}

func TestHistory(t *testing.T) {
	h := NewHistory()
	_, ok := h.Last()
	assert.False(t, ok)

	for _, v := range []int{1, 2, 3, 4} {
		h.Push(v)
	}
	assert.Equal(t, [HistoryDepth]int{4, 3, 2}, h.Values())

	h.Reset()
	_, ok = h.Last()
	assert.False(t, ok)
}
