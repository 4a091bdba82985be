// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/proximity"
	"github.com/relabs-tech/alsprox/internal/sensors"
)

func TestSaveLoadCalibration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "calibration")
	res := proximity.CalibrationResult{
		Mean:       500,
		Max:        520,
		StdDev:     6.5,
		Thresholds: proximity.Thresholds{Lo: 534, Hi: 540},
	}
	now := time.Unix(1700000000, 0).UTC()

	path, err := SaveCalibration(dir, CalibrationFile{Timestamp: now, Result: res, GainTrim: 600})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prox_1700000000_calibration.json"), path)

	f, err := LoadCalibration(path)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Version)
	assert.True(t, now.Equal(f.Timestamp))
	assert.Equal(t, res, f.Result)
	assert.Equal(t, uint32(600), f.GainTrim)
}

func TestLoadCalibrationRejectsBadBand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"result":{"thresholds":{"lo":700,"hi":600}}}`), 0o644))
	_, err := LoadCalibration(path)
	assert.Error(t, err)

	_, err = LoadCalibration(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestApplyCalibration(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveCalibration(dir, CalibrationFile{
		Timestamp: time.Now(),
		Result:    proximity.CalibrationResult{Thresholds: proximity.Thresholds{Lo: 150, Hi: 200}},
		GainTrim:  700,
	})
	require.NoError(t, err)

	d := NewDriver(NewSimulatedSensor(), config.Default(), nil)
	th, err := ApplyCalibration(d, path)
	require.NoError(t, err)
	assert.Equal(t, proximity.Thresholds{Lo: 150, Hi: 200}, th)

	sc := d.ConfigGet()
	assert.Equal(t, uint16(150), sc.ProxThresholdLo)
	assert.Equal(t, uint16(200), sc.ProxThresholdHi)
	assert.Equal(t, uint32(700), sc.GainTrim)
}

func TestRecalibrateProximityResumesSensing(t *testing.T) {
	cfg := config.Default()
	cfg.CalibrationSampleInterval = 1
	topics := map[string]int{}
	sink := NewMQTTSink(func(topic string, _ []byte) error {
		topics[topic]++
		return nil
	}, cfg)
	sensor := NewSimulatedSensor()
	d := NewDriver(sensor, cfg, sink)
	ctx := context.Background()

	require.NoError(t, StartSensing(d))
	for i := 0; i < 5; i++ {
		require.NoError(t, d.HandleInterrupt(ctx))
	}
	luxBefore, distBefore := topics[cfg.TopicLux], topics[cfg.TopicDistance]
	require.Equal(t, 5, luxBefore)

	res, err := RecalibrateProximity(ctx, d)
	require.NoError(t, err)
	sc := d.ConfigGet()
	assert.Equal(t, res.Thresholds.Hi, sc.ProxThresholdHi)
	assert.Equal(t, res.Thresholds.Lo, sc.ProxThresholdLo)

	ctrl, err := sensor.ReadRegister(sensors.RegControl)
	require.NoError(t, err)
	assert.NotZero(t, ctrl&sensors.CtrlProxEnable)
	assert.NotZero(t, ctrl&sensors.CtrlADCEnable)
	assert.Equal(t, uint8(0xB8), sensor.Get(sensors.RegALSTime))
	assert.True(t, d.Snapshot().ALSOn)
	// PROX_ON reports FAR again
	assert.Equal(t, distBefore+1, topics[cfg.TopicDistance])

	for i := 0; i < 5; i++ {
		require.NoError(t, d.HandleInterrupt(ctx))
	}
	assert.Equal(t, luxBefore+5, topics[cfg.TopicLux])
}
