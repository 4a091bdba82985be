// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package driver ties the lux and proximity engines to one sensor: the
// interrupt-driven acquisition pipeline, the two-slot read buffer, the
// control commands and the byte-stream register handle.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/relabs-tech/alsprox/internal/lux"
	"github.com/relabs-tech/alsprox/internal/proximity"
	"github.com/relabs-tech/alsprox/internal/sensors"
)

// EventSink receives the two absolute-value event channels.
type EventSink interface {
	ReportLux(lux int)
	ReportDistance(distance int)
}

// WakeLock keeps the platform awake while proximity sensing is on.
type WakeLock interface {
	Acquire()
	Release()
}

type nopSink struct{}

func (nopSink) ReportLux(int)      {}
func (nopSink) ReportDistance(int) {}

type nopWakeLock struct{}

func (nopWakeLock) Acquire() {}
func (nopWakeLock) Release() {}

// Options configure a Driver. Zero values select defaults.
type Options struct {
	// Config is the initial sensor configuration; DefaultSensorConfig when
	// nil.
	Config *sensors.SensorConfig
	// SaturationPolicy applies to interrupt-driven proximity cycles.
	SaturationPolicy proximity.SaturationPolicy
	// CalibrationInterval is the delay between calibration samples.
	CalibrationInterval time.Duration
	// CalibrationSleep overrides the calibration delay (tests).
	CalibrationSleep func(ctx context.Context, d time.Duration) error
	Sink             EventSink
	WakeLock         WakeLock
}

// ALSWindow is the ALS interrupt window last written to 0x04-0x07.
type ALSWindow struct {
	Lo uint16 `json:"lo"`
	Hi uint16 `json:"hi"`
}

// Driver owns all mutable state of one sensor. Every method that touches
// the device takes mu.
type Driver struct {
	mu   sync.Mutex
	regs sensors.RegisterAccess
	sink EventSink
	wake WakeLock

	cfg     sensors.SensorConfig
	alsSat  uint32
	proxSat uint32

	hist *lux.History
	prox *proximity.Engine
	cal  proximity.Calibrator

	// engaged forces the next proximity evaluation to FAR. Set by
	// PROX_ON, cleared by the first evaluation and on handle release.
	engaged   bool
	alsOn     bool
	wakeHeld  bool
	alsWindow ALSWindow
	lastLux   int

	buf *ReadBuffer

	open bool
}

// New builds a driver on regs. It does not touch the device.
func New(regs sensors.RegisterAccess, opts Options) *Driver {
	cfg := sensors.DefaultSensorConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	d := &Driver{
		regs: regs,
		sink: opts.Sink,
		wake: opts.WakeLock,
		cfg:  cfg,
		hist: lux.NewHistory(),
		prox: proximity.NewEngine(opts.SaturationPolicy),
		cal: proximity.Calibrator{
			Regs:     regs,
			Interval: opts.CalibrationInterval,
			Sleep:    opts.CalibrationSleep,
		},
		buf:     NewReadBuffer(),
		lastLux: -1,
	}
	if d.sink == nil {
		d.sink = nopSink{}
	}
	if d.wake == nil {
		d.wake = nopWakeLock{}
	}
	d.recomputeSaturation()
	return d
}

func (d *Driver) recomputeSaturation() {
	d.alsSat = d.cfg.ALSSaturation()
	d.proxSat = d.cfg.ProxSaturation()
}

// Buffer returns the reader-visible buffer.
func (d *Driver) Buffer() *ReadBuffer { return d.buf }

// Config returns a copy of the current configuration.
func (d *Driver) Config() sensors.SensorConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Snapshot is a point-in-time view of driver state for diagnostics.
type Snapshot struct {
	Config           sensors.SensorConfig  `json:"config"`
	ALSSaturation    uint32                `json:"als_saturation"`
	ProxSaturation   uint32                `json:"prox_saturation"`
	ALSOn            bool                  `json:"als_on"`
	Engaged          bool                  `json:"prox_engaged"`
	ALSWindow        ALSWindow             `json:"als_window"`
	ProxWindow       proximity.Window      `json:"prox_window"`
	Distance         proximity.Distance    `json:"distance"`
	LastLux          int                   `json:"last_lux"`
	History          [lux.HistoryDepth]int `json:"history"`
	SaturationPolicy string                `json:"saturation_policy"`
}

// Snapshot returns the current state.
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		Config:           d.cfg,
		ALSSaturation:    d.alsSat,
		ProxSaturation:   d.proxSat,
		ALSOn:            d.alsOn,
		Engaged:          d.engaged,
		ALSWindow:        d.alsWindow,
		ProxWindow:       d.prox.Window(),
		Distance:         d.prox.Distance(),
		LastLux:          d.lastLux,
		History:          d.hist.Values(),
		SaturationPolicy: d.prox.Policy.String(),
	}
}
