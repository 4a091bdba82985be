// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/relabs-tech/alsprox/internal/lux"
	"github.com/relabs-tech/alsprox/internal/proximity"
	"github.com/relabs-tech/alsprox/internal/sensors"
)

// HandleInterrupt runs one acquisition cycle. It reads STATUS, services the
// ALS and proximity sources that are flagged, and always finishes with an
// interrupt clear, even after earlier failures. The errors of the cycle are
// joined.
func (d *Driver) HandleInterrupt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	status, err := d.regs.ReadRegister(sensors.RegStatus)
	if err != nil {
		errs = append(errs, fmt.Errorf("status: %w", err))
	} else {
		if status&sensors.StatusALSValid != 0 {
			if err := d.alsCycleLocked(status); err != nil {
				errs = append(errs, fmt.Errorf("als: %w", err))
			}
		}
		if status&sensors.StatusProxInt != 0 {
			if err := d.proxCycleLocked(status); err != nil {
				errs = append(errs, fmt.Errorf("prox: %w", err))
			}
		}
	}

	if err := d.regs.SpecialFunction(sensors.CmdIntClear); err != nil {
		errs = append(errs, fmt.Errorf("interrupt clear: %w", err))
	}
	return errors.Join(errs...)
}

func (d *Driver) alsCycleLocked(status uint8) error {
	if err := d.refreshALSThresholdsLocked(); err != nil {
		return err
	}
	res, err := d.readLuxLocked()
	if errors.Is(err, sensors.ErrNoData) {
		// ALS disabled between the interrupt and now
		return nil
	}
	if err != nil {
		return err
	}
	d.sink.ReportLux(res.Lux)
	d.buf.Publish(SlotLux, ReadSlot{Data: uint32(res.Lux), Interrupt: uint32(status)})
	return nil
}

func (d *Driver) proxCycleLocked(status uint8) error {
	th := proximity.Thresholds{Lo: d.cfg.ProxThresholdLo, Hi: d.cfg.ProxThresholdHi}
	dec, err := d.prox.Run(d.regs, th, d.alsSat, d.engaged)
	if err != nil {
		return err
	}
	if dec.Skipped {
		sensors.Logf("driver: proximity cycle skipped, clear=%d saturated", dec.Clear)
		return nil
	}
	d.engaged = false
	if dec.Emit {
		d.sink.ReportDistance(int(dec.Distance))
	}
	d.buf.Publish(SlotDistance, ReadSlot{Data: uint32(dec.Distance), Interrupt: uint32(status)})
	return nil
}

// refreshALSThresholdsLocked re-centres the ALS interrupt window on the
// current clear count: lo = 0.8*ch0, hi = min(1.2*ch0, 65535).
func (d *Driver) refreshALSThresholdsLocked() error {
	ch0, err := sensors.ReadWord(d.regs, sensors.RegClearLo)
	if err != nil {
		return err
	}
	hi := min(12*uint32(ch0)/10, 0xFFFF)
	lo := 8 * uint32(ch0) / 10
	w := ALSWindow{Lo: uint16(lo), Hi: uint16(hi)}
	if err := sensors.WriteWindow(d.regs, sensors.RegALSMinThreshLo, w.Lo, w.Hi); err != nil {
		return err
	}
	d.alsWindow = w
	return nil
}

// readLuxLocked computes lux from the current channel registers. It
// returns ErrNoData unless the ADC is powered and STATUS reports a valid
// integration.
func (d *Driver) readLuxLocked() (lux.Result, error) {
	ctrl, err := d.regs.ReadRegister(sensors.RegControl)
	if err != nil {
		return lux.Result{}, err
	}
	const adcOn = sensors.CtrlADCEnable | sensors.CtrlPowerOn
	if ctrl&adcOn != adcOn {
		return lux.Result{}, fmt.Errorf("adc off (control 0x%02X): %w", ctrl, sensors.ErrNoData)
	}
	status, err := d.regs.ReadRegister(sensors.RegStatus)
	if err != nil {
		return lux.Result{}, err
	}
	if status&sensors.StatusALSValid == 0 {
		return lux.Result{}, fmt.Errorf("als not valid (status 0x%02X): %w", status, sensors.ErrNoData)
	}
	return d.computeLuxLocked()
}

func (d *Driver) computeLuxLocked() (lux.Result, error) {
	var s lux.Sample
	if err := d.regs.ReadRegisters(sensors.RegClearLo, s[:]); err != nil {
		return lux.Result{}, err
	}
	res, err := lux.Compute(s, d.cfg, d.hist)
	if err != nil {
		return res, err
	}
	if !res.Fallback {
		d.hist.Push(res.Lux)
	}
	d.lastLux = res.Lux
	return res, nil
}
