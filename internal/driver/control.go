// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/relabs-tech/alsprox/internal/proximity"
	"github.com/relabs-tech/alsprox/internal/sensors"
)

// Command is a control command code.
type Command uint8

const (
	CmdTest Command = iota + 1
	CmdSensorCheck
	CmdSensorConfig
	CmdSensorOn
	CmdSensorOff
	CmdALSOn
	CmdALSOff
	CmdALSData
	CmdALSCalibrate
	CmdConfigGet
	CmdConfigSet
	CmdProxOn
	CmdProxOff
	CmdProxData
	CmdProxCalibrate
)

var commandNames = map[Command]string{
	CmdTest:          "TEST",
	CmdSensorCheck:   "SENSOR_CHECK",
	CmdSensorConfig:  "SENSOR_CONFIG",
	CmdSensorOn:      "SENSOR_ON",
	CmdSensorOff:     "SENSOR_OFF",
	CmdALSOn:         "ALS_ON",
	CmdALSOff:        "ALS_OFF",
	CmdALSData:       "ALS_DATA",
	CmdALSCalibrate:  "ALS_CALIBRATE",
	CmdConfigGet:     "CONFIG_GET",
	CmdConfigSet:     "CONFIG_SET",
	CmdProxOn:        "PROX_ON",
	CmdProxOff:       "PROX_OFF",
	CmdProxData:      "PROX_DATA",
	CmdProxCalibrate: "PROX_CALIBRATE",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// ParseCommand maps a command name (case-insensitive) to its code.
func ParseCommand(name string) (Command, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q: %w", name, sensors.ErrInvalidArgument)
}

// Test reads the CONTROL register.
func (d *Driver) Test() (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.ReadRegister(sensors.RegControl)
}

// SensorCheck returns CONTROL, failing with ErrNoData when every sensor is
// already enabled.
func (d *Driver) SensorCheck() (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctrl, err := d.regs.ReadRegister(sensors.RegControl)
	if err != nil {
		return 0, err
	}
	if ctrl == sensors.CtrlSensorsEnable {
		return ctrl, fmt.Errorf("sensor check: already enabled: %w", sensors.ErrNoData)
	}
	return ctrl, nil
}

// SetSensorConfig replaces the configuration as given. Out-of-range values
// are rejected with ErrNoData; use ConfigSet to have them clamped.
func (d *Driver) SetSensorConfig(cfg sensors.SensorConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("sensor config: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	d.recomputeSaturation()
	return nil
}

// SensorOn programs the proximity timing set and enables every sensor.
func (d *Driver) SensorOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hist.Reset()
	if err := d.regs.SpecialFunction(sensors.CmdALSIntClear); err != nil {
		return fmt.Errorf("sensor on: %w", err)
	}
	if err := proximity.ProgramTiming(d.regs, d.cfg); err != nil {
		return fmt.Errorf("sensor on: %w", err)
	}
	if err := d.regs.WriteRegister(sensors.RegControl, sensors.CtrlSensorsEnable); err != nil {
		return fmt.Errorf("sensor on: %w", err)
	}
	return nil
}

// SensorOff powers the device down.
func (d *Driver) SensorOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.regs.WriteRegister(sensors.RegControl, 0); err != nil {
		return fmt.Errorf("sensor off: %w", err)
	}
	return nil
}

// ALSOn starts ambient light sensing. The power-up sequence only runs when
// the ADC is currently off.
func (d *Driver) ALSOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctrl, err := d.regs.ReadRegister(sensors.RegControl)
	if err != nil {
		return fmt.Errorf("als on: %w", err)
	}
	if ctrl&sensors.CtrlADCEnable == 0 {
		if err := d.alsPowerUpLocked(); err != nil {
			return fmt.Errorf("als on: %w", err)
		}
	}
	d.alsOn = true
	return nil
}

func (d *Driver) alsPowerUpLocked() error {
	d.hist.Reset()
	if err := d.regs.SpecialFunction(sensors.CmdALSIntClear); err != nil {
		return err
	}
	if err := d.regs.WriteRegister(sensors.RegALSTime, d.cfg.ALSIntegrationCode()); err != nil {
		return err
	}
	if err := d.regs.WriteRegister(sensors.RegInterrupt, d.cfg.ProxIntrFilter); err != nil {
		return err
	}
	gain, err := d.regs.ReadRegister(sensors.RegGain)
	if err != nil {
		return err
	}
	if err := d.regs.WriteRegister(sensors.RegGain, gain&0xFC|d.cfg.Gain&0x03); err != nil {
		return err
	}
	ctrl, err := d.regs.ReadRegister(sensors.RegControl)
	if err != nil {
		return err
	}
	ctrl |= sensors.CtrlADCEnable | sensors.CtrlPowerOn | sensors.CtrlALSIntEnable
	if err := d.regs.WriteRegister(sensors.RegControl, ctrl); err != nil {
		return err
	}
	return d.refreshALSThresholdsLocked()
}

// ALSOff stops ambient light sensing, powering the device down unless
// proximity is still running.
func (d *Driver) ALSOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hist.Reset()
	ctrl, err := d.regs.ReadRegister(sensors.RegControl)
	if err != nil {
		return fmt.Errorf("als off: %w", err)
	}
	if ctrl&sensors.CtrlProxEnable == 0 {
		if err := d.regs.WriteRegister(sensors.RegControl, 0); err != nil {
			return fmt.Errorf("als off: %w", err)
		}
	}
	d.alsOn = false
	return nil
}

// ALSData returns the current lux value.
func (d *Driver) ALSData() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.readLuxLocked()
	if err != nil {
		return 0, fmt.Errorf("als data: %w", err)
	}
	return res.Lux, nil
}

// ALSCalibrate derives the gain trim from the current reading so that it
// would match CalibrateTarget: gain_trim = target*512/lux. It needs power,
// ADC and proximity enabled and a valid ALS integration.
func (d *Driver) ALSCalibrate() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	const need = sensors.CtrlPowerOn | sensors.CtrlADCEnable | sensors.CtrlProxEnable
	ctrl, err := d.regs.ReadRegister(sensors.RegControl)
	if err != nil {
		return 0, fmt.Errorf("als calibrate: %w", err)
	}
	if ctrl&need != need {
		return 0, fmt.Errorf("als calibrate: control 0x%02X: %w", ctrl, sensors.ErrNoData)
	}
	status, err := d.regs.ReadRegister(sensors.RegStatus)
	if err != nil {
		return 0, fmt.Errorf("als calibrate: %w", err)
	}
	if status&sensors.StatusALSValid == 0 {
		return 0, fmt.Errorf("als calibrate: status 0x%02X: %w", status, sensors.ErrNoData)
	}
	res, err := d.computeLuxLocked()
	if err != nil {
		return 0, fmt.Errorf("als calibrate: %w", err)
	}
	trim, err := GainTrim(d.cfg.CalibrateTarget, res.Lux)
	if err != nil {
		return 0, fmt.Errorf("als calibrate: %w", err)
	}
	d.cfg.GainTrim = trim
	sensors.Logf("driver: gain trim %d from lux %d (target %d)", trim, res.Lux, d.cfg.CalibrateTarget)
	return trim, nil
}

// GainTrim computes target*512/lux. A zero lux reading has no defined
// trim and returns ErrNoData.
func GainTrim(target uint32, lux int) (uint32, error) {
	if lux <= 0 {
		return 0, fmt.Errorf("lux %d: %w", lux, sensors.ErrNoData)
	}
	return uint32(uint64(target) * 512 / uint64(lux)), nil
}

// ConfigGet returns the current configuration.
func (d *Driver) ConfigGet() sensors.SensorConfig {
	return d.Config()
}

// ConfigSet replaces the configuration, clamping als_time to [50,650]
// (nearest 50) and the gain index to 3, and recomputes the saturation
// constants. It returns the stored configuration.
func (d *Driver) ConfigSet(cfg sensors.SensorConfig) sensors.SensorConfig {
	cfg.Clamp()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	d.recomputeSaturation()
	return d.cfg
}

// ProxOn starts proximity sensing and runs one evaluation immediately,
// which always reports FAR. ATIME keeps the ALS integration time.
func (d *Driver) ProxOn() (proximity.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engaged = true
	if !d.wakeHeld {
		d.wake.Acquire()
		d.wakeHeld = true
	}
	if err := proximity.ProgramRegisters(d.regs, d.cfg, d.cfg.ALSIntegrationCode()); err != nil {
		return proximity.Decision{}, fmt.Errorf("prox on: %w", err)
	}
	ctrl, err := d.regs.ReadRegister(sensors.RegControl)
	if err != nil {
		return proximity.Decision{}, fmt.Errorf("prox on: %w", err)
	}
	ctrl |= sensors.CtrlProxEnable | sensors.CtrlPowerOn | sensors.CtrlProxIntEnable | sensors.CtrlWaitEnable
	if err := d.regs.WriteRegister(sensors.RegControl, ctrl); err != nil {
		return proximity.Decision{}, fmt.Errorf("prox on: %w", err)
	}

	th := proximity.Thresholds{Lo: d.cfg.ProxThresholdLo, Hi: d.cfg.ProxThresholdHi}
	dec, err := d.prox.Run(d.regs, th, d.alsSat, d.engaged)
	if err != nil {
		return dec, fmt.Errorf("prox on: %w", err)
	}
	if !dec.Skipped {
		d.engaged = false
		if dec.Emit {
			d.sink.ReportDistance(int(dec.Distance))
		}
	}
	return dec, nil
}

// ProxOff stops proximity sensing. Ambient light sensing is restarted when
// it was on.
func (d *Driver) ProxOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.wakeHeld {
		d.wake.Release()
		d.wakeHeld = false
	}
	if err := d.regs.WriteRegister(sensors.RegControl, 0); err != nil {
		return fmt.Errorf("prox off: %w", err)
	}
	if d.alsOn {
		if err := d.alsPowerUpLocked(); err != nil {
			return fmt.Errorf("prox off: %w", err)
		}
	}
	d.engaged = false
	d.prox.Reset()
	return nil
}

// ProxData polls the clear and proximity channels.
func (d *Driver) ProxData() (proximity.Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := proximity.Poll(d.regs, d.alsSat)
	if err != nil {
		return r, fmt.Errorf("prox data: %w", err)
	}
	return r, nil
}

// ProxCalibrate runs the calibration sweep and stores the derived band. It
// holds the device lock for the whole sweep (about two seconds).
func (d *Driver) ProxCalibrate(ctx context.Context) (proximity.CalibrationResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.cal.Run(ctx, d.cfg)
	if err != nil {
		return res, err
	}
	d.cfg.ProxThresholdHi = res.Thresholds.Hi
	d.cfg.ProxThresholdLo = res.Thresholds.Lo
	return res, nil
}

// Dispatch runs cmd with a fixed little-endian payload and returns the
// command's output payload:
//
//	TEST, SENSOR_CHECK      -> 1 byte CONTROL
//	SENSOR_CONFIG, CONFIG_SET <- 32 byte config
//	CONFIG_GET, CONFIG_SET  -> 32 byte config
//	ALS_DATA                -> uint32 lux
//	ALS_CALIBRATE           -> uint32 gain trim
//	PROX_DATA               -> uint16 clear, uint16 prox
//	PROX_ON                 -> uint32 distance
//	PROX_CALIBRATE          -> uint16 hi, uint16 lo
func (d *Driver) Dispatch(ctx context.Context, cmd Command, arg []byte) ([]byte, error) {
	switch cmd {
	case CmdTest:
		v, err := d.Test()
		return []byte{v}, err
	case CmdSensorCheck:
		v, err := d.SensorCheck()
		return []byte{v}, err
	case CmdSensorConfig:
		var cfg sensors.SensorConfig
		if err := cfg.UnmarshalBinary(arg); err != nil {
			return nil, err
		}
		return nil, d.SetSensorConfig(cfg)
	case CmdSensorOn:
		return nil, d.SensorOn()
	case CmdSensorOff:
		return nil, d.SensorOff()
	case CmdALSOn:
		return nil, d.ALSOn()
	case CmdALSOff:
		return nil, d.ALSOff()
	case CmdALSData:
		v, err := d.ALSData()
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil
	case CmdALSCalibrate:
		v, err := d.ALSCalibrate()
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, v), nil
	case CmdConfigGet:
		return d.ConfigGet().MarshalBinary()
	case CmdConfigSet:
		var cfg sensors.SensorConfig
		if err := cfg.UnmarshalBinary(arg); err != nil {
			return nil, err
		}
		return d.ConfigSet(cfg).MarshalBinary()
	case CmdProxOn:
		dec, err := d.ProxOn()
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(dec.Distance)), nil
	case CmdProxOff:
		return nil, d.ProxOff()
	case CmdProxData:
		r, err := d.ProxData()
		if err != nil {
			return nil, err
		}
		b := binary.LittleEndian.AppendUint16(nil, r.Clear)
		return binary.LittleEndian.AppendUint16(b, r.Prox), nil
	case CmdProxCalibrate:
		res, err := d.ProxCalibrate(ctx)
		if err != nil {
			return nil, err
		}
		b := binary.LittleEndian.AppendUint16(nil, res.Thresholds.Hi)
		return binary.LittleEndian.AppendUint16(b, res.Thresholds.Lo), nil
	}
	return nil, fmt.Errorf("command %s: %w", cmd, sensors.ErrInvalidArgument)
}
