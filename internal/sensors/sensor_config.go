// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
)

// ALS integration time limits in milliseconds.
const (
	MinALSTime  = 50
	MaxALSTime  = 650
	ALSTimeStep = 50

	// MaxGainIndex is the largest valid ALS gain index (0=1x .. 3=120x).
	MaxGainIndex = 3

	// ConfigPayloadSize is the encoded size of SensorConfig.
	ConfigPayloadSize = 32
)

// SensorConfig holds the tunables of one sensor. The driver owns exactly one
// instance and changes it only through its control commands.
type SensorConfig struct {
	CalibrateTarget uint32 // lux*1000 reference used by gain-trim calibration
	ALSTime         uint16 // ms, [50,650] in steps of 50
	ScaleFactor     uint16
	GainTrim        uint32
	FilterHistory   uint8
	Gain            uint8 // index into the ALS gain table

	ALSThresholdHi  uint16
	ALSThresholdLo  uint16
	ProxThresholdHi uint16
	ProxThresholdLo uint16

	ProxIntTime    uint8 // written to ATIME while proximity runs
	ProxADCTime    uint8
	ProxWaitTime   uint8
	ProxIntrFilter uint8
	ProxConfig     uint8
	ProxPulseCount uint8
	ProxGain       uint8
}

// DefaultSensorConfig returns the attach-time configuration.
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		CalibrateTarget: 300000,
		ALSTime:         200,
		ScaleFactor:     1,
		GainTrim:        512,
		FilterHistory:   3,
		Gain:            2,
		ALSThresholdHi:  3000,
		ALSThresholdLo:  10,
		ProxThresholdHi: 700,
		ProxThresholdLo: 600,
		ProxIntTime:     0xEE, // 50ms
		ProxADCTime:     0xFF,
		ProxWaitTime:    0xEE,
		ProxIntrFilter:  0x13,
		ProxConfig:      0x00,
		ProxPulseCount:  0x04,
		ProxGain:        0x22,
	}
}

// ClampALSTime limits t to [MinALSTime, MaxALSTime] and rounds it to the
// nearest multiple of ALSTimeStep.
func ClampALSTime(t uint16) uint16 {
	if t < MinALSTime {
		t = MinALSTime
	}
	if t > MaxALSTime {
		t = MaxALSTime
	}
	return ((t + ALSTimeStep/2) / ALSTimeStep) * ALSTimeStep
}

// Clamp forces the ranged fields into their valid domains.
func (c *SensorConfig) Clamp() {
	c.ALSTime = ClampALSTime(c.ALSTime)
	if c.Gain > MaxGainIndex {
		c.Gain = MaxGainIndex
	}
}

// Validate reports whether the ranged fields are already in their domains.
func (c SensorConfig) Validate() error {
	if c.ALSTime != ClampALSTime(c.ALSTime) {
		return fmt.Errorf("als_time %d outside [%d,%d] or not a multiple of %d: %w",
			c.ALSTime, MinALSTime, MaxALSTime, ALSTimeStep, ErrNoData)
	}
	if c.Gain > MaxGainIndex {
		return fmt.Errorf("gain index %d > %d: %w", c.Gain, MaxGainIndex, ErrNoData)
	}
	return nil
}

// ALSSaturation is the clear-channel count treated as full scale while the
// proximity timing is programmed.
func (c SensorConfig) ALSSaturation() uint32 {
	return (256 - uint32(c.ProxIntTime)) << 10
}

// ProxSaturation is the proximity-channel full scale for ProxADCTime.
func (c SensorConfig) ProxSaturation() uint32 {
	return (256 - uint32(c.ProxADCTime)) << 10
}

// ALSIntegrationCode converts ALSTime to the ATIME register value.
func (c SensorConfig) ALSIntegrationCode() uint8 {
	cycles := uint8((int(c.ALSTime)/50)*18 - 1)
	return ^cycles
}

// MarshalBinary encodes the config in the fixed little-endian payload used
// by the config get/set commands.
func (c SensorConfig) MarshalBinary() ([]byte, error) {
	b := make([]byte, ConfigPayloadSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], c.CalibrateTarget)
	le.PutUint16(b[4:], c.ALSTime)
	le.PutUint16(b[6:], c.ScaleFactor)
	le.PutUint32(b[8:], c.GainTrim)
	b[12] = c.FilterHistory
	b[13] = c.Gain
	le.PutUint16(b[14:], c.ALSThresholdHi)
	le.PutUint16(b[16:], c.ALSThresholdLo)
	le.PutUint16(b[18:], c.ProxThresholdHi)
	le.PutUint16(b[20:], c.ProxThresholdLo)
	b[22] = c.ProxIntTime
	b[23] = c.ProxADCTime
	b[24] = c.ProxWaitTime
	b[25] = c.ProxIntrFilter
	b[26] = c.ProxConfig
	b[27] = c.ProxPulseCount
	b[28] = c.ProxGain
	// 29..31 reserved
	return b, nil
}

// UnmarshalBinary decodes a payload produced by MarshalBinary.
func (c *SensorConfig) UnmarshalBinary(b []byte) error {
	if len(b) < ConfigPayloadSize {
		return fmt.Errorf("config payload: need %d bytes, got %d: %w", ConfigPayloadSize, len(b), ErrInvalidArgument)
	}
	le := binary.LittleEndian
	*c = SensorConfig{
		CalibrateTarget: le.Uint32(b[0:]),
		ALSTime:         le.Uint16(b[4:]),
		ScaleFactor:     le.Uint16(b[6:]),
		GainTrim:        le.Uint32(b[8:]),
		FilterHistory:   b[12],
		Gain:            b[13],
		ALSThresholdHi:  le.Uint16(b[14:]),
		ALSThresholdLo:  le.Uint16(b[16:]),
		ProxThresholdHi: le.Uint16(b[18:]),
		ProxThresholdLo: le.Uint16(b[20:]),
		ProxIntTime:     b[22],
		ProxADCTime:     b[23],
		ProxWaitTime:    b[24],
		ProxIntrFilter:  b[25],
		ProxConfig:      b[26],
		ProxPulseCount:  b[27],
		ProxGain:        b[28],
	}
	return nil
}
