// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
)

// DefaultAddress is the 7-bit I2C address of the TMD2771.
const DefaultAddress = 0x39

// Logf is used by the sensor packages for diagnostics. Tests may replace it.
var Logf = log.Printf

// RegisterAccess is the byte-register transport the signal-processing core
// runs on. Implementations must be safe for use from one goroutine at a time;
// the driver serializes access with its own lock.
type RegisterAccess interface {
	// ReadRegister reads one byte register.
	ReadRegister(reg uint8) (uint8, error)
	// WriteRegister writes one byte register.
	WriteRegister(reg, val uint8) error
	// ReadRegisters fills p from consecutive registers starting at reg.
	ReadRegisters(reg uint8, p []byte) error
	// SpecialFunction issues a special-function command (interrupt clears).
	SpecialFunction(fn uint8) error
}

// I2CRegisters implements RegisterAccess over a periph.io I2C bus.
type I2CRegisters struct {
	dev i2c.Dev
}

// NewI2CRegisters binds the transport to addr on bus.
func NewI2CRegisters(bus i2c.Bus, addr uint16) *I2CRegisters {
	if addr == 0 {
		addr = DefaultAddress
	}
	return &I2CRegisters{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

func (r *I2CRegisters) ReadRegister(reg uint8) (uint8, error) {
	var b [1]byte
	if err := r.dev.Tx([]byte{CmdSelect | CmdByte | reg}, b[:]); err != nil {
		return 0, fmt.Errorf("read reg 0x%02X: %v: %w", reg, err, ErrTransport)
	}
	return b[0], nil
}

func (r *I2CRegisters) WriteRegister(reg, val uint8) error {
	if err := r.dev.Tx([]byte{CmdSelect | CmdByte | reg, val}, nil); err != nil {
		return fmt.Errorf("write reg 0x%02X: %v: %w", reg, err, ErrTransport)
	}
	return nil
}

func (r *I2CRegisters) ReadRegisters(reg uint8, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := r.dev.Tx([]byte{CmdSelect | CmdAutoIncr | reg}, p); err != nil {
		return fmt.Errorf("block read 0x%02X+%d: %v: %w", reg, len(p), err, ErrTransport)
	}
	return nil
}

func (r *I2CRegisters) SpecialFunction(fn uint8) error {
	if err := r.dev.Tx([]byte{CmdSelect | CmdSpecialFn | fn}, nil); err != nil {
		return fmt.Errorf("special function 0x%02X: %v: %w", fn, err, ErrTransport)
	}
	return nil
}

func (r *I2CRegisters) String() string {
	return fmt.Sprintf("tmd2771@%s/0x%02X", r.dev.Bus, r.dev.Addr)
}

// ReadWord reads a little-endian 16-bit value from reg and reg+1.
func ReadWord(regs RegisterAccess, reg uint8) (uint16, error) {
	var b [2]byte
	if err := regs.ReadRegisters(reg, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// WriteWindow writes a lo/hi threshold pair as four consecutive byte
// registers starting at reg.
func WriteWindow(regs RegisterAccess, reg uint8, lo, hi uint16) error {
	vals := [4]uint8{uint8(lo), uint8(lo >> 8), uint8(hi), uint8(hi >> 8)}
	for i, v := range vals {
		if err := regs.WriteRegister(reg+uint8(i), v); err != nil {
			return err
		}
	}
	return nil
}
