// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensorstest provides an in-memory register bank implementing
// sensors.RegisterAccess for tests and for the mock producer.
package sensorstest

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/alsprox/internal/sensors"
)

// Write records one register write.
type Write struct {
	Reg uint8
	Val uint8
}

// Registers is a 32-byte register bank. Reads of a register can be scripted
// with OnRead; failures can be injected per register.
type Registers struct {
	mu sync.Mutex

	Bank    [sensors.NumRegisters]byte
	Writes  []Write
	Special []uint8

	// FailRead and FailWrite make accesses to the listed registers fail.
	FailRead    map[uint8]bool
	FailWrite   map[uint8]bool
	FailSpecial bool

	// OnRead, when set, is called before a read of reg and may update the
	// bank (e.g. to feed a sequence of samples).
	OnRead func(reg uint8, bank *[sensors.NumRegisters]byte)
}

// New returns a bank holding the power-on image.
func New() *Registers {
	r := &Registers{
		FailRead:  map[uint8]bool{},
		FailWrite: map[uint8]bool{},
	}
	copy(r.Bank[:], sensors.InitRegisterBank[:])
	return r
}

func (r *Registers) ReadRegister(reg uint8) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.readLocked(reg); err != nil {
		return 0, err
	}
	return r.Bank[reg], nil
}

func (r *Registers) WriteRegister(reg, val uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(reg) >= sensors.NumRegisters {
		return fmt.Errorf("reg 0x%02X: %w", reg, sensors.ErrTransport)
	}
	if r.FailWrite[reg] {
		return fmt.Errorf("write reg 0x%02X: injected: %w", reg, sensors.ErrTransport)
	}
	r.Bank[reg] = val
	r.Writes = append(r.Writes, Write{Reg: reg, Val: val})
	return nil
}

func (r *Registers) ReadRegisters(reg uint8, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.readLocked(reg); err != nil {
		return err
	}
	for i := range p {
		a := int(reg) + i
		if a >= sensors.NumRegisters {
			return fmt.Errorf("block read past 0x1F: %w", sensors.ErrTransport)
		}
		if r.FailRead[uint8(a)] {
			return fmt.Errorf("read reg 0x%02X: injected: %w", a, sensors.ErrTransport)
		}
		p[i] = r.Bank[a]
	}
	return nil
}

func (r *Registers) SpecialFunction(fn uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSpecial {
		return fmt.Errorf("special function 0x%02X: injected: %w", fn, sensors.ErrTransport)
	}
	r.Special = append(r.Special, fn)
	if fn == sensors.CmdIntClear || fn == sensors.CmdALSIntClear || fn == sensors.CmdProxIntClear {
		r.Bank[sensors.RegStatus] &^= sensors.StatusALSInt | sensors.StatusProxInt
	}
	return nil
}

func (r *Registers) readLocked(reg uint8) error {
	if int(reg) >= sensors.NumRegisters {
		return fmt.Errorf("reg 0x%02X: %w", reg, sensors.ErrTransport)
	}
	if r.FailRead[reg] {
		return fmt.Errorf("read reg 0x%02X: injected: %w", reg, sensors.ErrTransport)
	}
	if r.OnRead != nil {
		r.OnRead(reg, &r.Bank)
	}
	return nil
}

// SetWord stores v little-endian at reg, reg+1.
func (r *Registers) SetWord(reg uint8, v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Bank[reg] = uint8(v)
	r.Bank[reg+1] = uint8(v >> 8)
}

// Word returns the little-endian value at reg, reg+1.
func (r *Registers) Word(reg uint8) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint16(r.Bank[reg]) | uint16(r.Bank[reg+1])<<8
}

// Set stores one register without recording a write.
func (r *Registers) Set(reg, val uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Bank[reg] = val
}

// Get returns one register without triggering OnRead.
func (r *Registers) Get(reg uint8) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Bank[reg]
}

// WriteLog returns a copy of the recorded writes.
func (r *Registers) WriteLog() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.Writes...)
}

// SpecialLog returns a copy of the recorded special functions.
func (r *Registers) SpecialLog() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint8(nil), r.Special...)
}

// ResetLog clears the recorded writes and special functions.
func (r *Registers) ResetLog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes = nil
	r.Special = nil
}

var _ sensors.RegisterAccess = (*Registers)(nil)
