// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package lux converts raw clear/IR photodiode counts into illuminance.
//
// All arithmetic is fixed point. The clear/IR ratio is Q15 and selects a
// segment of a piecewise-linear table of coefficients; both channels are
// normalized to a 400ms, 1x-gain reference before the coefficients apply.
package lux

import (
	"fmt"

	"github.com/relabs-tech/alsprox/internal/sensors"
)

// MaxLux is reported for saturated channels and is the upper clamp.
const MaxLux = 10000

// HistoryDepth is the number of past results kept for fallback.
const HistoryDepth = 3

// TableEntry is one segment of the lux coefficient table. Ratio is the
// inclusive Q15 upper bound of IR/clear for which the coefficients apply.
type TableEntry struct {
	Ratio uint32
	Clear uint32
	IR    uint32
}

// DefaultTable is the coefficient table, ascending by Ratio and terminated
// by a zero sentinel.
var DefaultTable = [...]TableEntry{
	{Ratio: 9830, Clear: 8320, IR: 15360},
	{Ratio: 12452, Clear: 10554, IR: 22797},
	{Ratio: 14746, Clear: 6234, IR: 11430},
	{Ratio: 17695, Clear: 3968, IR: 6400},
	{},
}

// GainTable maps the 2-bit gain index to the analog gain multiplier.
var GainTable = [4]uint32{1, 8, 16, 120}

// Result is the outcome of one computation.
type Result struct {
	Lux int
	// Fallback is set when the ratio ran past the table and Lux was taken
	// from history.
	Fallback bool
	// Saturated is set when either channel hit full scale.
	Saturated bool
}

// Sample is a raw clear/IR pair as read from registers 0x14-0x17.
type Sample [4]byte

// Clear returns the little-endian clear channel.
func (s Sample) Clear() uint16 { return uint16(s[0]) | uint16(s[1])<<8 }

// IR returns the little-endian infrared channel.
func (s Sample) IR() uint16 { return uint16(s[2]) | uint16(s[3])<<8 }

// Compute runs one lux conversion. hist may be nil, in which case a table
// overrun yields 0. Compute never writes hist.
func Compute(s Sample, cfg sensors.SensorConfig, hist *History) (Result, error) {
	alsTime := uint64(cfg.ALSTime)
	denominator := (alsTime + 25) / 50
	saturation := 300 * alsTime
	if saturation > 65535 {
		saturation = 65535
	}

	clear := uint64(s.Clear()) * uint64(cfg.ScaleFactor)
	ir := uint64(s.IR()) * uint64(cfg.ScaleFactor)
	if ir > clear {
		clear, ir = ir, clear
	}

	gain := uint64(GainTable[cfg.Gain&0x3])

	if clear >= saturation || ir >= saturation {
		return Result{Lux: MaxLux, Saturated: true}, nil
	}
	if clear == 0 {
		return Result{}, nil
	}
	if gain == 0 || gain > 127 {
		return Result{}, fmt.Errorf("lux: gain %d: %w", gain, sensors.ErrArithmetic)
	}
	if denominator == 0 {
		return Result{}, fmt.Errorf("lux: als_time %d: %w", alsTime, sensors.ErrArithmetic)
	}

	ratio := (ir << 15) / clear
	var seg *TableEntry
	for i := range DefaultTable {
		e := &DefaultTable[i]
		if e.Ratio == 0 {
			break
		}
		if uint64(e.Ratio) >= ratio {
			seg = e
			break
		}
	}
	if seg == nil {
		last, ok := hist.Last()
		if !ok {
			last = 0
		}
		return Result{Lux: last, Fallback: true}, nil
	}

	clearN := normalize(clear, gain, alsTime)
	irN := normalize(ir, gain, alsTime)

	v := int64(clearN)*int64(seg.Clear) - int64(irN)*int64(seg.IR) + 32000
	v = 4 * v / 64000
	if v < 0 {
		v = 0
	}
	if v > MaxLux {
		v = MaxLux
	}
	return Result{Lux: int(v)}, nil
}

// normalize scales a count to the 400ms / 1x reference.
func normalize(v, gain, alsTime uint64) uint64 {
	return ((v*400+gain/2)/gain + alsTime/2) / alsTime
}

// History keeps the last HistoryDepth lux values, most recent first.
// The zero value is not usable; call NewHistory or Reset.
type History struct {
	vals [HistoryDepth]int
}

// NewHistory returns an empty history.
func NewHistory() *History {
	h := &History{}
	h.Reset()
	return h
}

// Reset marks every slot as empty.
func (h *History) Reset() {
	for i := range h.vals {
		h.vals[i] = -1
	}
}

// Push records v as the most recent value.
func (h *History) Push(v int) {
	copy(h.vals[1:], h.vals[:HistoryDepth-1])
	h.vals[0] = v
}

// Last returns the most recent value, or false when empty.
func (h *History) Last() (int, bool) {
	if h == nil || h.vals[0] < 0 {
		return 0, false
	}
	return h.vals[0], true
}

// Values returns the slots, most recent first; empty slots are -1.
func (h *History) Values() [HistoryDepth]int {
	return h.vals
}
