// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/relabs-tech/alsprox/internal/sensors"
)

// Handle is the single open byte-stream view of the device: a register
// cursor for raw register access plus the read buffer.
type Handle struct {
	d        *Driver
	pos      int64
	nonblock bool
	closed   atomic.Bool
}

// Open returns the byte-stream handle. Only one handle may be open at a
// time; a second Open fails with ErrBusy. Opening resets the read buffer.
func (d *Driver) Open(nonblock bool) (*Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil, fmt.Errorf("open: %w", sensors.ErrBusy)
	}
	d.open = true
	d.buf.Reset()
	return &Handle{d: d, nonblock: nonblock}, nil
}

// Close releases the handle and clears the proximity engaged flag.
func (h *Handle) Close() error {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	if h.closed.Swap(true) {
		return nil
	}
	h.d.open = false
	h.d.engaged = false
	return nil
}

// Seek moves the register cursor. Only io.SeekStart and io.SeekCurrent are
// supported and the result must lie in [0, NumRegisters).
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = h.pos + offset
	default:
		return h.pos, fmt.Errorf("seek whence %d: %w", whence, sensors.ErrInvalidArgument)
	}
	if pos < 0 || pos >= sensors.NumRegisters {
		return h.pos, fmt.Errorf("seek to %d: %w", pos, sensors.ErrInvalidArgument)
	}
	h.pos = pos
	return pos, nil
}

// Write stores p into consecutive registers starting at the cursor. The
// cursor does not advance.
func (h *Handle) Write(p []byte) (int, error) {
	if err := h.check(len(p)); err != nil {
		return 0, err
	}
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	for i, v := range p {
		if err := h.d.regs.WriteRegister(uint8(h.pos)+uint8(i), v); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// ReadRegisters fills p from consecutive registers starting at the cursor.
// The cursor does not advance.
func (h *Handle) ReadRegisters(p []byte) (int, error) {
	if err := h.check(len(p)); err != nil {
		return 0, err
	}
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	for i := range p {
		v, err := h.d.regs.ReadRegister(uint8(h.pos) + uint8(i))
		if err != nil {
			return i, err
		}
		p[i] = v
	}
	return len(p), nil
}

// Read drains the read buffer into p (see ReadBuffer.Drain).
func (h *Handle) Read(ctx context.Context, p []byte) (int, error) {
	if h.closed.Load() {
		return 0, fmt.Errorf("read: closed: %w", sensors.ErrInvalidArgument)
	}
	return h.d.buf.Drain(ctx, p, h.nonblock)
}

func (h *Handle) check(n int) error {
	if h.closed.Load() {
		return fmt.Errorf("handle closed: %w", sensors.ErrInvalidArgument)
	}
	if h.pos+int64(n) > sensors.NumRegisters {
		return fmt.Errorf("%d bytes at 0x%02X past register 0x1F: %w", n, h.pos, sensors.ErrInvalidArgument)
	}
	return nil
}
