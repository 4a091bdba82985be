// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/relabs-tech/alsprox/internal/sensors"
)

// Slot indices.
const (
	SlotLux      = 0
	SlotDistance = 1
)

// Buffer geometry: two slots of two little-endian uint32 each.
const (
	NumSlots   = 2
	SlotSize   = 8
	BufferSize = NumSlots * SlotSize
)

// ReadSlot is one published result. Interrupt holds the status byte of the
// cycle that produced Data.
type ReadSlot struct {
	Data      uint32 `json:"data"`
	Interrupt uint32 `json:"interrupt"`
}

// ReadBuffer hands results from the acquisition pipeline to a single reader.
// A weighted semaphore of size one serializes drains against publishes; a
// one-element channel wakes a blocked reader.
type ReadBuffer struct {
	sem    *semaphore.Weighted
	notify chan struct{}

	slots [NumSlots]ReadSlot
	ready bool
}

// NewReadBuffer returns an empty buffer.
func NewReadBuffer() *ReadBuffer {
	return &ReadBuffer{
		sem:    semaphore.NewWeighted(1),
		notify: make(chan struct{}, 1),
	}
}

// lock takes the semaphore. Acquire only fails on a done context, which
// context.Background never is.
func (b *ReadBuffer) lock() {
	if err := b.sem.Acquire(context.Background(), 1); err != nil {
		panic(err)
	}
}

// Publish stores s in slot i and marks the buffer ready.
func (b *ReadBuffer) Publish(i int, s ReadSlot) {
	b.lock()
	b.slots[i] = s
	b.ready = true
	b.sem.Release(1)

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Ready reports whether unread data is present.
func (b *ReadBuffer) Ready() bool {
	b.lock()
	defer b.sem.Release(1)
	return b.ready
}

// Peek returns the slots without draining them.
func (b *ReadBuffer) Peek() [NumSlots]ReadSlot {
	b.lock()
	defer b.sem.Release(1)
	return b.slots
}

// Reset clears both slots and the ready flag.
func (b *ReadBuffer) Reset() {
	b.lock()
	b.slots = [NumSlots]ReadSlot{}
	b.ready = false
	b.sem.Release(1)
}

// Drain copies up to min(len(p), BufferSize) bytes of the slots into p,
// then clears them. When nothing is ready it fails with ErrWouldBlock if
// nonblock is set, otherwise it waits for the next publish. Cancelling ctx
// while waiting yields ErrRestartInterrupted and leaves the buffer intact.
func (b *ReadBuffer) Drain(ctx context.Context, p []byte, nonblock bool) (int, error) {
	for {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			return 0, fmt.Errorf("read: %w: %w", sensors.ErrRestartInterrupted, err)
		}
		if b.ready {
			var raw [BufferSize]byte
			for i, s := range b.slots {
				binary.LittleEndian.PutUint32(raw[i*SlotSize:], s.Data)
				binary.LittleEndian.PutUint32(raw[i*SlotSize+4:], s.Interrupt)
			}
			n := copy(p, raw[:])
			b.slots = [NumSlots]ReadSlot{}
			b.ready = false
			b.sem.Release(1)
			return n, nil
		}
		b.sem.Release(1)

		if nonblock {
			return 0, sensors.ErrWouldBlock
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("read: %w: %w", sensors.ErrRestartInterrupted, ctx.Err())
		case <-b.notify:
		}
	}
}
