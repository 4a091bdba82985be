// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/alsprox/internal/proximity"
	"github.com/relabs-tech/alsprox/internal/sensors"
)

func TestOpenIsExclusive(t *testing.T) {
	d, _, _ := newTestDriver(t, proximity.SaturationFail)
	h, err := d.Open(true)
	require.NoError(t, err)

	_, err = d.Open(true)
	assert.True(t, errors.Is(err, sensors.ErrBusy))

	require.NoError(t, h.Close())
	h2, err := d.Open(false)
	require.NoError(t, err)
	require.NoError(t, h2.Close())
}

func TestOpenResetsBuffer(t *testing.T) {
	d, _, _ := newTestDriver(t, proximity.SaturationFail)
	d.Buffer().Publish(SlotLux, ReadSlot{Data: 9})
	h, err := d.Open(true)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Read(context.Background(), make([]byte, 16))
	assert.True(t, errors.Is(err, sensors.ErrWouldBlock))
}

func TestCloseWhileReading(t *testing.T) {
	d, _, _ := newTestDriver(t, proximity.SaturationFail)
	h, err := d.Open(true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, err := h.Read(context.Background(), make([]byte, 16))
			if errors.Is(err, sensors.ErrInvalidArgument) {
				return
			}
			assert.True(t, errors.Is(err, sensors.ErrWouldBlock))
		}
	}()
	require.NoError(t, h.Close())
	wg.Wait()

	_, err = h.Read(context.Background(), make([]byte, 16))
	assert.True(t, errors.Is(err, sensors.ErrInvalidArgument))
	require.NoError(t, h.Close())
}

func TestHandleSeek(t *testing.T) {
	d, _, _ := newTestDriver(t, proximity.SaturationFail)
	h, err := d.Open(true)
	require.NoError(t, err)
	defer h.Close()

	pos, err := h.Seek(0x10, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(0x10), pos)

	pos, err = h.Seek(0x0F, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0x1F), pos)

	for _, tc := range []struct {
		off    int64
		whence int
	}{
		{1, io.SeekCurrent},
		{32, io.SeekStart},
		{-1, io.SeekStart},
		{0, io.SeekEnd},
	} {
		_, err := h.Seek(tc.off, tc.whence)
		assert.Truef(t, errors.Is(err, sensors.ErrInvalidArgument), "seek(%d, %d)", tc.off, tc.whence)
	}
	cur, err := h.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0x1F), cur)
}

func TestHandleWriteAtCursor(t *testing.T) {
	d, regs, _ := newTestDriver(t, proximity.SaturationFail)
	h, err := d.Open(true)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Seek(sensors.RegProxMinThreshLo, io.SeekStart)
	require.NoError(t, err)
	n, err := h.Write([]byte{0x58, 0x02, 0xBC, 0x02})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint16(600), regs.Word(sensors.RegProxMinThreshLo))
	assert.Equal(t, uint16(700), regs.Word(sensors.RegProxMaxThreshLo))

	// cursor unchanged
	p := make([]byte, 2)
	_, err = h.ReadRegisters(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x58, 0x02}, p)

	_, err = h.Seek(30, io.SeekStart)
	require.NoError(t, err)
	_, err = h.Write([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, sensors.ErrInvalidArgument))
	n, err = h.Write([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCloseClearsEngaged(t *testing.T) {
	d, regs, _ := newTestDriver(t, proximity.SaturationFail)
	regs.FailWrite[sensors.RegProxMinThreshLo] = true
	h, err := d.Open(true)
	require.NoError(t, err)

	// the first evaluation fails, so engaged survives
	_, err = d.ProxOn()
	require.Error(t, err)
	require.True(t, d.Snapshot().Engaged)

	require.NoError(t, h.Close())
	assert.False(t, d.Snapshot().Engaged)

	_, err = h.Write([]byte{0})
	assert.True(t, errors.Is(err, sensors.ErrInvalidArgument))
}
