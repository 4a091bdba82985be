// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package irq turns sensor interrupt edges into work for a single
// acquisition goroutine.
package irq

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Logf is used for worker diagnostics. Tests may replace it.
var Logf = log.Printf

// DefaultEdgeTimeout bounds each wait for an edge so WatchPin notices
// cancellation.
const DefaultEdgeTimeout = 500 * time.Millisecond

// Queue is a one-deep wake queue. Signals raised while a wake is already
// pending collapse into it, so at most one acquisition runs at a time and
// none is lost.
type Queue struct {
	ch        chan struct{}
	signals   atomic.Uint64
	coalesced atomic.Uint64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{ch: make(chan struct{}, 1)}
}

// Signal queues a wake without blocking. It returns false when a wake was
// already pending.
func (q *Queue) Signal() bool {
	q.signals.Add(1)
	select {
	case q.ch <- struct{}{}:
		return true
	default:
		q.coalesced.Add(1)
		return false
	}
}

// Stats returns the number of signals and how many were coalesced.
func (q *Queue) Stats() (signals, coalesced uint64) {
	return q.signals.Load(), q.coalesced.Load()
}

// Handler runs one acquisition.
type Handler func(ctx context.Context) error

// Run calls h once per wake until ctx is done. Handler errors are logged
// and do not stop the loop.
func (q *Queue) Run(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.ch:
			if err := h(ctx); err != nil {
				Logf("irq: acquisition: %v", err)
			}
		}
	}
}

// WatchPin configures pin as a pulled-up input with falling-edge detection
// (the sensor's INT line is active low, open drain) and signals q on every
// edge until ctx is done.
func WatchPin(ctx context.Context, pin gpio.PinIn, q *Queue, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultEdgeTimeout
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("irq: configure %s: %w", pin, err)
	}
	defer func() {
		if err := pin.Halt(); err != nil {
			Logf("irq: halt %s: %v", pin, err)
		}
	}()
	Logf("irq: watching %s", pin)

	// The line may already be asserted from before we armed the edge.
	if pin.Read() == gpio.Low {
		q.Signal()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pin.WaitForEdge(timeout) {
			q.Signal()
		}
	}
}
