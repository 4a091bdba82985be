// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "errors"

// Fault taxonomy shared by the engines, the acquisition pipeline and the
// control surface. Callers match with errors.Is; producers wrap with %w.
var (
	// ErrTransport is a register I/O failure.
	ErrTransport = errors.New("register transport fault")
	// ErrSaturation means a channel clipped; the cycle is skipped.
	ErrSaturation = errors.New("channel saturated")
	// ErrArithmetic is an invalid gain or integration denominator.
	ErrArithmetic = errors.New("invalid gain or integration time")
	// ErrNoData means a command precondition was not met. No state changed.
	ErrNoData = errors.New("no data")
	// ErrWouldBlock is returned by a non-blocking read with nothing ready.
	ErrWouldBlock = errors.New("operation would block")
	// ErrRestartInterrupted is returned when a blocking call is cancelled.
	ErrRestartInterrupted = errors.New("interrupted, restart")
	// ErrPartialFailure means a multi-step sequence stopped midway and the
	// device state is indeterminate. Run the full sensor-on sequence again.
	ErrPartialFailure = errors.New("sequence aborted, device state indeterminate")
	// ErrInvalidArgument is a bad command code, cursor or payload.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBusy is returned when the single reader handle is already open.
	ErrBusy = errors.New("device busy")
)
