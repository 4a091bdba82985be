// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/light"
	"github.com/relabs-tech/alsprox/internal/proximity"
)

// consoleSink prints driver events directly.
type consoleSink struct{}

func (consoleSink) ReportLux(v int) {
	fmt.Println(FormatLux(light.Lux{Time: time.Now().UnixMilli(), Lux: v}))
}

func (consoleSink) ReportDistance(v int) {
	fmt.Println(FormatDistance(light.Distance{
		Time:     time.Now().UnixMilli(),
		Distance: v,
		State:    proximity.Distance(v).String(),
	}))
}

// RunMockConsole runs the full acquisition path on the simulated sensor and
// prints events, without MQTT or hardware.
func RunMockConsole() error {
	cfg := config.Default()
	d := NewDriver(NewSimulatedSensor(), cfg, consoleSink{})
	if err := StartSensing(d); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(config.Millis(cfg.PollInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return StopSensing(d)
		case <-ticker.C:
			if err := d.HandleInterrupt(ctx); err != nil {
				fmt.Printf("[ERR ]  %v\n", err)
			}
		}
	}
}
