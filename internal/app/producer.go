// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/driver"
	"github.com/relabs-tech/alsprox/internal/irq"
)

// RunProducer drives the sensor from its interrupt line (or a poll ticker
// when no pin is configured) and publishes lux and distance events to MQTT.
// The register debug server runs alongside on the same driver.
func RunProducer() error {
	log.Println("starting alsprox producer")

	cfg := config.Get()

	regs, release, err := OpenSensor(cfg)
	if err != nil {
		return err
	}
	defer release()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	sink := NewMQTTSink(MQTTPublisher(client), cfg)
	d := NewDriver(regs, cfg, sink)
	if cfg.CalibrationFile != "" {
		if _, err := ApplyCalibration(d, cfg.CalibrationFile); err != nil {
			return err
		}
	}

	if err := StartSensing(d); err != nil {
		return err
	}
	defer func() {
		if err := StopSensing(d); err != nil {
			log.Printf("producer: shutdown: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pin gpio.PinIO
	if cfg.IRQPin != "" {
		if pin = gpioreg.ByName(cfg.IRQPin); pin == nil {
			return fmt.Errorf("unknown IRQ pin %q", cfg.IRQPin)
		}
	}

	q := irq.NewQueue()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return q.Run(ctx, d.HandleInterrupt) })

	if pin != nil {
		g.Go(func() error {
			return irq.WatchPin(ctx, pin, q, config.Millis(cfg.IRQEdgeTimeout))
		})
	} else {
		log.Printf("producer: no IRQ pin, polling every %dms", cfg.PollInterval)
		g.Go(func() error { return PollLoop(ctx, q, config.Millis(cfg.PollInterval)) })
	}

	g.Go(func() error { return LogStats(ctx, q, d, config.Millis(cfg.ConsoleLogInterval)) })

	if cfg.RegisterDebugPort != 0 {
		srv := &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.RegisterDebugPort),
			Handler: NewRegisterDebugMux(d, cfg),
		}
		g.Go(func() error {
			log.Printf("producer: register debug listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Println("producer: stopped")
		return nil
	}
	return err
}

// StartSensing powers the sensor and enables both ambient light and
// proximity sensing.
func StartSensing(d *driver.Driver) error {
	if err := d.SensorOn(); err != nil {
		return err
	}
	if err := d.ALSOn(); err != nil {
		return err
	}
	dec, err := d.ProxOn()
	if err != nil {
		return err
	}
	log.Printf("producer: sensing started, distance %s", dec.Distance)
	return nil
}

// StopSensing disables both sensors.
func StopSensing(d *driver.Driver) error {
	return errors.Join(d.ProxOff(), d.ALSOff())
}

// PollLoop signals q at a fixed interval until ctx is done.
func PollLoop(ctx context.Context, q *irq.Queue, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			q.Signal()
		}
	}
}

// LogStats logs the wake counters and latest readings at a fixed interval.
func LogStats(ctx context.Context, q *irq.Queue, d *driver.Driver, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			signals, coalesced := q.Stats()
			snap := d.Snapshot()
			log.Printf("producer: wakes=%d coalesced=%d lux=%d distance=%s window=%d..%d",
				signals, coalesced, snap.LastLux, snap.Distance, snap.ProxWindow.Low, snap.ProxWindow.High)
		}
	}
}
