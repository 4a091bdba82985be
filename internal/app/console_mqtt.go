// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/light"
)

// FormatLux renders one lux event for the console.
func FormatLux(l light.Lux) string {
	return fmt.Sprintf("[LUX ]  t=%s lux=%5d", time.UnixMilli(l.Time).Format("15:04:05.000"), l.Lux)
}

// FormatDistance renders one distance event for the console.
func FormatDistance(d light.Distance) string {
	return fmt.Sprintf("[PROX]  t=%s distance=%d (%s)", time.UnixMilli(d.Time).Format("15:04:05.000"), d.Distance, d.State)
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	err := SubscribeLight(client, cfg, "console",
		func(l light.Lux) { fmt.Println(FormatLux(l)) },
		func(d light.Distance) { fmt.Println(FormatDistance(d)) },
	)
	if err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	return nil
}
