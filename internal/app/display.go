// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/light"
)

// RunDisplay shows the latest lux and distance on an SSD1306 panel.
func RunDisplay() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on %s", bus)

	if err := drawLines(dev, "ALS / Prox", "Waiting..."); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	store := &StatusStore{}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := SubscribeLight(client, cfg, "display", store.SetLux, store.SetDistance); err != nil {
		return err
	}

	ticker := time.NewTicker(config.Millis(cfg.DisplayUpdateInterval))
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		if err := drawLines(dev, StatusLines(store.Status())...); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// StatusLines returns the text drawn for st, one entry per display row.
func StatusLines(st light.Status) []string {
	lines := make([]string, 0, 3)
	if st.Lux != nil {
		lines = append(lines, fmt.Sprintf("Lux: %5d", st.Lux.Lux))
	} else {
		lines = append(lines, "Lux: ---")
	}
	if st.Distance != nil {
		lines = append(lines, fmt.Sprintf("Prox: %s", st.Distance.State))
	} else {
		lines = append(lines, "Prox: ---")
	}
	if st.Lux != nil {
		lines = append(lines, time.UnixMilli(st.Lux.Time).Format("15:04:05"))
	}
	return lines
}

// RenderLines draws up to four lines of text into a 128x64 frame.
func RenderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		if i == 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(line))
	}
	return img
}

func drawLines(dev *ssd1306.Dev, lines ...string) error {
	return dev.Draw(dev.Bounds(), RenderLines(lines...), image.Point{})
}
