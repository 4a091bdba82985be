// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/alsprox/internal/app"
	"github.com/relabs-tech/alsprox/internal/config"
)

func main() {
	configPath := flag.String("config", "alsprox_config.txt", "Path to configuration file")
	flag.Parse()

	log.Println("starting alsprox producer (TMD2771 -> MQTT)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
