// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"
	"net/http"
	"strconv"

	"github.com/relabs-tech/alsprox/internal/app"
	"github.com/relabs-tech/alsprox/internal/config"
)

func main() {
	log.Println("starting TMD2771 register debug tool (standalone)")

	if err := config.InitGlobal("alsprox_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	regs, release, err := app.OpenSensor(cfg)
	if err != nil {
		log.Fatalf("failed to open sensor: %v", err)
	}
	defer release()

	d := app.NewDriver(regs, cfg, nil)
	if ctrl, err := d.Test(); err != nil {
		log.Printf("Warning: sensor not responding: %v", err)
	} else {
		log.Printf("sensor CONTROL=0x%02X", ctrl)
	}

	addr := ":" + strconv.Itoa(cfg.RegisterDebugPort)
	log.Printf("Register debug tool listening on %s", addr)
	log.Printf("Open http://localhost%s in your browser", addr)
	if err := http.ListenAndServe(addr, app.NewRegisterDebugMux(d, cfg)); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
