// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/alsprox/internal/config"
)

// StatusHandler serves the latest events as JSON, or 503 before the first
// one arrives.
func StatusHandler(store *StatusStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := store.Status()
		if st.Lux == nil && st.Distance == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st); err != nil {
			log.Printf("json encode error: %v", err)
		}
	}
}

func RunWeb() error {
	cfg := config.Get()
	store := &StatusStore{}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := SubscribeLight(client, cfg, "web", store.SetLux, store.SetDistance); err != nil {
		return err
	}

	http.HandleFunc("/api/status", StatusHandler(store))

	// Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := ":" + strconv.Itoa(cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
