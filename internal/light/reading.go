// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package light

// Lux is one ambient light event, suitable for JSON and MQTT.
type Lux struct {
	Time int64 `json:"t_ms"` // unix millis
	Lux  int   `json:"lux"`  // 0..10000
}

// Distance is one proximity event.
type Distance struct {
	Time     int64  `json:"t_ms"`
	Distance int    `json:"distance"` // 0 = far, 1 = near
	State    string `json:"state"`    // "far" / "near"
}

// Status is the combined latest state served by the web API and drawn on
// the display.
type Status struct {
	Lux      *Lux      `json:"lux,omitempty"`
	Distance *Distance `json:"distance,omitempty"`
}
