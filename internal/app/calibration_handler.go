// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/alsprox/internal/driver"
	"github.com/relabs-tech/alsprox/internal/proximity"
	"github.com/relabs-tech/alsprox/internal/sensors"
)

// CalibrationFile is the saved outcome of a proximity calibration sweep
// and, optionally, an ALS gain trim taken under reference light.
type CalibrationFile struct {
	Version   int                         `json:"version"`
	Timestamp time.Time                   `json:"timestamp"`
	Result    proximity.CalibrationResult `json:"result"`
	GainTrim  uint32                      `json:"gain_trim,omitempty"`
}

// SaveCalibration writes f as JSON into dir and returns the file path.
func SaveCalibration(dir string, f CalibrationFile) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create calibration dir: %w", err)
	}
	if f.Version == 0 {
		f.Version = 1
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal calibration results: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("prox_%d_calibration.json", f.Timestamp.Unix()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write calibration file: %w", err)
	}
	log.Printf("calibration: saved results to %s", path)
	return path, nil
}

// LoadCalibration reads a file written by SaveCalibration.
func LoadCalibration(path string) (CalibrationFile, error) {
	var f CalibrationFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("failed to read calibration file: %w", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse calibration file: %w", err)
	}
	th := f.Result.Thresholds
	if th.Hi <= th.Lo {
		return f, fmt.Errorf("calibration file %s: hi %d not above lo %d: %w", path, th.Hi, th.Lo, sensors.ErrInvalidArgument)
	}
	return f, nil
}

// ApplyCalibration stores the thresholds (and gain trim, when present) of a
// saved calibration in the driver configuration.
func ApplyCalibration(d *driver.Driver, path string) (proximity.Thresholds, error) {
	f, err := LoadCalibration(path)
	if err != nil {
		return proximity.Thresholds{}, err
	}
	cfg := d.ConfigGet()
	cfg.ProxThresholdHi = f.Result.Thresholds.Hi
	cfg.ProxThresholdLo = f.Result.Thresholds.Lo
	if f.GainTrim != 0 {
		cfg.GainTrim = f.GainTrim
	}
	d.ConfigSet(cfg)
	log.Printf("calibration: applied lo=%d hi=%d from %s", cfg.ProxThresholdLo, cfg.ProxThresholdHi, path)
	return f.Result.Thresholds, nil
}

// CalibrationSession holds the state of one calibration page.
type CalibrationSession struct {
	Conn   *websocket.Conn
	Driver *driver.Driver
	Dir    string

	mu sync.Mutex
}

// WSMessage is a request from the calibration page.
type WSMessage struct {
	Action string `json:"action"` // start
}

// WSResponse is a message to the calibration page.
type WSResponse struct {
	Type    string      `json:"type"` // phase, complete, error
	Phase   string      `json:"phase,omitempty"`
	Results interface{} `json:"results,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandleCalibrationWS handles the WebSocket connection for calibration.
// Each "start" runs one sweep and saves the result into dir.
func HandleCalibrationWS(d *driver.Driver, dir string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &CalibrationSession{Conn: conn, Driver: d, Dir: dir}

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("calibration: websocket read error: %v", err)
			break
		}

		switch msg.Action {
		case "start":
			session.mu.Lock()
			err := session.run(r.Context())
			session.mu.Unlock()
			if err != nil {
				session.sendError(err.Error())
			}
		default:
			session.sendError(fmt.Sprintf("unknown action: %s", msg.Action))
		}
	}
}

// RecalibrateProximity runs the calibration sweep and then the full
// sensing start sequence, since the sweep leaves the device powered down.
// Sensing is restarted whether or not the sweep completed.
func RecalibrateProximity(ctx context.Context, d *driver.Driver) (proximity.CalibrationResult, error) {
	res, err := d.ProxCalibrate(ctx)
	if rerr := StartSensing(d); rerr != nil {
		err = errors.Join(err, fmt.Errorf("restart sensing: %w", rerr))
	}
	return res, err
}

func (s *CalibrationSession) run(ctx context.Context) error {
	s.sendPhase("sampling")
	res, err := RecalibrateProximity(ctx, s.Driver)
	if err != nil {
		return err
	}
	path, err := SaveCalibration(s.Dir, CalibrationFile{Timestamp: time.Now(), Result: res})
	if err != nil {
		return err
	}
	s.Conn.WriteJSON(WSResponse{
		Type: "complete",
		Results: map[string]interface{}{
			"filename": filepath.Base(path),
			"result":   res,
		},
	})
	return nil
}

func (s *CalibrationSession) sendPhase(phase string) {
	s.Conn.WriteJSON(WSResponse{
		Type:  "phase",
		Phase: phase,
	})
}

func (s *CalibrationSession) sendError(message string) {
	s.Conn.WriteJSON(WSResponse{
		Type:    "error",
		Message: message,
	})
}
