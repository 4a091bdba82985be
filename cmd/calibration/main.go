// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided calibration for the TMD2771 ambient light / proximity sensor.
// Calibrates:
//  1. Proximity: 20-sample noise sweep with nothing in front of the sensor,
//     deriving the near/far hysteresis band.
//  2. ALS (optional): gain trim under a reference light of known lux.
//
// Output:
//
//	Writes a JSON file under CALIBRATION_DIR. Point CALIBRATION_FILE at it
//	to have the producer apply it at startup.
//
// Run:
//
//	go run ./cmd/calibration -config alsprox_config.txt
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/alsprox/internal/app"
	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/driver"
)

func main() {
	in := bufio.NewReader(os.Stdin)

	configPath := flag.String("config", "alsprox_config.txt", "Path to configuration file")
	skipALS := flag.Bool("skip-als", false, "Skip the ALS gain trim step")
	flag.Parse()

	fmt.Println("=== Guided Calibration (Proximity + ALS) ===")
	fmt.Println()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg := config.Get()

	regs, release, err := app.OpenSensor(cfg)
	if err != nil {
		fatal(err)
	}
	defer release()

	d := app.NewDriver(regs, cfg, nil)
	if err := d.SensorOn(); err != nil {
		fatal(err)
	}

	ctx := context.Background()
	out := app.CalibrationFile{Timestamp: time.Now()}

	// ---------------- Proximity ----------------
	fmt.Println("Step 1/2 - Proximity noise sweep")
	fmt.Println("Remove every object from in front of the sensor; keep the cover glass in place.")
	waitEnter(in, "Press ENTER to start the sweep (about 2s)...")

	res, err := d.ProxCalibrate(ctx)
	if err != nil {
		fatal(err)
	}
	out.Result = res
	fmt.Printf("Samples: mean=%d max=%d stddev=%.2f\n", res.Mean, res.Max, res.StdDev)
	fmt.Printf("Thresholds: lo=%d hi=%d", res.Thresholds.Lo, res.Thresholds.Hi)
	if res.Clamp != "" {
		fmt.Printf(" (clamped: %s)", res.Clamp)
	}
	fmt.Println()

	// ---------------- ALS ----------------
	if !*skipALS {
		fmt.Println("\nStep 2/2 - ALS gain trim")
		fmt.Println("Place the sensor under a reference light source.")
		target := cfg.SensorDefaults().CalibrateTarget
		if v := prompt(in, fmt.Sprintf("Calibration target (ENTER for %d): ", target)); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				fatal(fmt.Errorf("invalid target %q: %w", v, err))
			}
			target = uint32(n)
		}
		trim, err := alsTrim(d, target)
		if err != nil {
			fatal(err)
		}
		out.GainTrim = trim
		fmt.Printf("Gain trim: %d\n", trim)
	}

	if err := d.SensorOff(); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: sensor off: %v\n", err)
	}

	path, err := app.SaveCalibration(cfg.CalibrationDir, out)
	if err != nil {
		fatal(err)
	}
	fmt.Println("\nCalibration complete.")
	fmt.Printf("Saved to %s\n", path)
}

// alsTrim re-enables the sensors (the proximity sweep restores the power-on
// register image), waits for one integration and derives the trim against
// target.
func alsTrim(d *driver.Driver, target uint32) (uint32, error) {
	sc := d.ConfigGet()
	sc.CalibrateTarget = target
	d.ConfigSet(sc)
	if err := d.SensorOn(); err != nil {
		return 0, err
	}
	time.Sleep(time.Duration(sc.ALSTime)*time.Millisecond + 50*time.Millisecond)
	return d.ALSCalibrate()
}

// ---------- Console helpers ----------

func prompt(in *bufio.Reader, text string) string {
	fmt.Print(text)
	s, _ := in.ReadString('\n')
	return strings.TrimSpace(s)
}

func waitEnter(in *bufio.Reader, text string) {
	fmt.Print(text)
	_, _ = in.ReadString('\n')
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
