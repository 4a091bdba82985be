// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"math"
	"sync"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/driver"
	"github.com/relabs-tech/alsprox/internal/sensors"
	"github.com/relabs-tech/alsprox/internal/sensors/sensorstest"
)

// MockBus is the I2C_BUS value that selects the simulated sensor.
const MockBus = "mock"

// OpenSensor opens the register transport named by the configuration and
// returns it with its release function.
func OpenSensor(cfg *config.Config) (sensors.RegisterAccess, func() error, error) {
	if cfg.I2CBus == MockBus {
		log.Println("sensor: using simulated TMD2771")
		return NewSimulatedSensor(), func() error { return nil }, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus %q: %w", cfg.I2CBus, err)
	}
	regs := sensors.NewI2CRegisters(bus, cfg.I2CAddr)
	log.Printf("sensor: %s", regs)
	return regs, bus.Close, nil
}

// NewDriver builds a driver from the configuration's tuning keys.
func NewDriver(regs sensors.RegisterAccess, cfg *config.Config, sink driver.EventSink) *driver.Driver {
	sc := cfg.SensorDefaults()
	return driver.New(regs, driver.Options{
		Config:              &sc,
		SaturationPolicy:    cfg.ProxSaturationPolicy,
		CalibrationInterval: config.Millis(cfg.CalibrationSampleInterval),
		Sink:                sink,
	})
}

// SimulatedSensor is an in-memory TMD2771 whose channels follow a slow
// synthetic scene: the clear count swings around a mid level and an object
// approaches and leaves the proximity LED every few seconds.
type SimulatedSensor struct {
	*sensorstest.Registers

	mu   sync.Mutex
	step int
}

// NewSimulatedSensor returns a powered-down simulated sensor.
func NewSimulatedSensor() *SimulatedSensor {
	s := &SimulatedSensor{Registers: sensorstest.New()}
	s.Set(sensors.RegChipID, 0x20)
	s.Registers.OnRead = s.onRead
	return s
}

// Scene returns the clear, IR and proximity counts for a step.
func Scene(step int) (clear, ir, prox uint16) {
	c := 2000 + 1500*math.Sin(float64(step)/40)
	clear = uint16(c)
	ir = clear / 4
	prox = 300
	if (step/50)%2 == 1 {
		prox = 900
	}
	return clear, ir, prox
}

func (s *SimulatedSensor) onRead(reg uint8, bank *[sensors.NumRegisters]byte) {
	if reg != sensors.RegStatus {
		return
	}
	s.mu.Lock()
	s.step++
	step := s.step
	s.mu.Unlock()

	clear, ir, prox := Scene(step)
	putWord(bank, sensors.RegClearLo, clear)
	putWord(bank, sensors.RegIRLo, ir)
	putWord(bank, sensors.RegProxLo, prox)

	ctrl := bank[sensors.RegControl]
	var status uint8
	if ctrl&sensors.CtrlPowerOn != 0 && ctrl&sensors.CtrlADCEnable != 0 {
		status |= sensors.StatusALSValid
		if ctrl&sensors.CtrlALSIntEnable != 0 {
			status |= sensors.StatusALSInt
		}
	}
	if ctrl&sensors.CtrlPowerOn != 0 && ctrl&sensors.CtrlProxIntEnable != 0 {
		status |= sensors.StatusProxInt
	}
	bank[sensors.RegStatus] = status
}

func putWord(bank *[sensors.NumRegisters]byte, reg uint8, v uint16) {
	bank[reg] = uint8(v)
	bank[reg+1] = uint8(v >> 8)
}
