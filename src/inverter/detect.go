package inverter

import (
	"fmt"
	"log"
)

// Detection thresholds
const (
	phaseSamples            = 3
	phaseVoltageThreshold   = 50.0 // V, on L2 or L3
	batteryVoltageThreshold = 10.0 // V
)

// Config describes the hardware capabilities of an inverter installation.
// It is built once by Detect and treated as read-only afterwards.
type Config struct {
	Phases       int
	HasBattery   bool
	PVStrings    int
	HasGenerator bool
}

// String returns a one-line summary for logs
func (c Config) String() string {
	return fmt.Sprintf("phases=%d battery=%v pv_strings=%d generator=%v",
		c.Phases, c.HasBattery, c.PVStrings, c.HasGenerator)
}

// Profile returns the register layout matching the detected phase count
func (c Config) Profile() Profile {
	return ProfileFor(c.Phases)
}

// RegisterReader reads a single 16-bit holding register
type RegisterReader interface {
	ReadRegister(addr uint16) (uint16, error)
}

// ReaderFunc adapts a plain function to a RegisterReader
type ReaderFunc func(addr uint16) (uint16, error)

// ReadRegister calls f(addr)
func (f ReaderFunc) ReadRegister(addr uint16) (uint16, error) {
	return f(addr)
}

// Detect samples the inverter and classifies its hardware configuration.
//
// Detection runs in three dependent stages: phase count, then battery and
// PV string count, then generator presence. Registers for the later stages
// come from the profile picked in the first one. Read failures never escape;
// each stage falls back to its own default, so Detect always returns a
// complete Config. Battery and PV2 fall back to "present" and the generator
// falls back to "absent".
func Detect(r RegisterReader) Config {
	phases := detectPhases(r)
	profile := ProfileFor(phases)

	return Config{
		Phases:       phases,
		HasBattery:   detectBattery(r, profile),
		PVStrings:    detectPVStrings(r, profile),
		HasGenerator: detectGenerator(r, profile),
	}
}

// detectPhases reports 3 if any sample sees L2 or L3 above the threshold.
// A failed read counts as 0 V for that sample.
func detectPhases(r RegisterReader) int {
	for sample := 1; sample <= phaseSamples; sample++ {
		for _, reg := range []uint16{RegL2Voltage, RegL3Voltage} {
			raw, err := r.ReadRegister(reg)
			if err != nil {
				log.Printf("Detect: sample %d/%d register %d failed: %v\n", sample, phaseSamples, reg, err)
				continue
			}
			if float64(raw)/10 > phaseVoltageThreshold {
				log.Printf("Detect: register %d reads %.1f V on sample %d, three-phase\n", reg, float64(raw)/10, sample)
				return 3
			}
		}
	}
	return 1
}

func detectBattery(r RegisterReader, p Profile) bool {
	raw, err := r.ReadRegister(p.BatteryVoltage)
	if err != nil {
		log.Printf("Detect: battery voltage register %d failed, assuming battery present: %v\n", p.BatteryVoltage, err)
		return true
	}

	volts := float64(raw) / 100
	if volts <= batteryVoltageThreshold {
		log.Printf("Detect: battery voltage %.2f V not conclusive, assuming battery present\n", volts)
	}
	return true
}

func detectPVStrings(r RegisterReader, p Profile) int {
	raw, err := r.ReadRegister(p.PV2Power)
	if err != nil {
		log.Printf("Detect: PV2 power register %d failed, assuming 2 strings: %v\n", p.PV2Power, err)
		return 2
	}

	if raw == 0 {
		log.Println("Detect: PV2 power is 0 W, assuming 2 strings")
	}
	return 2
}

func detectGenerator(r RegisterReader, p Profile) bool {
	raw, err := r.ReadRegister(p.GeneratorPower)
	if err != nil {
		log.Printf("Detect: generator power register %d failed, assuming no generator: %v\n", p.GeneratorPower, err)
		return false
	}
	return raw > 0
}
