package main

import (
	"time"

	"github.com/ryansname/deyectl/src/inverter"
)

// Extra sensors derived from generator power
var (
	sensorGeneratorRuntime = inverter.Sensor{Key: "generator_runtime", Name: "Generator Runtime", Unit: "h", DeviceClass: "duration", Scale: 0.01}
	sensorGeneratorFuel    = inverter.Sensor{Key: "generator_fuel_used", Name: "Generator Fuel Used", Unit: "L", DeviceClass: "volume", Scale: 0.01}
)

// maxGeneratorGap caps the time credited between two samples, so a
// monitoring outage is not counted as runtime
const maxGeneratorGap = 5 * time.Minute

// fuelTracker estimates fuel burnt from how long the generator delivers power
type fuelTracker struct {
	rate    float64 // litres per hour
	runtime time.Duration

	last    time.Time
	running bool
}

func newFuelTracker(rate float64) *fuelTracker {
	return &fuelTracker{rate: rate}
}

// Update accounts for the time since the previous snapshot and adds the
// derived values to t
func (f *fuelTracker) Update(t inverter.Telemetry) {
	power, ok := t.Get("generator_power")
	if !ok {
		return
	}

	if f.running && !f.last.IsZero() {
		if gap := t.Time.Sub(f.last); gap > 0 {
			f.runtime += min(gap, maxGeneratorGap)
		}
	}
	f.running = power > 0
	f.last = t.Time

	t.Values[sensorGeneratorRuntime.Key] = f.runtime.Hours()
	t.Values[sensorGeneratorFuel.Key] = f.Litres()
}

// Litres is the estimated fuel used since the monitor started
func (f *fuelTracker) Litres() float64 {
	return f.runtime.Hours() * f.rate
}
