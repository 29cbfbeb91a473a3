package inverter

import (
	"errors"
	"fmt"
	"time"
)

// Sensor describes one telemetry value and where it lives
type Sensor struct {
	Key         string // JSON key in the state payload
	Name        string
	Unit        string
	DeviceClass string
	Register    uint16
	Scale       float64 // raw value is multiplied by this
	Signed      bool
}

// Value converts a raw register value into engineering units
func (s Sensor) Value(raw uint16) float64 {
	if s.Signed {
		return float64(int16(raw)) * s.Scale
	}
	return float64(raw) * s.Scale
}

// Sensors lists the telemetry sensors that make sense for cfg.
// Battery sensors need a battery, PV2 needs a second string and the
// generator sensor needs a generator.
func Sensors(cfg Config) []Sensor {
	p := cfg.Profile()

	sensors := []Sensor{
		{Key: "pv1_power", Name: "PV1 Power", Unit: "W", DeviceClass: "power", Register: p.PV1Power, Scale: 1},
	}
	if cfg.PVStrings == 2 {
		sensors = append(sensors,
			Sensor{Key: "pv2_power", Name: "PV2 Power", Unit: "W", DeviceClass: "power", Register: p.PV2Power, Scale: 1})
	}
	if cfg.HasBattery {
		sensors = append(sensors,
			Sensor{Key: "battery_soc", Name: "Battery SOC", Unit: "%", DeviceClass: "battery", Register: p.BatterySOC, Scale: 1},
			Sensor{Key: "battery_voltage", Name: "Battery Voltage", Unit: "V", DeviceClass: "voltage", Register: p.BatteryVoltage, Scale: 0.01},
			Sensor{Key: "battery_power", Name: "Battery Power", Unit: "W", DeviceClass: "power", Register: p.BatteryPower, Scale: 1, Signed: true},
		)
	}
	sensors = append(sensors,
		Sensor{Key: "grid_voltage", Name: "Grid Voltage", Unit: "V", DeviceClass: "voltage", Register: p.GridVoltage, Scale: 0.1},
		Sensor{Key: "grid_power", Name: "Grid Power", Unit: "W", DeviceClass: "power", Register: p.GridPower, Scale: 1, Signed: true},
		Sensor{Key: "load_power", Name: "Load Power", Unit: "W", DeviceClass: "power", Register: p.LoadPower, Scale: 1},
	)
	if cfg.HasGenerator {
		sensors = append(sensors,
			Sensor{Key: "generator_power", Name: "Generator Power", Unit: "W", DeviceClass: "power", Register: p.GeneratorPower, Scale: 1})
	}
	return sensors
}

// Telemetry is one polling snapshot, keyed by Sensor.Key
type Telemetry struct {
	Time   time.Time
	Values map[string]float64
}

// Get returns the value for key and whether it was read successfully
func (t Telemetry) Get(key string) (float64, bool) {
	v, ok := t.Values[key]
	return v, ok
}

// ReadTelemetry reads every sensor for cfg. Failed sensors are left out of
// Values and reported together in the returned error.
func ReadTelemetry(r RegisterReader, cfg Config) (Telemetry, error) {
	t := Telemetry{
		Time:   time.Now(),
		Values: make(map[string]float64),
	}

	var errs []error
	for _, s := range Sensors(cfg) {
		raw, err := r.ReadRegister(s.Register)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s (register %d): %w", s.Key, s.Register, err))
			continue
		}
		t.Values[s.Key] = s.Value(raw)
	}

	return t, errors.Join(errs...)
}
