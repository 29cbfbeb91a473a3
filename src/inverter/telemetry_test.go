package inverter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sensorKeys(sensors []Sensor) []string {
	keys := make([]string, 0, len(sensors))
	for _, s := range sensors {
		keys = append(keys, s.Key)
	}
	return keys
}

func TestSensors_FollowConfig(t *testing.T) {
	full := Sensors(Config{Phases: 3, HasBattery: true, PVStrings: 2, HasGenerator: true})
	assert.ElementsMatch(t, []string{
		"pv1_power", "pv2_power", "battery_soc", "battery_voltage", "battery_power",
		"grid_voltage", "grid_power", "load_power", "generator_power",
	}, sensorKeys(full))

	minimal := Sensors(Config{Phases: 1, HasBattery: false, PVStrings: 1, HasGenerator: false})
	assert.ElementsMatch(t, []string{"pv1_power", "grid_voltage", "grid_power", "load_power"}, sensorKeys(minimal))
}

func TestSensors_UseProfileRegisters(t *testing.T) {
	for _, s := range Sensors(Config{Phases: 1, HasBattery: true, PVStrings: 2, HasGenerator: true}) {
		assert.NotContains(t, []uint16{RegBatteryVoltage3P, RegPV2Power3P, RegGeneratorPower3P}, s.Register, s.Key)
	}
}

func TestSensor_Value(t *testing.T) {
	voltage := Sensor{Scale: 0.01}
	assert.InDelta(t, 52.0, voltage.Value(5200), 1e-9)

	power := Sensor{Scale: 1, Signed: true}
	assert.Equal(t, -500.0, power.Value(uint16(0xFE0C)))
	assert.Equal(t, 500.0, power.Value(500))
}

func TestReadTelemetry(t *testing.T) {
	cfg := Config{Phases: 3, HasBattery: true, PVStrings: 2, HasGenerator: false}
	r := newFakeReader(map[uint16]uint16{
		RegPV1Power3P:       1200,
		RegPV2Power3P:       800,
		RegBatterySOC3P:     87,
		RegBatteryVoltage3P: 5320,
		RegBatteryPower3P:   uint16(0xFF38), // -200 W, charging
		RegGridVoltage3P:    2301,
		RegGridPower3P:      0,
		RegLoadPower3P:      650,
	})

	telemetry, err := ReadTelemetry(r, cfg)
	require.NoError(t, err)

	soc, ok := telemetry.Get("battery_soc")
	assert.True(t, ok)
	assert.Equal(t, 87.0, soc)

	battery, _ := telemetry.Get("battery_power")
	assert.Equal(t, -200.0, battery)

	grid, _ := telemetry.Get("grid_voltage")
	assert.InDelta(t, 230.1, grid, 1e-9)

	_, ok = telemetry.Get("generator_power")
	assert.False(t, ok)
	assert.NotContains(t, r.reads, RegGeneratorPower3P)
}

func TestReadTelemetry_PartialFailure(t *testing.T) {
	cfg := Config{Phases: 1, HasBattery: true, PVStrings: 2}
	r := newFakeReader(map[uint16]uint16{RegPV1Power1P: 400, RegLoadPower1P: 300}, RegBatterySOC1P, RegGridPower1P)

	telemetry, err := ReadTelemetry(r, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errTimeout)
	assert.Contains(t, err.Error(), "battery_soc (register 184)")
	assert.Contains(t, err.Error(), "grid_power (register 169)")

	pv1, ok := telemetry.Get("pv1_power")
	assert.True(t, ok)
	assert.Equal(t, 400.0, pv1)

	_, ok = telemetry.Get("battery_soc")
	assert.False(t, ok)
}
