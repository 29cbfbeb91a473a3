package inverter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errTimeout = errors.New("connection timeout")

// fakeReader serves register values from a map and records every read
type fakeReader struct {
	values  map[uint16]uint16
	failing map[uint16]bool
	reads   []uint16
}

func newFakeReader(values map[uint16]uint16, failing ...uint16) *fakeReader {
	f := &fakeReader{values: values, failing: make(map[uint16]bool)}
	for _, reg := range failing {
		f.failing[reg] = true
	}
	return f
}

func (f *fakeReader) ReadRegister(addr uint16) (uint16, error) {
	f.reads = append(f.reads, addr)
	if f.failing[addr] {
		return 0, errTimeout
	}
	return f.values[addr], nil
}

func TestDetect_ThreePhase(t *testing.T) {
	t.Run("battery and pv2", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 646: 2310, 587: 5200, 515: 300})
		assert.Equal(t, Config{Phases: 3, HasBattery: true, PVStrings: 2, HasGenerator: false}, Detect(r))
	})

	t.Run("generator running", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 646: 2310, 587: 5200, 515: 300, 667: 1500})
		assert.Equal(t, Config{Phases: 3, HasBattery: true, PVStrings: 2, HasGenerator: true}, Detect(r))
	})

	t.Run("zero battery voltage defaults to battery present", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 646: 2310, 587: 0, 515: 300})
		assert.True(t, Detect(r).HasBattery)
	})

	t.Run("zero pv2 power defaults to two strings", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 646: 2310, 587: 5200, 515: 0})
		assert.Equal(t, 2, Detect(r).PVStrings)
	})

	t.Run("only L2 above threshold", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 646: 0})
		assert.Equal(t, 3, Detect(r).Phases)
	})

	t.Run("only L3 above threshold", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 0, 646: 2300})
		assert.Equal(t, 3, Detect(r).Phases)
	})
}

func TestDetect_SinglePhase(t *testing.T) {
	t.Run("battery and pv2", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 0, 646: 0, 183: 5200, 187: 300})
		assert.Equal(t, Config{Phases: 1, HasBattery: true, PVStrings: 2, HasGenerator: false}, Detect(r))
	})

	t.Run("generator running", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{183: 5200, 187: 300, 166: 800})
		assert.True(t, Detect(r).HasGenerator)
	})

	t.Run("zero battery voltage defaults to battery present", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{183: 0, 187: 300})
		assert.True(t, Detect(r).HasBattery)
	})

	t.Run("zero pv2 power defaults to two strings", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{183: 5200, 187: 0})
		assert.Equal(t, 2, Detect(r).PVStrings)
	})
}

func TestDetect_RegisterSelection(t *testing.T) {
	t.Run("single phase never touches three-phase registers", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 0, 646: 0, 183: 5200, 187: 300})
		Detect(r)

		assert.Contains(t, r.reads, uint16(183))
		assert.Contains(t, r.reads, uint16(187))
		assert.Contains(t, r.reads, uint16(166))
		assert.NotContains(t, r.reads, uint16(587))
		assert.NotContains(t, r.reads, uint16(515))
		assert.NotContains(t, r.reads, uint16(667))
	})

	t.Run("three phase never touches single-phase registers", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 646: 2310, 587: 5200, 515: 300})
		Detect(r)

		assert.Contains(t, r.reads, uint16(587))
		assert.Contains(t, r.reads, uint16(515))
		assert.Contains(t, r.reads, uint16(667))
		assert.NotContains(t, r.reads, uint16(183))
		assert.NotContains(t, r.reads, uint16(187))
		assert.NotContains(t, r.reads, uint16(166))
	})

	t.Run("read count stays between 4 and 9", func(t *testing.T) {
		fast := newFakeReader(map[uint16]uint16{645: 2300})
		Detect(fast)
		assert.Len(t, fast.reads, 4)

		slow := newFakeReader(map[uint16]uint16{})
		Detect(slow)
		assert.Len(t, slow.reads, 9)
	})
}

func TestDetect_Thresholds(t *testing.T) {
	tests := []struct {
		name   string
		l2, l3 uint16
		phases int
	}{
		{"exactly 50 V is single phase", 500, 400, 1},
		{"51 V on L2 is three phase", 510, 0, 3},
		{"51 V on L3 is three phase", 0, 510, 3},
		{"small stray voltage is single phase", 51, 51, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeReader(map[uint16]uint16{645: tt.l2, 646: tt.l3})
			assert.Equal(t, tt.phases, Detect(r).Phases)
		})
	}

	t.Run("battery exactly 10 V still defaults to present", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 646: 2300, 587: 1000, 515: 300})
		assert.True(t, Detect(r).HasBattery)
	})

	t.Run("battery 11 V is detected", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 646: 2300, 587: 1100, 515: 300})
		assert.True(t, Detect(r).HasBattery)
	})

	t.Run("generator exactly 0 W is absent", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 667: 0})
		assert.False(t, Detect(r).HasGenerator)
	})

	t.Run("generator 1 W is present", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 667: 1})
		assert.True(t, Detect(r).HasGenerator)
	})
}

func TestDetect_ReadFailures(t *testing.T) {
	t.Run("phase registers failing defaults to single phase", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{183: 5200, 187: 300}, 645, 646)
		assert.Equal(t, 1, Detect(r).Phases)
	})

	t.Run("battery and pv2 failing use defaults", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300, 646: 2300}, 587, 515)
		cfg := Detect(r)

		assert.Equal(t, 3, cfg.Phases)
		assert.True(t, cfg.HasBattery)
		assert.Equal(t, 2, cfg.PVStrings)
	})

	t.Run("generator failing defaults to absent", func(t *testing.T) {
		r := newFakeReader(map[uint16]uint16{645: 2300}, 667)
		assert.False(t, Detect(r).HasGenerator)
	})

	t.Run("every read failing returns safe defaults", func(t *testing.T) {
		r := ReaderFunc(func(uint16) (uint16, error) { return 0, errTimeout })
		assert.Equal(t, Config{Phases: 1, HasBattery: true, PVStrings: 2, HasGenerator: false}, Detect(r))
	})
}

func TestDetect_IntermittentPhaseReading(t *testing.T) {
	l2Calls := 0
	r := ReaderFunc(func(addr uint16) (uint16, error) {
		switch addr {
		case 645:
			l2Calls++
			// Only the second sample sees voltage
			if l2Calls == 2 {
				return 2300, nil
			}
			return 0, nil
		case 587:
			return 5200, nil
		case 515:
			return 300, nil
		}
		return 0, nil
	})

	assert.Equal(t, 3, Detect(r).Phases)
	assert.Equal(t, 2, l2Calls)
}

func TestDetect_FailedSampleStillCounts(t *testing.T) {
	calls := 0
	r := ReaderFunc(func(addr uint16) (uint16, error) {
		if addr == 646 {
			calls++
			if calls < 3 {
				return 0, errTimeout
			}
			return 2300, nil
		}
		return 0, nil
	})

	assert.Equal(t, 3, Detect(r).Phases)
}

func TestConfig_Profile(t *testing.T) {
	assert.Equal(t, RegBatteryVoltage3P, Config{Phases: 3}.Profile().BatteryVoltage)
	assert.Equal(t, RegBatteryVoltage1P, Config{Phases: 1}.Profile().BatteryVoltage)
	assert.Equal(t, RegGeneratorPower1P, Config{}.Profile().GeneratorPower)
}
