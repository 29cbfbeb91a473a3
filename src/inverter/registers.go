package inverter

// Holding registers used for phase detection. Both profiles expose them.
const (
	RegL2Voltage uint16 = 645 // 0.1 V
	RegL3Voltage uint16 = 646 // 0.1 V
)

// Three-phase (SG0xLP3 / SG0xHP3) register map
const (
	RegPV1Power3P       uint16 = 514
	RegPV2Power3P       uint16 = 515
	RegBatteryVoltage3P uint16 = 587 // 0.01 V
	RegBatterySOC3P     uint16 = 588
	RegBatteryPower3P   uint16 = 590 // signed
	RegGridVoltage3P    uint16 = 598 // 0.1 V
	RegGridPower3P      uint16 = 625 // signed
	RegLoadPower3P      uint16 = 653
	RegGeneratorPower3P uint16 = 667
)

// Single-phase (Sunsynk / SUN-xK-SG0x) register map
const (
	RegGridVoltage1P    uint16 = 150 // 0.1 V
	RegGeneratorPower1P uint16 = 166
	RegGridPower1P      uint16 = 169 // signed
	RegLoadPower1P      uint16 = 178
	RegBatteryVoltage1P uint16 = 183 // 0.01 V
	RegBatterySOC1P     uint16 = 184
	RegPV1Power1P       uint16 = 186
	RegPV2Power1P       uint16 = 187
	RegBatteryPower1P   uint16 = 190 // signed
)

// Profile is the register layout for one phase configuration
type Profile struct {
	Phases         int
	BatteryVoltage uint16
	BatterySOC     uint16
	BatteryPower   uint16
	PV1Power       uint16
	PV2Power       uint16
	GridVoltage    uint16
	GridPower      uint16
	LoadPower      uint16
	GeneratorPower uint16
}

// Profiles maps a phase count to its register layout. The two layouts never
// share battery, PV2 or generator registers.
var Profiles = map[int]Profile{
	1: {
		Phases:         1,
		BatteryVoltage: RegBatteryVoltage1P,
		BatterySOC:     RegBatterySOC1P,
		BatteryPower:   RegBatteryPower1P,
		PV1Power:       RegPV1Power1P,
		PV2Power:       RegPV2Power1P,
		GridVoltage:    RegGridVoltage1P,
		GridPower:      RegGridPower1P,
		LoadPower:      RegLoadPower1P,
		GeneratorPower: RegGeneratorPower1P,
	},
	3: {
		Phases:         3,
		BatteryVoltage: RegBatteryVoltage3P,
		BatterySOC:     RegBatterySOC3P,
		BatteryPower:   RegBatteryPower3P,
		PV1Power:       RegPV1Power3P,
		PV2Power:       RegPV2Power3P,
		GridVoltage:    RegGridVoltage3P,
		GridPower:      RegGridPower3P,
		LoadPower:      RegLoadPower3P,
		GeneratorPower: RegGeneratorPower3P,
	},
}

// ProfileFor returns the register layout for the given phase count.
// Anything other than 3 is treated as single phase.
func ProfileFor(phases int) Profile {
	if phases == 3 {
		return Profiles[3]
	}
	return Profiles[1]
}
