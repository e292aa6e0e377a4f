// Package dvbs2 holds the DVB-S2 parameter vocabulary shared by the configuration
// and the flowgraph blocks. Values render as the gr-dtv constant names.
package dvbs2

import (
	"fmt"
	"math"
)

type ModCod string

const (
	QPSK1_2  ModCod = "QPSK1/2"
	QPSK3_4  ModCod = "QPSK3/4"
	PSK8_2_3 ModCod = "8PSK2/3"
	PSK8_5_6 ModCod = "8PSK5/6"
)

type Constellation string

const (
	ConstellationQPSK Constellation = "MOD_QPSK"
	Constellation8PSK Constellation = "MOD_8PSK"
)

// BitsPerSymbol of the constellation
func (c Constellation) BitsPerSymbol() int {
	switch c {
	case ConstellationQPSK:
		return 2
	case Constellation8PSK:
		return 3
	default:
		return 0
	}
}

type CodeRate string

const (
	C1_2 CodeRate = "C1_2"
	C3_5 CodeRate = "C3_5"
	C2_3 CodeRate = "C2_3"
	C3_4 CodeRate = "C3_4"
	C5_6 CodeRate = "C5_6"
)

var codeRateValues = map[CodeRate]float64{
	C1_2: 1.0 / 2.0,
	C3_5: 3.0 / 5.0,
	C2_3: 2.0 / 3.0,
	C3_4: 3.0 / 4.0,
	C5_6: 5.0 / 6.0,
}

// Value returns the rate as a fraction, zero for unknown rates
func (r CodeRate) Value() float64 {
	return codeRateValues[r]
}

type RollOff string

const (
	RollOff020 RollOff = "RO_0_20"
	RollOff025 RollOff = "RO_0_25"
	RollOff035 RollOff = "RO_0_35"
)

var rollOffFactors = map[RollOff]float64{
	RollOff020: 0.20,
	RollOff025: 0.25,
	RollOff035: 0.35,
}

func (r RollOff) Factor() float64 {
	return rollOffFactors[r]
}

// ParseRollOff maps a factor to its roll-off. Float inputs come from the command
// line, so the comparison tolerates representation noise.
func ParseRollOff(factor float64) (RollOff, bool) {
	for _, r := range RollOffs() {
		if math.Abs(r.Factor()-factor) < 1e-9 {
			return r, true
		}
	}
	return "", false
}

// RollOffs lists the supported roll-off values in ascending order
func RollOffs() []RollOff {
	return []RollOff{RollOff020, RollOff025, RollOff035}
}

type Pilots bool

const (
	PilotsOn  Pilots = true
	PilotsOff Pilots = false
)

func (p Pilots) String() string {
	if p {
		return "PILOTS_ON"
	}
	return "PILOTS_OFF"
}

type FrameSize string

const (
	FrameNormal FrameSize = "FECFRAME_NORMAL"
	FrameShort  FrameSize = "FECFRAME_SHORT"
)

type Standard string

const StandardDVBS2 Standard = "STANDARD_DVBS2"

// Profile is the constellation and code rate pair a modcod selects
type Profile struct {
	Constellation Constellation
	CodeRate      CodeRate
}

func (p Profile) String() string {
	return fmt.Sprintf("%s/%s", p.Constellation, p.CodeRate)
}

var profiles = map[ModCod]Profile{
	QPSK1_2:  {ConstellationQPSK, C1_2},
	QPSK3_4:  {ConstellationQPSK, C3_4},
	PSK8_2_3: {Constellation8PSK, C2_3},
	PSK8_5_6: {Constellation8PSK, C5_6},
}

// ModCods lists every supported selector in command line order
func ModCods() []ModCod {
	return []ModCod{QPSK1_2, QPSK3_4, PSK8_2_3, PSK8_5_6}
}

// ProfileFor resolves a selector, ok is false for unsupported selectors
func ProfileFor(m ModCod) (Profile, bool) {
	p, ok := profiles[m]
	return p, ok
}

// Supports reports whether DVB-S2 defines the constellation at this code rate.
// 8PSK starts at rate 3/5, QPSK covers every rate listed here.
func Supports(c Constellation, r CodeRate) bool {
	if r.Value() == 0 {
		return false
	}

	switch c {
	case ConstellationQPSK:
		return true
	case Constellation8PSK:
		return r.Value() >= C3_5.Value()
	default:
		return false
	}
}
