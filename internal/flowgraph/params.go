package flowgraph

import (
	"fmt"
	"net"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/dvbs2"
)

const (
	ParamArgs          = "args"
	ParamSampleRate    = "sample_rate"
	ParamCenterFreq    = "center_freq"
	ParamGain          = "gain"
	ParamBandwidth     = "bandwidth"
	ParamItemSize      = "itemsize"
	ParamAddress       = "ipaddr"
	ParamPort          = "port"
	ParamPayloadSize   = "payload_size"
	ParamStandard      = "standard"
	ParamFrameSize     = "framesize"
	ParamRate          = "rate"
	ParamConstellation = "constellation"
	ParamRollOff       = "rolloff"
	ParamPilots        = "pilots"
	ParamInterpolation = "interpolation"
	ParamGoldCode      = "goldcode"
)

// MaxPayloadSize is the largest UDP payload that fits an IPv4 datagram
const MaxPayloadSize = 65507

type validator func(name string, p Params) error

var validators = map[Kind][]validator{
	KindOsmoSource:    {requireString(ParamArgs)},
	KindOsmoSink:      {requireString(ParamArgs)},
	KindUDPSource:     {validateUDP},
	KindUDPSink:       {validateUDP},
	KindDemodulator:   {validateFrame, validateCodedModulation, validateRollOffFactor, validatePilots},
	KindBBHeader:      {validateStandard, validateFrame, validateRate, validateRollOff},
	KindBBScrambler:   {validateStandard, validateFrame, validateRate},
	KindBCH:           {validateStandard, validateFrame, validateRate},
	KindLDPC:          {validateStandard, validateFrame, validateCodedModulation},
	KindModulator:     {validateFrame, validateCodedModulation, validateInterpolation, validateGoldCode},
	KindPhysicalFrame: {validateFrame, validateCodedModulation, validatePilots, validateGoldCode},
}

func validate(name string, kind Kind, p Params) error {
	checks, ok := validators[kind]
	if !ok {
		return NewParameterError(name, "kind", kind, "a known block kind")
	}

	for _, check := range checks {
		if err := check(name, p); err != nil {
			return err
		}
	}
	return nil
}

func requireString(key string) validator {
	return func(name string, p Params) error {
		if s, ok := p[key].(string); !ok || s == "" {
			return NewParameterError(name, key, p[key], "a non-empty string")
		}
		return nil
	}
}

func intParam(p Params, key string) (int, bool) {
	v, ok := p[key].(int)
	return v, ok
}

func validateUDP(name string, p Params) error {
	if addr, ok := p[ParamAddress].(string); !ok || net.ParseIP(addr) == nil {
		return NewParameterError(name, ParamAddress, p[ParamAddress], "an IP address")
	}
	if port, ok := intParam(p, ParamPort); !ok || port < 1 || port > 65535 {
		return NewParameterError(name, ParamPort, p[ParamPort], "between 1 and 65535")
	}
	if size, ok := intParam(p, ParamPayloadSize); !ok || size < 1 || size > MaxPayloadSize {
		return NewParameterError(name, ParamPayloadSize, p[ParamPayloadSize], fmt.Sprintf("between 1 and %d", MaxPayloadSize))
	}
	if size, ok := intParam(p, ParamItemSize); !ok || size < 1 {
		return NewParameterError(name, ParamItemSize, p[ParamItemSize], "a positive item size")
	}
	return nil
}

func validateStandard(name string, p Params) error {
	if s, ok := p[ParamStandard].(dvbs2.Standard); !ok || s != dvbs2.StandardDVBS2 {
		return NewParameterError(name, ParamStandard, p[ParamStandard], string(dvbs2.StandardDVBS2))
	}
	return nil
}

func validateFrame(name string, p Params) error {
	f, ok := p[ParamFrameSize].(dvbs2.FrameSize)
	if !ok || (f != dvbs2.FrameNormal && f != dvbs2.FrameShort) {
		return NewParameterError(name, ParamFrameSize, p[ParamFrameSize], "a DVB-S2 frame size")
	}
	return nil
}

func validateRate(name string, p Params) error {
	if r, ok := p[ParamRate].(dvbs2.CodeRate); !ok || r.Value() == 0 {
		return NewParameterError(name, ParamRate, p[ParamRate], "a DVB-S2 code rate")
	}
	return nil
}

func validateCodedModulation(name string, p Params) error {
	if err := validateRate(name, p); err != nil {
		return err
	}

	c, ok := p[ParamConstellation].(dvbs2.Constellation)
	if !ok || c.BitsPerSymbol() == 0 {
		return NewParameterError(name, ParamConstellation, p[ParamConstellation], "a DVB-S2 constellation")
	}

	if !dvbs2.Supports(c, p[ParamRate].(dvbs2.CodeRate)) {
		return NewParameterError(name, ParamConstellation, fmt.Sprintf("%s at %s", c, p[ParamRate]), "defined for the code rate")
	}
	return nil
}

func validateRollOff(name string, p Params) error {
	if r, ok := p[ParamRollOff].(dvbs2.RollOff); !ok || r.Factor() == 0 {
		return NewParameterError(name, ParamRollOff, p[ParamRollOff], "a DVB-S2 roll-off")
	}
	return nil
}

// The demodulator takes the plain roll-off factor
func validateRollOffFactor(name string, p Params) error {
	f, ok := p[ParamRollOff].(float64)
	if !ok {
		return NewParameterError(name, ParamRollOff, p[ParamRollOff], "a roll-off factor")
	}
	if _, ok := dvbs2.ParseRollOff(f); !ok {
		return NewParameterError(name, ParamRollOff, f, "one of {0.2, 0.25, 0.35}")
	}
	return nil
}

func validatePilots(name string, p Params) error {
	if _, ok := p[ParamPilots].(dvbs2.Pilots); !ok {
		return NewParameterError(name, ParamPilots, p[ParamPilots], "PILOTS_ON or PILOTS_OFF")
	}
	return nil
}

func validateInterpolation(name string, p Params) error {
	if v, ok := intParam(p, ParamInterpolation); !ok || v < 1 {
		return NewParameterError(name, ParamInterpolation, p[ParamInterpolation], "a positive factor")
	}
	return nil
}

func validateGoldCode(name string, p Params) error {
	// 18 bit scrambling sequence index
	if v, ok := intParam(p, ParamGoldCode); !ok || v < 0 || v >= 1<<18 {
		return NewParameterError(name, ParamGoldCode, p[ParamGoldCode], "between 0 and 262143")
	}
	return nil
}
