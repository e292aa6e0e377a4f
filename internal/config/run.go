package config

import (
	"fmt"
	"strings"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/dvbs2"
	"go.uber.org/zap"
)

type Direction string

const (
	Receive  Direction = "receive"
	Transmit Direction = "transmit"
)

// Transmit side hardware limits
const (
	MinTransmitFreq = 70e6
	MaxTransmitFreq = 6e9
	MinTransmitRate = 1e6
	MaxTransmitRate = 56e6
	MinGain         = 0
	MaxGain         = 70

	MinPort = 1
	MaxPort = 65535
)

// Parameters are the raw user inputs as they come from the command line
type Parameters struct {
	Freq    float64
	Rate    float64
	Gain    float64
	ModCod  string
	RollOff float64
	Pilots  bool
	Port    int
	Debug   bool
}

// Run is the validated configuration of one invocation, it is never modified after resolution
type Run struct {
	Direction  Direction
	CenterFreq float64
	SampleRate float64
	Gain       float64
	ModCod     dvbs2.ModCod
	RollOff    dvbs2.RollOff
	Pilots     dvbs2.Pilots
	Port       int
	Debug      bool
}

// CompanionPort is the port the companion process listens on. The receive player
// consumes the pipeline port directly, the transmit muxer listens one below and
// forwards to the pipeline port.
func (r Run) CompanionPort() int {
	if r.Direction == Transmit {
		return r.Port - 1
	}
	return r.Port
}

// Fields renders the configuration for structured logging
func (r Run) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("direction", string(r.Direction)),
		zap.String("frequency", fmt.Sprintf("%.2f MHz", r.CenterFreq/1e6)),
		zap.String("sample_rate", fmt.Sprintf("%.2f MHz", r.SampleRate/1e6)),
		zap.Float64("gain_db", r.Gain),
		zap.String("modcod", string(r.ModCod)),
		zap.Float64("rolloff", r.RollOff.Factor()),
		zap.Int("port", r.Port),
	}

	if r.Direction == Transmit {
		pilots := "disabled"
		if r.Pilots {
			pilots = "enabled"
		}
		fields = append(fields, zap.String("pilots", pilots))
	}

	return fields
}

// ResolveReceive validates the receive parameters. Unlike the transmit side only
// positivity of frequency and sample rate is checked and gain is passed through.
func ResolveReceive(p Parameters) (Run, dvbs2.Profile, error) {
	// Negated comparisons so that NaN is rejected as well
	if !(p.Freq > 0) {
		return Run{}, dvbs2.Profile{}, NewConfigurationError("frequency", p.Freq, "a positive value in Hz")
	}
	if !(p.Rate > 0) {
		return Run{}, dvbs2.Profile{}, NewConfigurationError("sample rate", p.Rate, "a positive value in Hz")
	}

	// The demodulator always runs with pilots on
	return resolve(Receive, p, dvbs2.PilotsOn)
}

// ResolveTransmit validates the transmit parameters against the hardware limits
func ResolveTransmit(p Parameters) (Run, dvbs2.Profile, error) {
	if !inRange(p.Freq, MinTransmitFreq, MaxTransmitFreq) {
		return Run{}, dvbs2.Profile{}, NewConfigurationError("frequency", p.Freq, "between 70 MHz and 6 GHz")
	}
	if !inRange(p.Rate, MinTransmitRate, MaxTransmitRate) {
		return Run{}, dvbs2.Profile{}, NewConfigurationError("sample rate", p.Rate, "between 1 MHz and 56 MHz")
	}
	if !inRange(p.Gain, MinGain, MaxGain) {
		return Run{}, dvbs2.Profile{}, NewConfigurationError("gain", p.Gain, "between 0 and 70 dB")
	}

	return resolve(Transmit, p, dvbs2.Pilots(p.Pilots))
}

// inRange is false for NaN
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func resolve(direction Direction, p Parameters, pilots dvbs2.Pilots) (Run, dvbs2.Profile, error) {
	modcod := dvbs2.ModCod(strings.ToUpper(strings.TrimSpace(p.ModCod)))
	profile, ok := dvbs2.ProfileFor(modcod)
	if !ok {
		return Run{}, dvbs2.Profile{}, NewConfigurationError("modcod", p.ModCod, "one of "+modcodSet())
	}

	rolloff, ok := dvbs2.ParseRollOff(p.RollOff)
	if !ok {
		return Run{}, dvbs2.Profile{}, NewConfigurationError("rolloff", p.RollOff, "one of {0.2, 0.25, 0.35}")
	}

	// The transmit muxer needs the port below the pipeline port
	minPort := MinPort
	if direction == Transmit {
		minPort = MinPort + 1
	}
	if p.Port < minPort || p.Port > MaxPort {
		return Run{}, dvbs2.Profile{}, NewConfigurationError("port", p.Port, fmt.Sprintf("between %d and %d", minPort, MaxPort))
	}

	return Run{
		Direction:  direction,
		CenterFreq: p.Freq,
		SampleRate: p.Rate,
		Gain:       p.Gain,
		ModCod:     modcod,
		RollOff:    rolloff,
		Pilots:     pilots,
		Port:       p.Port,
		Debug:      p.Debug,
	}, profile, nil
}

func modcodSet() string {
	names := make([]string, 0, len(dvbs2.ModCods()))
	for _, m := range dvbs2.ModCods() {
		names = append(names, string(m))
	}
	return "{" + strings.Join(names, ", ") + "}"
}
