package config

import (
	"math"
	"testing"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/dvbs2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transmitParams() Parameters {
	return Parameters{
		Freq:    2.4e9,
		Rate:    2e6,
		Gain:    30,
		ModCod:  "QPSK1/2",
		RollOff: 0.35,
		Pilots:  true,
		Port:    5004,
	}
}

func TestResolveTransmit(t *testing.T) {
	run, profile, err := ResolveTransmit(transmitParams())
	require.NoError(t, err)

	assert.Equal(t, Transmit, run.Direction)
	assert.Equal(t, dvbs2.Profile{Constellation: dvbs2.ConstellationQPSK, CodeRate: dvbs2.C1_2}, profile)
	assert.Equal(t, dvbs2.RollOff035, run.RollOff)
	assert.Equal(t, dvbs2.PilotsOn, run.Pilots)
	assert.Equal(t, 5003, run.CompanionPort())
}

func TestResolveTransmitRanges(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(p *Parameters)
		field string
	}{
		{"freq below", func(p *Parameters) { p.Freq = 50e6 }, "frequency"},
		{"freq above", func(p *Parameters) { p.Freq = 6.1e9 }, "frequency"},
		{"rate below", func(p *Parameters) { p.Rate = 0.5e6 }, "sample rate"},
		{"rate above", func(p *Parameters) { p.Rate = 60e6 }, "sample rate"},
		{"gain below", func(p *Parameters) { p.Gain = -1 }, "gain"},
		{"gain above", func(p *Parameters) { p.Gain = 71 }, "gain"},
		{"freq NaN", func(p *Parameters) { p.Freq = math.NaN() }, "frequency"},
		{"rate NaN", func(p *Parameters) { p.Rate = math.NaN() }, "sample rate"},
		{"gain NaN", func(p *Parameters) { p.Gain = math.NaN() }, "gain"},
		{"freq infinite", func(p *Parameters) { p.Freq = math.Inf(1) }, "frequency"},
		{"modcod", func(p *Parameters) { p.ModCod = "16APSK2/3" }, "modcod"},
		{"rolloff", func(p *Parameters) { p.RollOff = 0.3 }, "rolloff"},
		{"port", func(p *Parameters) { p.Port = 1 }, "port"},
		{"first failure wins", func(p *Parameters) { p.Rate = 0; p.Gain = 100 }, "sample rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := transmitParams()
			tt.mod(&p)

			_, _, err := ResolveTransmit(p)
			require.ErrorIs(t, err, &ConfigurationError{})

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.NotEmpty(t, cfgErr.Valid)
		})
	}
}

func TestResolveTransmitBoundsAreInclusive(t *testing.T) {
	p := transmitParams()
	p.Freq, p.Rate, p.Gain = MinTransmitFreq, MaxTransmitRate, MaxGain
	_, _, err := ResolveTransmit(p)
	assert.NoError(t, err)

	p.Freq, p.Rate, p.Gain = MaxTransmitFreq, MinTransmitRate, MinGain
	_, _, err = ResolveTransmit(p)
	assert.NoError(t, err)
}

func TestResolveReceiveKeepsGainUnchecked(t *testing.T) {
	p := transmitParams()
	p.Freq = 10e6
	p.Gain = 120
	p.Pilots = false
	p.ModCod = "8psk2/3"

	run, profile, err := ResolveReceive(p)
	require.NoError(t, err)

	assert.Equal(t, Receive, run.Direction)
	assert.Equal(t, 120.0, run.Gain)
	assert.Equal(t, dvbs2.PSK8_2_3, run.ModCod)
	assert.Equal(t, dvbs2.Constellation8PSK, profile.Constellation)
	// The demodulator always runs with pilots
	assert.Equal(t, dvbs2.PilotsOn, run.Pilots)
	assert.Equal(t, 5004, run.CompanionPort())
}

func TestResolveReceiveRejectsNonPositive(t *testing.T) {
	p := transmitParams()
	p.Freq = 0
	_, _, err := ResolveReceive(p)
	assert.ErrorIs(t, err, &ConfigurationError{})

	p = transmitParams()
	p.Rate = -1
	_, _, err = ResolveReceive(p)
	assert.ErrorIs(t, err, &ConfigurationError{})

	p = transmitParams()
	p.Freq = math.NaN()
	_, _, err = ResolveReceive(p)
	assert.ErrorIs(t, err, &ConfigurationError{})

	p = transmitParams()
	p.Rate = math.NaN()
	_, _, err = ResolveReceive(p)
	assert.ErrorIs(t, err, &ConfigurationError{})

	p = transmitParams()
	p.Port = 1
	_, _, err = ResolveReceive(p)
	assert.NoError(t, err)
}

func TestRunFields(t *testing.T) {
	run, _, err := ResolveTransmit(transmitParams())
	require.NoError(t, err)

	keys := map[string]bool{}
	for _, f := range run.Fields() {
		keys[f.Key] = true
	}
	assert.True(t, keys["pilots"])
	assert.True(t, keys["frequency"])

	run, _, err = ResolveReceive(transmitParams())
	require.NoError(t, err)
	for _, f := range run.Fields() {
		assert.NotEqual(t, "pilots", f.Key)
	}
}
