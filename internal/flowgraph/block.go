// Package flowgraph models the DSP block graph the pipelines are built from.
// Blocks are opaque, the graph only carries their kind and parameter set and
// hands the finished chain to a runner that implements the signal processing.
package flowgraph

import (
	"fmt"
	"math"
	"strings"
)

type Kind string

const (
	KindOsmoSource    Kind = "osmosdr.source"
	KindOsmoSink      Kind = "osmosdr.sink"
	KindUDPSource     Kind = "blocks.udp_source"
	KindUDPSink       Kind = "blocks.udp_sink"
	KindDemodulator   Kind = "dtv.dvbs2_demodulator"
	KindBBHeader      Kind = "dtv.dvb_bbheader_bb"
	KindBBScrambler   Kind = "dtv.dvb_bbscrambler_bb"
	KindBCH           Kind = "dtv.dvb_bch_bb"
	KindLDPC          Kind = "dtv.dvb_ldpc_bb"
	KindModulator     Kind = "dtv.dvbs2_modulator_bc"
	KindPhysicalFrame Kind = "dtv.dvbs2_physical_cc"
)

// HasInput reports whether the block consumes a stream
func (k Kind) HasInput() bool {
	return k != KindOsmoSource && k != KindUDPSource
}

// HasOutput reports whether the block produces a stream
func (k Kind) HasOutput() bool {
	return k != KindOsmoSink && k != KindUDPSink
}

// IsRadio reports whether the block talks to the SDR
func (k Kind) IsRadio() bool {
	return k == KindOsmoSource || k == KindOsmoSink
}

// short is the block name prefix, the gr-dtv and blocks modules are left out
func (k Kind) short() string {
	module, name, ok := strings.Cut(string(k), ".")
	if !ok {
		return module
	}
	if module == "osmosdr" {
		return module + "_" + name
	}
	return name
}

// Params are the constructor arguments of a block
type Params map[string]any

func (p Params) clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Block is a constructed stage of the chain
type Block interface {
	Name() string
	Kind() Kind
	Params() Params
}

// Radio is an SDR source or sink, it is tuned after construction
type Radio interface {
	Block
	SetSampleRate(rate float64) error
	SetCenterFreq(freq float64) error
	SetGain(gain float64) error
	SetBandwidth(bw float64) error
}

type block struct {
	chain  *Chain
	name   string
	kind   Kind
	params Params
}

func (b *block) Name() string {
	return b.name
}

func (b *block) Kind() Kind {
	return b.kind
}

func (b *block) Params() Params {
	b.chain.mu.Lock()
	defer b.chain.mu.Unlock()
	return b.params.clone()
}

func (b *block) String() string {
	return fmt.Sprintf("%s(%s)", b.name, b.kind)
}

type radio struct {
	*block
}

func (r *radio) set(key string, value float64, valid func(float64) bool, rng string) error {
	r.chain.mu.Lock()
	defer r.chain.mu.Unlock()

	if r.chain.frozen {
		return ErrGraphStarted
	}
	if _, ok := r.chain.index[r.name]; !ok {
		return ErrBlockReleased
	}
	if !valid(value) {
		return NewParameterError(r.name, key, value, rng)
	}

	r.params[key] = value
	return nil
}

func positive(v float64) bool {
	return v > 0
}

func nonNegative(v float64) bool {
	return v >= 0
}

func notNaN(v float64) bool {
	return !math.IsNaN(v)
}

func (r *radio) SetSampleRate(rate float64) error {
	return r.set(ParamSampleRate, rate, positive, "a positive rate in Hz")
}

func (r *radio) SetCenterFreq(freq float64) error {
	return r.set(ParamCenterFreq, freq, positive, "a positive frequency in Hz")
}

// SetGain passes any number through, the driver clamps it to what the hardware supports
func (r *radio) SetGain(gain float64) error {
	return r.set(ParamGain, gain, notNaN, "a gain in dB")
}

func (r *radio) SetBandwidth(bw float64) error {
	return r.set(ParamBandwidth, bw, nonNegative, "zero for automatic or a positive bandwidth in Hz")
}
