// Package pipeline assembles the receive and transmit block chains. A chain is
// built completely before anything is connected and torn down completely when
// any stage fails.
package pipeline

import (
	"context"
	"sync"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/config"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/dvbs2"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/flowgraph"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/sdr"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/zap"
)

const (
	LoopbackAddress = "127.0.0.1"
	// Fits seven 188 byte transport stream packets into one ethernet sized datagram
	PayloadSize   = 1472
	ItemSize      = 1
	Interpolation = 2
	GoldCode      = 0
)

// Stage names as reported by SetupError
const (
	StageSDRSource   = "sdr source"
	StageDemodulator = "demodulator"
	StageTSSink      = "ts sink"
	StageTSSource    = "ts source"
	StageBBHeader    = "bbheader"
	StageBBScrambler = "bbscrambler"
	StageBCH         = "bch"
	StageLDPC        = "ldpc"
	StageModulator   = "modulator"
	StagePhysical    = "physical"
	StageSDRSink     = "sdr sink"
	StageConnect     = "connect"
)

// Pipeline owns one connected chain, its SDR endpoint and its transport stream port
type Pipeline struct {
	graph     flowgraph.Graph
	direction config.Direction
	stages    []flowgraph.Block
	endpoint  sdr.Endpoint
	port      int

	stopOnce sync.Once
	stopErr  error
	waitOnce sync.Once
	waitErr  error
}

func (p *Pipeline) Direction() config.Direction {
	return p.direction
}

func (p *Pipeline) Endpoint() sdr.Endpoint {
	return p.endpoint
}

func (p *Pipeline) Port() int {
	return p.port
}

// Stages lists the block names in data path order
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// Start runs the whole data path as one unit
func (p *Pipeline) Start(ctx context.Context) error {
	log.Info("starting pipeline", zap.String("direction", string(p.direction)), zap.Strings("stages", p.Stages()))
	return p.graph.Start(ctx)
}

// Stop requests the data path to halt, it is safe without a prior Start
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() {
		p.stopErr = p.graph.Stop()
	})
	return p.stopErr
}

// Wait blocks until the data path halted, it is safe without a prior Start
func (p *Pipeline) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.graph.Wait()
	})
	return p.waitErr
}

// Done is closed once the running data path exited
func (p *Pipeline) Done() <-chan struct{} {
	return p.graph.Done()
}

// builder constructs stages in order and releases all of them if one fails
type builder struct {
	graph flowgraph.Graph
	built []flowgraph.Block
	err   error
}

func (b *builder) block(stage string, kind flowgraph.Kind, params flowgraph.Params) flowgraph.Block {
	if b.err != nil {
		return nil
	}

	blk, err := b.graph.AddBlock(kind, params)
	if err != nil {
		b.err = NewSetupError(stage, err)
		return nil
	}

	b.built = append(b.built, blk)
	return blk
}

// radio constructs and tunes the SDR block, the bandwidth follows the sample rate
func (b *builder) radio(stage string, kind flowgraph.Kind, run config.Run, endpoint sdr.Endpoint) flowgraph.Block {
	if b.err != nil {
		return nil
	}

	r, err := b.graph.AddRadio(kind, endpoint.Args)
	if err != nil {
		b.err = NewSetupError(stage, err)
		return nil
	}
	b.built = append(b.built, r)

	for _, set := range []func() error{
		func() error { return r.SetSampleRate(run.SampleRate) },
		func() error { return r.SetCenterFreq(run.CenterFreq) },
		func() error { return r.SetGain(run.Gain) },
		func() error { return r.SetBandwidth(run.SampleRate) },
	} {
		if err := set(); err != nil {
			b.err = NewSetupError(stage, err)
			return nil
		}
	}

	return r
}

func (b *builder) connect() {
	if b.err != nil {
		return
	}

	if err := b.graph.Connect(b.built...); err != nil {
		b.err = NewSetupError(StageConnect, err)
	}
}

// finish returns the assembled pipeline or releases every constructed block
func (b *builder) finish(direction config.Direction, endpoint sdr.Endpoint, port int) (*Pipeline, error) {
	if b.err != nil {
		for i := len(b.built) - 1; i >= 0; i-- {
			b.graph.Release(b.built[i])
		}
		log.Error("pipeline setup failed, released constructed stages", zap.Int("released", len(b.built)), zap.Error(b.err))
		return nil, b.err
	}

	return &Pipeline{
		graph:     b.graph,
		direction: direction,
		stages:    b.built,
		endpoint:  endpoint,
		port:      port,
	}, nil
}

func udpParams(port int) flowgraph.Params {
	return flowgraph.Params{
		flowgraph.ParamItemSize:    ItemSize,
		flowgraph.ParamAddress:     LoopbackAddress,
		flowgraph.ParamPort:        port,
		flowgraph.ParamPayloadSize: PayloadSize,
	}
}

// AssembleReceive builds SDR source → demodulator → transport stream sink
func AssembleReceive(graph flowgraph.Graph, run config.Run, profile dvbs2.Profile, endpoint sdr.Endpoint) (*Pipeline, error) {
	b := &builder{graph: graph}

	b.radio(StageSDRSource, flowgraph.KindOsmoSource, run, endpoint)
	b.block(StageDemodulator, flowgraph.KindDemodulator, flowgraph.Params{
		flowgraph.ParamFrameSize:     dvbs2.FrameNormal,
		flowgraph.ParamRate:          profile.CodeRate,
		flowgraph.ParamConstellation: profile.Constellation,
		flowgraph.ParamPilots:        dvbs2.PilotsOn,
		flowgraph.ParamRollOff:       run.RollOff.Factor(),
	})
	b.block(StageTSSink, flowgraph.KindUDPSink, udpParams(run.Port))
	b.connect()

	return b.finish(config.Receive, endpoint, run.Port)
}

// AssembleTransmit builds the transport stream source, the six stage DVB-S2
// encoding chain and the SDR sink
func AssembleTransmit(graph flowgraph.Graph, run config.Run, profile dvbs2.Profile, endpoint sdr.Endpoint) (*Pipeline, error) {
	b := &builder{graph: graph}

	coding := func(extra flowgraph.Params) flowgraph.Params {
		p := flowgraph.Params{
			flowgraph.ParamStandard:  dvbs2.StandardDVBS2,
			flowgraph.ParamFrameSize: dvbs2.FrameNormal,
			flowgraph.ParamRate:      profile.CodeRate,
		}
		for k, v := range extra {
			p[k] = v
		}
		return p
	}

	b.block(StageTSSource, flowgraph.KindUDPSource, udpParams(run.Port))
	b.block(StageBBHeader, flowgraph.KindBBHeader, coding(flowgraph.Params{
		flowgraph.ParamRollOff: run.RollOff,
	}))
	b.block(StageBBScrambler, flowgraph.KindBBScrambler, coding(nil))
	b.block(StageBCH, flowgraph.KindBCH, coding(nil))
	b.block(StageLDPC, flowgraph.KindLDPC, coding(flowgraph.Params{
		flowgraph.ParamConstellation: profile.Constellation,
	}))
	b.block(StageModulator, flowgraph.KindModulator, flowgraph.Params{
		flowgraph.ParamFrameSize:     dvbs2.FrameNormal,
		flowgraph.ParamRate:          profile.CodeRate,
		flowgraph.ParamConstellation: profile.Constellation,
		flowgraph.ParamInterpolation: Interpolation,
		flowgraph.ParamGoldCode:      GoldCode,
	})
	b.block(StagePhysical, flowgraph.KindPhysicalFrame, flowgraph.Params{
		flowgraph.ParamFrameSize:     dvbs2.FrameNormal,
		flowgraph.ParamRate:          profile.CodeRate,
		flowgraph.ParamConstellation: profile.Constellation,
		flowgraph.ParamPilots:        run.Pilots,
		flowgraph.ParamGoldCode:      GoldCode,
	})
	b.radio(StageSDRSink, flowgraph.KindOsmoSink, run, endpoint)
	b.connect()

	return b.finish(config.Transmit, endpoint, run.Port)
}
