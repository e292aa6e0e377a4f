// Package lifecycle drives one rx or tx run from configuration to teardown.
//
// The controller walks Init → Configured → DeviceResolved → PipelineRunning and
// leaves through Stopping → Terminated on every path. Teardown always terminates
// the companion first, then stops the pipeline and finally waits for it.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/companion"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/config"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/dvbs2"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/flowgraph"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/pipeline"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/sdr"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Controller struct {
	Direction  config.Direction
	Parameters config.Parameters
	Enumerator sdr.Enumerator

	// Graph returns the flowgraph the pipeline is assembled into
	Graph func(run config.Run) flowgraph.Graph

	// Companion is optional, without it no local stream peer is launched
	Companion *companion.Supervisor

	// StartupDelay gives the companion time to bind before the pipeline starts
	StartupDelay time.Duration

	Waiter Waiter

	// OnTransition is called after every state change, from the goroutine running the controller
	OnTransition func(from State, to State)

	mu       sync.Mutex
	state    State
	run      config.Run
	endpoint sdr.Endpoint
	stages   []string
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run returns the resolved configuration, it is only valid after Configured
func (c *Controller) Run() config.Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}

// Endpoint returns the selected SDR, it is only valid after DeviceResolved
func (c *Controller) Endpoint() sdr.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Stages lists the blocks of the assembled pipeline in stream order
func (c *Controller) Stages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stages
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	if !validTransition(from, to) {
		c.mu.Unlock()
		log.Panic("implementation mistake, invalid lifecycle transition", zap.Stringer("from", from), zap.Stringer("to", to))
		return
	}
	c.state = to
	c.mu.Unlock()

	log.Debug("lifecycle transition", zap.Stringer("from", from), zap.Stringer("to", to))
	if c.OnTransition != nil {
		c.OnTransition(from, to)
	}
}

func (c *Controller) resolve() (config.Run, dvbs2.Profile, error) {
	if c.Direction == config.Transmit {
		return config.ResolveTransmit(c.Parameters)
	}
	return config.ResolveReceive(c.Parameters)
}

func (c *Controller) assemble(run config.Run, profile dvbs2.Profile, endpoint sdr.Endpoint) (*pipeline.Pipeline, error) {
	graph := c.Graph(run)
	if c.Direction == config.Transmit {
		return pipeline.AssembleTransmit(graph, run, profile, endpoint)
	}
	return pipeline.AssembleReceive(graph, run, profile, endpoint)
}

// Execute performs one run. Operator stops return nil, every other cause of the
// end of the run is returned after teardown.
func (c *Controller) Execute(ctx context.Context) (err error) {
	if c.State() != StateInit {
		return fmt.Errorf("controller already ran, state is %s", c.State())
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var comp *companion.Process
	var pipe *pipeline.Pipeline

	// Scoped release, every acquired resource is handed back exactly once
	defer func() {
		c.transition(StateStopping)
		if tErr := c.teardown(comp, pipe); tErr != nil {
			if err == nil {
				log.Warn("teardown did not complete cleanly", zap.Error(tErr))
			} else {
				err = multierr.Append(err, tErr)
			}
		}
		c.transition(StateTerminated)
	}()

	run, profile, err := c.resolve()
	if err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.run = run
	c.mu.Unlock()
	c.transition(StateConfigured)

	if run.Debug {
		log.Info("sdr configuration", run.Fields()...)
	}

	if c.Companion != nil {
		comp = c.Companion.Start(runCtx, run.Port)
		if comp != nil && c.StartupDelay > 0 {
			if err := sleep(runCtx, c.StartupDelay); err != nil {
				return stopCause(err)
			}
		}
	}

	endpoint, err := sdr.Select(runCtx, c.Enumerator)
	if err != nil {
		if runCtx.Err() != nil {
			return stopCause(context.Cause(runCtx))
		}
		log.Error("no usable sdr", zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.endpoint = endpoint
	c.mu.Unlock()
	c.transition(StateDeviceResolved)

	if runCtx.Err() != nil {
		return stopCause(context.Cause(runCtx))
	}

	pipe, err = c.assemble(run, profile, endpoint)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.stages = pipe.Stages()
	c.mu.Unlock()

	if err := pipe.Start(runCtx); err != nil {
		if runCtx.Err() != nil {
			return stopCause(context.Cause(runCtx))
		}
		log.Error("pipeline did not start", zap.Error(err))
		return pipeline.NewSetupError("start", err)
	}
	c.transition(StatePipelineRunning)

	return stopCause(c.wait(runCtx, cancel, pipe))
}

// wait blocks on the waiter, the pipeline and the parent context, whichever ends first
func (c *Controller) wait(ctx context.Context, cancel context.CancelCauseFunc, pipe *pipeline.Pipeline) error {
	waiter := c.Waiter
	if waiter == nil {
		waiter = WaitForInterrupt
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		cancel(waiter(ctx))
	}()

	go func() {
		defer wg.Done()
		select {
		case <-pipe.Done():
			cancel(&PipelineExitedError{Err: pipe.Wait()})
		case <-ctx.Done():
		}
	}()

	<-ctx.Done()
	wg.Wait()

	cause := context.Cause(ctx)
	log.Info("run ended", zap.NamedError("cause", cause))
	return cause
}

// teardown runs in fixed order: companion, pipeline stop, pipeline wait
func (c *Controller) teardown(comp *companion.Process, pipe *pipeline.Pipeline) error {
	err := comp.Terminate()
	if pipe != nil {
		err = multierr.Append(err, pipe.Stop())
		// An unexpected exit already ended the run with this error as its cause
		if wErr := pipe.Wait(); wErr != nil {
			log.Warn("pipeline exited with error", zap.Error(wErr))
		}
	}
	return err
}

// stopCause turns operator stops into a clean exit
func stopCause(cause error) error {
	if Graceful(cause) {
		return nil
	}
	return cause
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
