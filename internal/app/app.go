// Package app wires configuration, logging, metrics and device discovery into
// the lifecycle controller of one rx or tx run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/companion"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/config"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/flowgraph"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/lifecycle"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/metrics"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/pipeline"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/sdr"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/systemd"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/usb"
	"go.uber.org/zap"
)

// Flags are the process wide options, the radio parameters are passed per run
type Flags struct {
	ConfigPath string
	Debug      bool
	Metrics    string
}

// App global app struct that contains all services
type App struct {
	// All go routines that should terminate with the run are registered here
	WG sync.WaitGroup

	ExitSignal chan os.Signal

	Conf    *config.Manager
	Metrics *metrics.Metrics
	RunID   string

	// Console ends a transmit run on Enter or end of input
	Console io.Reader

	metricsServer *metrics.Server
	hotplug       *usb.HotplugMonitor
}

func (a *App) Shutdown() {
	if a.ExitSignal != nil {
		signal.Stop(a.ExitSignal)
	}

	if a.hotplug != nil {
		a.hotplug.Shutdown()
	}

	if a.metricsServer != nil {
		a.metricsServer.Shutdown()
	}

	log.Sync()
}

func (a *App) loadConfiguration(configPath string) error {
	a.Conf = config.NewManager()

	// Only an explicitly requested file has to exist
	path, acceptEmptyConfig := configPath, false
	if path == "" {
		path, acceptEmptyConfig = config.DefaultConfigPath, true
	}

	if err := a.Conf.Load(path, acceptEmptyConfig); err != nil {
		log.Error("an error occurred while trying to load the config file", zap.String("path", path), zap.Error(err))
		return err
	}

	return nil
}

func (a *App) startMetrics(address string) error {
	if address == "" {
		address = a.Conf.Metrics().Listen
	}
	if address == "" {
		return nil
	}

	srv, err := metrics.NewServer(a.Metrics, address)
	if err != nil {
		return err
	}

	a.metricsServer = srv
	srv.Start()
	return nil
}

func (a *App) startHotplug() {
	if !a.Conf.Device().C().Hotplug {
		return
	}

	monitor, err := usb.NewHotplugMonitor()
	if err != nil {
		log.Warn("hotplug monitoring disabled, a vanished sdr is only noticed by the flowgraph", zap.Error(err))
		return
	}
	a.hotplug = monitor
}

func Setup(flags Flags) (*App, error) {
	app := App{
		RunID:   uuid.NewString(),
		Metrics: metrics.New(),
		Console: os.Stdin,
	}

	// Register a quit signal
	app.ExitSignal = make(chan os.Signal, 1)
	signal.Notify(app.ExitSignal, os.Interrupt, syscall.SIGTERM)

	log.Init(flags.Debug)

	if err := app.loadConfiguration(flags.ConfigPath); err != nil {
		app.Shutdown()
		return nil, err
	}

	// The file can only raise the verbosity
	if app.Conf.Debug() && !flags.Debug {
		log.Init(true)
	}
	log.With(zap.String("run", app.RunID))

	if err := app.startMetrics(flags.Metrics); err != nil {
		app.Shutdown()
		return nil, err
	}

	app.startHotplug()

	return &app, nil
}

// Debug reports whether debug output was requested by flag or file
func (a *App) Debug(flag bool) bool {
	return flag || a.Conf.Debug()
}

// Enumerator returns the configured device discovery
func (a *App) Enumerator() sdr.Enumerator {
	dev := a.Conf.Device().C()
	if dev.Enumerator == config.EnumeratorUSB {
		return sdr.NewUSBEnumerator()
	}
	return sdr.NewSoapyEnumerator(dev.SoapyUtil)
}

func (a *App) newGraph(run config.Run) *flowgraph.ProcessGraph {
	fg := a.Conf.Flowgraph().C()
	return flowgraph.NewProcessGraph(fmt.Sprintf("%s_%s", config.ProductName, run.Direction), flowgraph.Options{
		Runner:         fg.Runner,
		WorkDir:        fg.WorkDir,
		RunID:          a.RunID,
		ReadyMarker:    fg.ReadyMarker,
		GracePeriod:    fg.GracePeriod.Value(),
		StartupTimeout: fg.StartupTimeout.Value(),
		CaptureOutput:  fg.CaptureOutput,
	})
}

func (a *App) companion(direction config.Direction) *companion.Supervisor {
	sup := companion.ForDirection(direction, a.Conf.Companion().C())
	sup.OnFailure = func(err error) {
		a.Metrics.CompanionFailures.WithLabelValues(string(sup.Role())).Inc()
	}
	return sup
}

// Controller builds the lifecycle controller of one run
func (a *App) Controller(direction config.Direction, params config.Parameters) *lifecycle.Controller {
	c := &lifecycle.Controller{
		Direction:  direction,
		Parameters: params,
		Enumerator: a.Enumerator(),
		Graph:      func(run config.Run) flowgraph.Graph { return a.newGraph(run) },
		Companion:  a.companion(direction),
		Waiter:     lifecycle.WaitForInterrupt,
	}

	// The muxer needs a moment before the modulator pulls from its port
	if direction == config.Transmit {
		c.StartupDelay = a.Conf.Companion().C().StartupDelay.Value()
		c.Waiter = lifecycle.WaitForEnter(a.Console)
	}

	c.OnTransition = func(from lifecycle.State, to lifecycle.State) {
		a.observeTransition(c, to)
	}

	return c
}

func (a *App) observeTransition(c *lifecycle.Controller, to lifecycle.State) {
	a.Metrics.State.Set(float64(to))
	a.Metrics.Transitions.WithLabelValues(to.String()).Inc()

	switch to {
	case lifecycle.StatePipelineRunning:
		run, endpoint := c.Run(), c.Endpoint()
		a.Metrics.Stages.Set(float64(len(c.Stages())))
		a.Metrics.RunInfo.WithLabelValues(string(run.Direction), string(run.ModCod), endpoint.Driver).Set(1)

		log.Info("pipeline running", zap.Stringer("sdr", endpoint), zap.Int("port", run.Port))
		notify(systemd.Ready())
		notify(systemd.Status(fmt.Sprintf("%s on %s", run.Direction, endpoint)))
	case lifecycle.StateStopping:
		notify(systemd.Stopping())
	case lifecycle.StateTerminated:
		a.Metrics.Stages.Set(0)
	}
}

func notify(err error) {
	// Running outside of systemd is fine
	if err != nil && !errors.Is(err, systemd.ErrNoNotifySocket) {
		log.Warn("could not notify systemd", zap.Error(err))
	}
}

// watchSignals turns the first exit signal into an operator interrupt
func (a *App) watchSignals(ctx context.Context, cancel context.CancelCauseFunc) {
	a.WG.Add(1)
	go func() {
		defer a.WG.Done()

		select {
		case sig := <-a.ExitSignal:
			log.Info("exit signal received, stopping", zap.Stringer("signal", sig))
			cancel(lifecycle.ErrInterrupted)
		case <-ctx.Done():
		}
	}()
}

// watchHotplug ends the run when a device of the selected family is unplugged
func (a *App) watchHotplug(ctx context.Context, cancel context.CancelCauseFunc, c *lifecycle.Controller) {
	if a.hotplug == nil {
		return
	}

	a.hotplug.Start(ctx, func(ev usb.Event) {
		action := "unbind"
		if ev.Added {
			action = "bind"
		}
		a.Metrics.HotplugEvents.WithLabelValues(ev.Driver, action).Inc()

		if ev.Added {
			return
		}

		if state := c.State(); state != lifecycle.StateDeviceResolved && state != lifecycle.StatePipelineRunning {
			return
		}

		endpoint := c.Endpoint()
		if sdr.ParseFamily(ev.Driver) != endpoint.Family {
			log.Debug("unplugged device does not belong to the selected sdr", zap.String("driver", ev.Driver))
			return
		}

		log.Error("selected sdr vanished", zap.Stringer("sdr", endpoint))
		cancel(usb.NewVanishedError(fmt.Sprintf("%s was unplugged", ev.Name)))
	})
}

// Run performs one rx or tx run until interrupt, console stop or failure
func (a *App) Run(ctx context.Context, direction config.Direction, params config.Parameters) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	c := a.Controller(direction, params)

	a.watchSignals(ctx, cancel)
	a.watchHotplug(ctx, cancel, c)

	err := c.Execute(ctx)

	var setupErr *pipeline.SetupError
	if errors.As(err, &setupErr) {
		a.Metrics.SetupFailures.WithLabelValues(setupErr.Stage).Inc()
	}

	cancel(nil)
	a.WG.Wait()

	return err
}
