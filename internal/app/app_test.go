package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/config"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/lifecycle"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/pipeline"
	"github.com/iottrends-tech/dvb-s2-SDR/internal/sdr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const soapyScript = `#!/bin/sh
cat <<OUT
######################################################
##     Soapy SDR -- the SDR abstraction library     ##
######################################################

Found device 0
  device = HackRF One
  driver = hackrf
  label = HackRF One #0 0000000000000000
  serial = 0000000000000000

OUT
`

const emptySoapyScript = `#!/bin/sh
echo "No devices found!"
`

const runnerScript = `echo "flowgraph running" >&2
trap 'exit 0' INT
while true; do sleep 0.05; done
`

const silentRunnerScript = `trap 'exit 0' INT
while true; do sleep 0.05; done
`

const companionScript = `trap 'exit 0' TERM
while true; do sleep 0.05; done
`

const configTemplate = `
[device]
enumerator = "soapy"
soapy_util = "%[1]s/soapy.sh"
hotplug = false

[flowgraph]
runner = "/bin/sh %[1]s/runner.sh {description}"
work_dir = "%[1]s/work"
ready_marker = "flowgraph running"
grace_period = "1s"
startup_timeout = "2s"

[companion]
player = "/bin/sh %[1]s/companion.sh {port}"
muxer = "/bin/sh %[1]s/companion.sh {listen_port}"
startup_delay = "200ms"
grace_period = "1s"
`

func write(t *testing.T, path string, content string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
}

func SetupAppTest(t *testing.T, soapy string) (*App, func()) {
	t.Helper()

	dir := t.TempDir()
	write(t, filepath.Join(dir, "soapy.sh"), soapy, 0755)
	write(t, filepath.Join(dir, "runner.sh"), runnerScript, 0644)
	write(t, filepath.Join(dir, "companion.sh"), companionScript, 0644)

	confPath := filepath.Join(dir, "config.toml")
	write(t, confPath, fmt.Sprintf(configTemplate, dir), 0644)

	app, err := Setup(Flags{ConfigPath: confPath, Debug: true})
	require.NoError(t, err)

	return app, func() {
		app.Shutdown()
		goleak.VerifyNone(t, goleak.IgnoreTopFunction("os/signal.signal_recv"))
	}
}

func receiveParameters() config.Parameters {
	return config.Parameters{
		Freq:    1.2e9,
		Rate:    2e6,
		Gain:    40,
		ModCod:  "QPSK1/2",
		RollOff: 0.35,
		Port:    5004,
	}
}

func TestSetupRequiresExplicitConfig(t *testing.T) {
	_, err := Setup(Flags{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnumeratorFollowsConfig(t *testing.T) {
	app, teardown := SetupAppTest(t, soapyScript)
	defer teardown()

	assert.IsType(t, &sdr.SoapyEnumerator{}, app.Enumerator())
	assert.NotEmpty(t, app.RunID)
}

func TestReceiveRunStopsOnSignal(t *testing.T) {
	app, teardown := SetupAppTest(t, soapyScript)
	defer teardown()

	done := make(chan error, 1)
	go func() {
		done <- app.Run(context.Background(), config.Receive, receiveParameters())
	}()

	running := float64(lifecycle.StatePipelineRunning)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(app.Metrics.State) == running
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(app.Metrics.Stages))
	assert.Equal(t, 1.0, testutil.ToFloat64(app.Metrics.RunInfo.WithLabelValues("receive", "QPSK1/2", "hackrf")))

	app.ExitSignal <- syscall.SIGINT

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after the exit signal")
	}

	assert.Equal(t, float64(lifecycle.StateTerminated), testutil.ToFloat64(app.Metrics.State))
	assert.Equal(t, 0.0, testutil.ToFloat64(app.Metrics.Stages))
	assert.Equal(t, 1.0, testutil.ToFloat64(app.Metrics.Transitions.WithLabelValues("stopping")))
}

func TestTransmitRunStopsOnEnter(t *testing.T) {
	app, teardown := SetupAppTest(t, soapyScript)
	defer teardown()

	app.Console = strings.NewReader("\n")

	params := receiveParameters()
	params.Gain = 30
	params.Pilots = true
	params.Port = 5005

	require.NoError(t, app.Run(context.Background(), config.Transmit, params))
	assert.Equal(t, 1.0, testutil.ToFloat64(app.Metrics.Transitions.WithLabelValues("pipeline_running")))
}

func TestRunWithoutDevice(t *testing.T) {
	app, teardown := SetupAppTest(t, emptySoapyScript)
	defer teardown()

	err := app.Run(context.Background(), config.Receive, receiveParameters())
	assert.ErrorIs(t, err, &sdr.NoDeviceFoundError{})
	assert.Equal(t, 0.0, testutil.ToFloat64(app.Metrics.Transitions.WithLabelValues("pipeline_running")))
}

func TestRunCountsSetupFailures(t *testing.T) {
	app, teardown := SetupAppTest(t, soapyScript)
	defer teardown()

	// The runner never reports readiness within the startup timeout
	write(t, filepath.Join(filepath.Dir(app.Conf.Path()), "runner.sh"), silentRunnerScript, 0644)

	err := app.Run(context.Background(), config.Receive, receiveParameters())
	assert.ErrorIs(t, err, &pipeline.SetupError{})
	assert.Equal(t, 1.0, testutil.ToFloat64(app.Metrics.SetupFailures.WithLabelValues("start")))
}

func TestTransmitOutOfRangeIsRejected(t *testing.T) {
	app, teardown := SetupAppTest(t, soapyScript)
	defer teardown()

	params := receiveParameters()
	params.Freq = 10e9

	err := app.Run(context.Background(), config.Transmit, params)
	assert.ErrorIs(t, err, &config.ConfigurationError{})
}

func TestDryRun(t *testing.T) {
	app, teardown := SetupAppTest(t, soapyScript)
	defer teardown()

	params := receiveParameters()
	params.ModCod = "8psk2/3"
	params.Pilots = true

	var out bytes.Buffer
	require.NoError(t, app.DryRun(context.Background(), config.Transmit, params, &out))

	s := out.String()
	assert.Contains(t, s, "HackRF One #0 0000000000000000 (Driver: hackrf)")
	assert.Contains(t, s, "BLOCK")
	assert.Contains(t, s, "dtv.dvbs2_modulator_bc")
	assert.Contains(t, s, "MOD_8PSK")
	assert.Contains(t, s, "run_id")

	// Nothing was started, so no description was written
	assert.NoDirExists(t, filepath.Join(filepath.Dir(app.Conf.Path()), "work"))
}

func TestDryRunWithoutDevice(t *testing.T) {
	app, teardown := SetupAppTest(t, emptySoapyScript)
	defer teardown()

	var out bytes.Buffer
	err := app.DryRun(context.Background(), config.Receive, receiveParameters(), &out)
	assert.ErrorIs(t, err, &sdr.NoDeviceFoundError{})
	assert.Empty(t, out.String())
}
