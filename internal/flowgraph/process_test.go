package flowgraph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/misc"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/process"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/usb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const readyRunner = `cp "$1" "$(dirname "$1")/copy.toml"
echo "flowgraph running" >&2
trap 'exit 0' INT
while true; do sleep 0.05; done
`

func SetupRunnerTest(t *testing.T, script string) (Options, func()) {
	t.Helper()

	log.Init(true)
	dir := t.TempDir()
	path := filepath.Join(dir, "runner.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	opts := Options{
		Runner:         "/bin/sh " + path + " " + DescriptionPlaceholder,
		WorkDir:        filepath.Join(dir, "work"),
		RunID:          "test",
		ReadyMarker:    "flowgraph running",
		GracePeriod:    time.Second,
		StartupTimeout: 2 * time.Second,
	}

	// shared tear down logic
	return opts, func() {
		// Verify go-routine leaks
		goleak.VerifyNone(t)
	}
}

func connected(t *testing.T, g *ProcessGraph) {
	t.Helper()

	src, err := g.AddBlock(KindUDPSource, udpParams(5003))
	require.NoError(t, err)
	sink, err := g.AddBlock(KindUDPSink, udpParams(5004))
	require.NoError(t, err)
	require.NoError(t, g.Connect(src, sink))
}

func TestProcessGraphStartStop(t *testing.T) {
	opts, teardown := SetupRunnerTest(t, readyRunner)
	defer teardown()

	g := NewProcessGraph("loopback", opts)
	connected(t, g)

	require.NoError(t, g.Start(context.Background()))
	assert.NotZero(t, g.Pid())
	assert.FileExists(t, g.DescriptionPath())
	assert.FileExists(t, filepath.Join(opts.WorkDir, "copy.toml"))

	// Running graphs are sealed
	_, err := g.AddBlock(KindUDPSink, udpParams(6000))
	assert.ErrorIs(t, err, ErrGraphStarted)
	assert.ErrorIs(t, g.Start(context.Background()), ErrGraphStarted)

	assert.NoError(t, g.Stop())
	assert.NoError(t, g.Stop())
	assert.NoError(t, g.Wait())
	assert.NoError(t, g.Wait())

	assert.NoFileExists(t, g.DescriptionPath())
	select {
	case <-g.Done():
	default:
		t.Fatal("done channel not closed after wait")
	}
}

func TestProcessGraphCaptureOutput(t *testing.T) {
	opts, teardown := SetupRunnerTest(t, readyRunner)
	defer teardown()

	opts.CaptureOutput = true
	g := NewProcessGraph("loopback", opts)
	connected(t, g)

	require.NoError(t, g.Start(context.Background()))
	require.NoError(t, g.Stop())
	require.NoError(t, g.Wait())

	stdoutPath, stderrPath := g.OutputPaths()
	assert.Equal(t, filepath.Join(opts.WorkDir, "loopback-test.stderr.log"), stderrPath)
	assert.FileExists(t, stdoutPath)

	content, err := os.ReadFile(stderrPath)
	require.NoError(t, err)
	assert.Equal(t, "flowgraph running\n", string(content))
}

func TestProcessGraphStopWithoutStart(t *testing.T) {
	opts, teardown := SetupRunnerTest(t, readyRunner)
	defer teardown()

	g := NewProcessGraph("loopback", opts)
	assert.NoError(t, g.Stop())
	assert.NoError(t, g.Wait())
	assert.Nil(t, g.Done())

	connected(t, g)
	assert.ErrorIs(t, g.Start(context.Background()), ErrGraphStopped)
}

func TestProcessGraphEmpty(t *testing.T) {
	opts, teardown := SetupRunnerTest(t, readyRunner)
	defer teardown()

	g := NewProcessGraph("empty", opts)
	assert.ErrorIs(t, g.Start(context.Background()), ErrEmptyGraph)
}

func TestProcessGraphStartupChecks(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   error
	}{
		{"busy", "echo 'usb_claim_interface error: Resource busy' >&2\nsleep 5\n", &usb.StuckError{}},
		{"no device", "echo 'No supported devices found' >&2\nexit 1\n", &usb.NotFoundError{}},
		{"early exit", "echo 'loading blocks'\nexit 3\n", &process.TerminatedEarlyError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, teardown := SetupRunnerTest(t, tt.script)
			defer teardown()

			g := NewProcessGraph("failing", opts)
			connected(t, g)

			err := g.Start(context.Background())
			assert.ErrorIs(t, err, tt.want)

			// The runner is gone after a failed start
			assert.NoError(t, g.Stop())
			_ = g.Wait()
			assert.NoFileExists(t, g.DescriptionPath())
		})
	}
}

func TestProcessGraphEarlyExitCarriesExitError(t *testing.T) {
	opts, teardown := SetupRunnerTest(t, "exit 3\n")
	defer teardown()

	g := NewProcessGraph("failing", opts)
	connected(t, g)

	err := g.Start(context.Background())
	require.ErrorIs(t, err, &process.TerminatedEarlyError{})
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestProcessGraphStartupTimeout(t *testing.T) {
	opts, teardown := SetupRunnerTest(t, "trap 'exit 0' INT\nwhile true; do sleep 0.05; done\n")
	defer teardown()

	opts.StartupTimeout = 200 * time.Millisecond
	g := NewProcessGraph("silent", opts)
	connected(t, g)

	assert.ErrorIs(t, g.Start(context.Background()), &misc.TimedOutError{})
	assert.NoError(t, g.Wait())
}

func TestProcessGraphStartupCancelled(t *testing.T) {
	opts, teardown := SetupRunnerTest(t, "trap 'exit 0' INT\nwhile true; do sleep 0.05; done\n")
	defer teardown()

	cause := errors.New("interrupted")
	ctx, cancel := context.WithCancelCause(context.Background())
	time.AfterFunc(100*time.Millisecond, func() { cancel(cause) })

	g := NewProcessGraph("silent", opts)
	connected(t, g)

	assert.ErrorIs(t, g.Start(ctx), cause)
	assert.NoError(t, g.Wait())
}

func TestProcessGraphWithoutReadyMarker(t *testing.T) {
	opts, teardown := SetupRunnerTest(t, "trap 'exit 0' INT\nwhile true; do sleep 0.05; done\n")
	defer teardown()

	opts.ReadyMarker = ""
	g := NewProcessGraph("unchecked", opts)
	connected(t, g)

	require.NoError(t, g.Start(context.Background()))
	assert.NoError(t, g.Stop())
	assert.NoError(t, g.Wait())
}

func TestProcessGraphRunnerMissing(t *testing.T) {
	opts, teardown := SetupRunnerTest(t, readyRunner)
	defer teardown()

	opts.Runner = filepath.Join(opts.WorkDir, "we-dont-exist") + " " + DescriptionPlaceholder
	g := NewProcessGraph("missing", opts)
	connected(t, g)

	assert.ErrorIs(t, g.Start(context.Background()), &process.ProcessNotStartedError{})
	assert.NoFileExists(t, g.DescriptionPath())
	assert.NoError(t, g.Stop())
}
