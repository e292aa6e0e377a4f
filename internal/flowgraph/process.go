package flowgraph

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/file"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/process"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const DescriptionPlaceholder = "{description}"

var ErrGraphStopped = errors.New("flowgraph was stopped")

type Options struct {
	// Runner command line, DescriptionPlaceholder is replaced with the description path
	Runner  string
	WorkDir string
	RunID   string

	// Output fragment the runner prints once the flowgraph is scheduled.
	// Without a marker the graph counts as running right after launch.
	ReadyMarker    string
	GracePeriod    time.Duration
	StartupTimeout time.Duration

	// Keep the runner output next to the description, the files outlive the run
	CaptureOutput bool
}

// ProcessGraph runs the chain in an external GNU Radio runner. The chain is written
// to a description file and the runner is supervised as a process group, it is
// stopped with SIGINT so the scheduler can shut the blocks down.
type ProcessGraph struct {
	*Chain
	opts Options

	mu       sync.Mutex
	proc     *process.Process
	stopped  bool
	writers  []*log.LineWriter
	stopOnce sync.Once
	stopErr  error
}

func NewProcessGraph(name string, opts Options) *ProcessGraph {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = process.DefaultGracePeriod
	}

	return &ProcessGraph{
		Chain: NewChain(name),
		opts:  opts,
	}
}

func (g *ProcessGraph) DescriptionPath() string {
	name := g.Name()
	if g.opts.RunID != "" {
		name = fmt.Sprintf("%s-%s", name, g.opts.RunID)
	}
	return filepath.Join(g.opts.WorkDir, name+".toml")
}

// OutputPaths are the capture files of stdout and stderr
func (g *ProcessGraph) OutputPaths() (string, string) {
	base := strings.TrimSuffix(g.DescriptionPath(), ".toml")
	return base + ".stdout.log", base + ".stderr.log"
}

func (g *ProcessGraph) command(path string) (*exec.Cmd, error) {
	fields := strings.Fields(g.opts.Runner)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no flowgraph runner configured")
	}

	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, DescriptionPlaceholder, path)
	}
	return exec.Command(fields[0], fields[1:]...), nil
}

// Start writes the description, launches the runner and blocks until the startup
// check passed. On failure the runner is stopped again before returning.
func (g *ProcessGraph) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return ErrGraphStopped
	}

	proc, startup, err := g.launch()
	g.mu.Unlock()
	if err != nil {
		return err
	}

	if startup != nil {
		err = startup(ctx)
	}

	if err != nil {
		if errors.Is(err, &process.TerminatedEarlyError{}) && proc.Exited() {
			err = process.NewTerminatedEarlyError(proc.Wait())
		}

		log.Warn("startup error encountered, stopping the runner", zap.Error(err))
		_ = g.Stop()
		return err
	}

	log.Info("flowgraph running", zap.String("graph", g.Name()), zap.Int("pid", proc.Pid()))
	return nil
}

// launch must be called with g.mu held
func (g *ProcessGraph) launch() (*process.Process, func(context.Context) error, error) {
	if err := g.freeze(); err != nil {
		return nil, nil, err
	}

	data, err := g.Describe(g.opts.RunID).Marshal()
	if err != nil {
		return nil, nil, err
	}

	path := g.DescriptionPath()
	if err := file.WriteTo(path, data); err != nil {
		return nil, nil, err
	}

	cmd, err := g.command(path)
	if err != nil {
		return nil, nil, err
	}

	proc := process.New(cmd).
		SetTerminationSignal(syscall.SIGINT).
		SetGracePeriod(g.opts.GracePeriod)

	if g.opts.CaptureOutput {
		stdoutPath, stderrPath := g.OutputPaths()
		proc.WithFiles(process.CaptureFiles{
			StdOUT: process.NewCaptureFile(stdoutPath),
			StdERR: process.NewCaptureFile(stderrPath),
		})
	}

	logger := log.Named("runner")
	stdout := log.NewLineWriter(logger, zapcore.InfoLevel)
	stderr := log.NewLineWriter(logger, zapcore.WarnLevel)
	proc.AttachStream(process.Stdout, stdout).AttachStream(process.Stderr, stderr)
	g.writers = []*log.LineWriter{stdout, stderr}

	var startup func(context.Context) error
	var checkReader *io.PipeReader
	var checkWriter *io.PipeWriter
	if g.opts.ReadyMarker != "" {
		// Create the pipe we are using for interactive reading
		checkReader, checkWriter = io.Pipe()
		proc.AttachStream(process.Stdout, checkWriter).AttachStream(process.Stderr, checkWriter)
	}

	if err := proc.Start(); err != nil {
		_ = os.Remove(path)
		return nil, nil, err
	}
	g.proc = proc

	if checkReader != nil {
		startup = func(ctx context.Context) error {
			checked := make(chan struct{})
			defer close(checked)

			// Ending the stream once the runner exited lets the check see everything it printed
			go func() {
				select {
				case <-proc.Done():
				case <-checked:
				}
				_ = checkWriter.Close()
			}()

			err := monitorStartup(ctx, bufio.NewScanner(checkReader), startupChecks(g.opts.ReadyMarker), g.opts.StartupTimeout)

			// Detach from both outputs and unblock writes that are still in flight
			proc.DetachStream(checkWriter)
			proc.DetachStream(checkWriter)
			_ = checkReader.Close()

			return err
		}
	}

	return proc, startup, nil
}

// Stop interrupts the runner and kills it after the grace period
func (g *ProcessGraph) Stop() error {
	g.stopOnce.Do(func() {
		g.mu.Lock()
		g.stopped = true
		proc := g.proc
		g.mu.Unlock()

		if proc == nil {
			return
		}

		g.stopErr = proc.Terminate()
		for _, w := range g.writers {
			_ = w.Close()
		}

		if err := os.Remove(g.DescriptionPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("could not remove flowgraph description", zap.String("path", g.DescriptionPath()), zap.Error(err))
		}
	})
	return g.stopErr
}

// Wait blocks until the runner exited. A runner stopped on request reports no error.
func (g *ProcessGraph) Wait() error {
	g.mu.Lock()
	proc := g.proc
	g.mu.Unlock()

	if proc == nil {
		return nil
	}
	return proc.Wait()
}

func (g *ProcessGraph) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.proc == nil {
		return nil
	}
	return g.proc.Done()
}

func (g *ProcessGraph) Pid() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.proc == nil {
		return 0
	}
	return g.proc.Pid()
}
