// Package companion launches the local transport stream peer of a pipeline: a media
// player consuming the received stream or a muxer feeding the transmit chain.
package companion

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/config"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/process"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Role string

const (
	RolePlayer Role = "player"
	RoleMuxer  Role = "muxer"
)

const (
	PlaceholderPort        = "{port}"
	PlaceholderListenPort  = "{listen_port}"
	PlaceholderForwardPort = "{forward_port}"
)

type Supervisor struct {
	role        Role
	commandLine string
	gracePeriod time.Duration

	// Called with every launch failure, e.g. to count them
	OnFailure func(err error)
}

func NewSupervisor(role Role, commandLine string, gracePeriod time.Duration) *Supervisor {
	if gracePeriod <= 0 {
		gracePeriod = process.DefaultGracePeriod
	}
	return &Supervisor{role: role, commandLine: commandLine, gracePeriod: gracePeriod}
}

// ForDirection picks the player for receive and the muxer for transmit
func ForDirection(direction config.Direction, cfg config.CompanionConfig) *Supervisor {
	if direction == config.Transmit {
		return NewSupervisor(RoleMuxer, cfg.Muxer, cfg.GracePeriod.Value())
	}
	return NewSupervisor(RolePlayer, cfg.Player, cfg.GracePeriod.Value())
}

func (s *Supervisor) Role() Role {
	return s.role
}

// Command expands the placeholders for the pipeline port. The muxer listens one
// port below the pipeline and forwards into it.
func (s *Supervisor) Command(port int) []string {
	r := strings.NewReplacer(
		PlaceholderPort, strconv.Itoa(port),
		PlaceholderListenPort, strconv.Itoa(port-1),
		PlaceholderForwardPort, strconv.Itoa(port),
	)
	return strings.Fields(r.Replace(s.commandLine))
}

// Start launches the companion for the given pipeline port. Launch failures are
// logged and yield a nil handle, which is safe to terminate.
func (s *Supervisor) Start(ctx context.Context, port int) *Process {
	args := s.Command(port)

	err := ctx.Err()
	if err == nil && len(args) == 0 {
		err = fmt.Errorf("no command configured")
	}

	var proc *process.Process
	var writer *log.LineWriter
	if err == nil {
		writer = log.NewLineWriter(log.Named(string(s.role)), zapcore.DebugLevel)
		proc = process.New(exec.Command(args[0], args[1:]...)).SetGracePeriod(s.gracePeriod)
		proc.AttachStream(process.Stdout, writer).AttachStream(process.Stderr, writer)
		err = proc.Start()
	}

	if err != nil {
		cerr := NewCompanionProcessError(s.role, strings.Join(args, " "), err)
		log.Error("companion process not started, continuing without it", zap.Error(cerr))
		if s.OnFailure != nil {
			s.OnFailure(cerr)
		}
		return nil
	}

	log.Info("companion process started", zap.String("role", string(s.role)), zap.Int("pid", proc.Pid()), zap.Int("port", port))
	return &Process{role: s.role, proc: proc, writer: writer}
}

// Process is the handle of a launched companion
type Process struct {
	role   Role
	proc   *process.Process
	writer *log.LineWriter
}

func (p *Process) Role() Role {
	if p == nil {
		return ""
	}
	return p.role
}

func (p *Process) Pid() int {
	if p == nil {
		return 0
	}
	return p.proc.Pid()
}

// Exited reports whether the companion already ended, a nil handle never ran
func (p *Process) Exited() bool {
	if p == nil {
		return true
	}
	return p.proc.Exited()
}

// Terminate stops the companion and its children. It is idempotent and safe on a nil handle.
func (p *Process) Terminate() error {
	if p == nil {
		return nil
	}

	err := p.proc.Terminate()
	_ = p.writer.Close()
	return err
}
