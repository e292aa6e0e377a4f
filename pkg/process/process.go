package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/zap"
)

const (
	DefaultGracePeriod     = 5 * time.Second
	DefaultWriteBufferSize = 65535
)

var ErrAlreadyStarted = errors.New("process can not be started twice")

type ProcessStuckError struct {
	PID int
}

func (m *ProcessStuckError) Error() string {
	return fmt.Sprintf("process with pid %d was stuck", m.PID)
}

func (e *ProcessStuckError) Is(tgt error) bool {
	_, ok := tgt.(*ProcessStuckError)
	return ok
}

type ProcessNotStartedError struct {
	msg string
}

func (m *ProcessNotStartedError) Error() string {
	return m.msg
}

func (e *ProcessNotStartedError) Is(tgt error) bool {
	_, ok := tgt.(*ProcessNotStartedError)
	return ok
}

// TerminatedEarlyError is returned when a process exits while it was expected to keep running
type TerminatedEarlyError struct {
	Err error
}

func (e *TerminatedEarlyError) Error() string {
	if e.Err == nil {
		return "process terminated early"
	}
	return fmt.Sprintf("process terminated early: %s", e.Err)
}

func (e *TerminatedEarlyError) Unwrap() error {
	return e.Err
}

func (e *TerminatedEarlyError) Is(tgt error) bool {
	_, ok := tgt.(*TerminatedEarlyError)
	return ok
}

func NewTerminatedEarlyError(err error) error {
	return &TerminatedEarlyError{err}
}

type captureFile struct {
	path    string
	flags   int
	perm    fs.FileMode
	dirperm fs.FileMode
}

type CaptureFiles struct {
	StdOUT *captureFile
	StdERR *captureFile
}

func NewCaptureFile(path string) *captureFile {
	return &captureFile{
		path:    path,
		flags:   os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
		perm:    0660,
		dirperm: 0770,
	}
}

type OutputType byte

const (
	Stdout OutputType = iota
	Stderr
)

// Process is a supervised child process. It is started asynchronously and
// can be terminated from any goroutine, any number of times.
type Process struct {
	mu sync.Mutex

	cmd               *exec.Cmd
	terminationSignal syscall.Signal
	gracePeriod       time.Duration
	writeBufferSize   int
	files             *CaptureFiles

	// Store the dynamically assignable writers
	stdOutMultiWriter *DynamicMultiWriter
	stdErrMultiWriter *DynamicMultiWriter

	// Cleanup functions for the capture files, run after the process exited
	closers []func() error

	started     bool
	terminating bool
	done        chan struct{}
	exitErr     error

	terminateOnce sync.Once
	terminateErr  error
}

func New(cmd *exec.Cmd) *Process {
	return &Process{
		cmd:               cmd,
		terminationSignal: syscall.SIGTERM,
		gracePeriod:       DefaultGracePeriod,
		writeBufferSize:   DefaultWriteBufferSize,
		stdOutMultiWriter: NewDynamicMultiWriter(),
		stdErrMultiWriter: NewDynamicMultiWriter(),
		done:              make(chan struct{}),
	}
}

// Use a custom graceful termination signal, GNU Radio flowgraphs stop cleanly on SIGINT
func (p *Process) SetTerminationSignal(sig syscall.Signal) *Process {
	p.terminationSignal = sig
	return p
}

// Set the amount of time that has to pass before the process is killed if it did not
// respond to the termination signal.
func (p *Process) SetGracePeriod(period time.Duration) *Process {
	p.gracePeriod = period
	return p
}

// Add output files, they are flushed and closed once the process exited
func (p *Process) WithFiles(files CaptureFiles) *Process {
	p.files = &files
	return p
}

// Attach an arbitrary writer to the given output, remove it again with DetachStream.
// Closing the writer is the responsibility of the caller.
func (p *Process) AttachStream(outputType OutputType, writer io.Writer) *Process {
	switch outputType {
	case Stdout:
		p.stdOutMultiWriter.Append(writer)
	case Stderr:
		p.stdErrMultiWriter.Append(writer)
	}
	return p
}

// Detach an active writer
func (p *Process) DetachStream(writer io.Writer) bool {
	if !p.stdOutMultiWriter.Remove(writer) && !p.stdErrMultiWriter.Remove(writer) {
		log.Error("cant detach writer, not found")
		return false
	}
	return true
}

func (p *Process) String() string {
	return p.cmd.String()
}

// Pid returns the pid of the started process or zero
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Creates a file at the specified path
// Do not forget to call close on this!
func createFile(file *captureFile) (*os.File, error) {
	dirPath, err := filepath.Abs(filepath.Dir(file.path))
	if err != nil {
		log.Error("failed to get absolute path", zap.String("path", file.path))
		return nil, err
	}

	if err = os.MkdirAll(dirPath, file.dirperm); err != nil {
		log.Error("could not create required directories", zap.String("path", dirPath))
		return nil, err
	}

	// Create the output file with restrictive permission
	outfile, err := os.OpenFile(file.path, file.flags, file.perm)
	if err != nil {
		log.Error("could not create output file", zap.String("file", file.path))
		return nil, err
	}

	return outfile, nil
}

func (p *Process) attachCaptureFile(outputType OutputType, file *captureFile) error {
	// Optional
	if file == nil {
		return nil
	}

	outfile, err := createFile(file)
	if err != nil {
		return err
	}

	bufferedWriter := bufio.NewWriterSize(outfile, p.writeBufferSize)
	p.AttachStream(outputType, bufferedWriter)

	// This function takes care of flushing and closing the file
	p.closers = append(p.closers, func() error {
		// Ignore flush errors
		_ = bufferedWriter.Flush()
		return outfile.Close()
	})

	return nil
}

func (p *Process) removeCaptureFiles() {
	if p.files == nil {
		return
	}

	for _, f := range []*captureFile{p.files.StdOUT, p.files.StdERR} {
		if f != nil {
			_ = os.Remove(f.path)
		}
	}
}

func (p *Process) runClosers() {
	for _, closeFn := range p.closers {
		_ = closeFn()
	}
	p.closers = nil
}

// Start launches the process without blocking. Use Wait or Done to observe its exit.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	log.Debug("preparing command execution", zap.String("cmd", p.cmd.String()))

	if p.files != nil {
		if err := p.attachCaptureFile(Stdout, p.files.StdOUT); err != nil {
			p.runClosers()
			return err
		}
		if err := p.attachCaptureFile(Stderr, p.files.StdERR); err != nil {
			p.runClosers()
			return err
		}
	}

	// The multi writers are always assigned so streams can be attached later on
	p.cmd.Stdout = p.stdOutMultiWriter
	p.cmd.Stderr = p.stdErrMultiWriter

	// This requests a process group from the system, all spawned children will belong to it
	p.cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := p.cmd.Start(); err != nil {
		log.Error("could not start process", zap.String("cmd", p.cmd.String()), zap.Error(err))

		// Delete the files if the process did not run
		p.runClosers()
		p.removeCaptureFiles()

		return &ProcessNotStartedError{err.Error()}
	}

	p.started = true
	go p.reap()

	return nil
}

func (p *Process) reap() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.runClosers()
	requested := p.terminating
	p.mu.Unlock()

	pid := p.cmd.Process.Pid
	if status, ok := p.cmd.ProcessState.Sys().(syscall.WaitStatus); ok && status.Signaled() && !requested {
		log.Error("process was terminated by outside signal", zap.Int("pid", pid), zap.Any("signal", status.Signal()))
	} else if err != nil && !requested {
		log.Error("process did not exit cleanly", zap.Int("pid", pid), zap.Error(err))
	} else {
		log.Info("process terminated", zap.Int("pid", pid), zap.Bool("requested", requested))
	}

	// We dont want these "fake" errors to bubble up if the process honored our request
	if requested {
		err = nil
	}

	p.exitErr = err
	close(p.done)
}

// Done is closed once the process exited, it never closes for a process that was not started
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exited and returns its exit error.
// A process that was never started returns immediately.
func (p *Process) Wait() error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	<-p.done
	return p.exitErr
}

// Exited reports whether the process ran and has already exited
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminate gracefully stops the process by sending the termination signal first and then killing it.
// Only the first call does the work, every later call returns the same result.
func (p *Process) Terminate() error {
	p.terminateOnce.Do(func() {
		p.terminateErr = p.terminate()
	})
	return p.terminateErr
}

func (p *Process) terminate() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		log.Debug("process was not started, nothing to terminate", zap.String("cmd", p.cmd.String()))
		return nil
	}
	p.terminating = true
	p.mu.Unlock()

	// Nothing to do if it terminated on its own
	if p.Exited() {
		return nil
	}

	// The negative PID addresses the whole process group
	targetPID := -p.cmd.Process.Pid

	// Save the string representation of the termination signal
	terminationSignalStr := p.terminationSignal.String()

	log.Info("invoking signal", zap.Int("pid", targetPID), zap.String("signal", terminationSignalStr))
	if err := syscall.Kill(targetPID, p.terminationSignal); err != nil {
		// ESRCH means it exited between our check and the signal, the reaper will finish up
		log.Warn("could not send signal to process", zap.Int("pid", targetPID), zap.String("signal", terminationSignalStr), zap.Error(err))
	}

	// Kill is guaranteed to terminate, so this is safe
	if p.terminationSignal == syscall.SIGKILL {
		<-p.done
		return nil
	}

	timer := time.NewTimer(p.gracePeriod)
	defer timer.Stop()

	log.Debug("started exit grace period", zap.Int("pid", targetPID), zap.Duration("period", p.gracePeriod))

	select {
	case <-p.done:
		log.Info("process finished after termination request", zap.Int("pid", targetPID))
		return nil
	case <-timer.C:
		log.Warn("shutdown grace period exceeded, killing stuck process", zap.Int("pid", targetPID))

		if err := syscall.Kill(targetPID, syscall.SIGKILL); err != nil {
			log.Error("error sending SIGKILL to process", zap.Int("pid", targetPID), zap.Error(err))
		}

		// Wait needs to terminate correctly
		<-p.done

		return &ProcessStuckError{targetPID}
	}
}
