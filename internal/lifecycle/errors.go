package lifecycle

import (
	"context"
	"errors"
)

var (
	// ErrInterrupted is the cancellation cause of an operator interrupt
	ErrInterrupted = errors.New("interrupted")
	// ErrConsoleClosed is the cancellation cause of Enter or end of input on the console
	ErrConsoleClosed = errors.New("stopped from console")
)

// PipelineExitedError is the cancellation cause when the data path ends on its own
type PipelineExitedError struct {
	Err error
}

func (e *PipelineExitedError) Error() string {
	if e.Err == nil {
		return "pipeline exited unexpectedly"
	}
	return "pipeline exited unexpectedly: " + e.Err.Error()
}

func (e *PipelineExitedError) Unwrap() error {
	return e.Err
}

func (e *PipelineExitedError) Is(tgt error) bool {
	_, ok := tgt.(*PipelineExitedError)
	return ok
}

// Graceful reports whether the cause ends a run without an error
func Graceful(cause error) bool {
	return cause == nil ||
		errors.Is(cause, ErrInterrupted) ||
		errors.Is(cause, ErrConsoleClosed) ||
		errors.Is(cause, context.Canceled)
}
