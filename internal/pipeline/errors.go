package pipeline

import "fmt"

// SetupError reports the stage that failed while the chain was constructed or connected
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("pipeline setup failed at %s: %s", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

func (e *SetupError) Is(tgt error) bool {
	_, ok := tgt.(*SetupError)
	return ok
}

func NewSetupError(stage string, err error) error {
	return &SetupError{Stage: stage, Err: err}
}
