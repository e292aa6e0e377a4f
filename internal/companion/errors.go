package companion

import "fmt"

// CompanionProcessError is logged when the player or muxer could not be launched.
// It never aborts a run, the pipeline works without its local consumer.
type CompanionProcessError struct {
	Role    Role
	Command string
	Err     error
}

func (e *CompanionProcessError) Error() string {
	return fmt.Sprintf("could not launch %s %q: %s", e.Role, e.Command, e.Err)
}

func (e *CompanionProcessError) Unwrap() error {
	return e.Err
}

func (e *CompanionProcessError) Is(tgt error) bool {
	_, ok := tgt.(*CompanionProcessError)
	return ok
}

func NewCompanionProcessError(role Role, command string, err error) error {
	return &CompanionProcessError{Role: role, Command: command, Err: err}
}
