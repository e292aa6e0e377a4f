package usb

// NotFoundError means no supported SDR is attached to the bus
type NotFoundError struct {
	msg string
}

func (n *NotFoundError) Error() string {
	return n.msg
}

func (n *NotFoundError) Is(e error) bool {
	_, ok := e.(*NotFoundError)
	return ok
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{msg}
}

// VanishedError is the stop cause when the SDR is unplugged while a pipeline runs
type VanishedError struct {
	msg string
}

func (v *VanishedError) Error() string {
	return v.msg
}

func (v *VanishedError) Is(e error) bool {
	_, ok := e.(*VanishedError)
	return ok
}

func NewVanishedError(msg string) error {
	return &VanishedError{msg}
}

// StuckError is returned when the SDR is held by another process or
// the driver left it in a state that needs a replug.
type StuckError struct {
	msg string
}

func (s *StuckError) Error() string {
	return s.msg
}

func (s *StuckError) Is(e error) bool {
	_, ok := e.(*StuckError)
	return ok
}

func NewStuckError(msg string) error {
	return &StuckError{msg}
}
