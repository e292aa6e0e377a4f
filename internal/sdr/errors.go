package sdr

type NoDeviceFoundError struct {
	msg string
}

func (n *NoDeviceFoundError) Error() string {
	return n.msg
}

func (n *NoDeviceFoundError) Is(e error) bool {
	_, ok := e.(*NoDeviceFoundError)
	return ok
}

func NewNoDeviceFoundError(msg string) error {
	return &NoDeviceFoundError{msg}
}
