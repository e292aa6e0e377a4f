package flowgraph

import (
	"errors"
	"fmt"
)

var (
	ErrGraphStarted  = errors.New("flowgraph is already running")
	ErrBlockReleased = errors.New("block was released")
	ErrForeignBlock  = errors.New("block belongs to another flowgraph")
	ErrEmptyGraph    = errors.New("flowgraph has no connected blocks")
)

// ParameterError is returned when a block is constructed or tuned with an unsupported value
type ParameterError struct {
	Block string
	Param string
	Value string
	Valid string
}

func (e *ParameterError) Error() string {
	if e.Valid == "" {
		return fmt.Sprintf("%s: unsupported %s %q", e.Block, e.Param, e.Value)
	}
	return fmt.Sprintf("%s: unsupported %s %q, must be %s", e.Block, e.Param, e.Value, e.Valid)
}

func (e *ParameterError) Is(tgt error) bool {
	_, ok := tgt.(*ParameterError)
	return ok
}

func NewParameterError(block string, param string, value any, valid string) error {
	return &ParameterError{Block: block, Param: param, Value: fmt.Sprint(value), Valid: valid}
}

// ConnectionError is returned when blocks can not be chained
type ConnectionError struct {
	From string
	To   string
	msg  string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("can not connect %s to %s: %s", e.From, e.To, e.msg)
}

func (e *ConnectionError) Is(tgt error) bool {
	_, ok := tgt.(*ConnectionError)
	return ok
}

func NewConnectionError(from string, to string, msg string) error {
	return &ConnectionError{From: from, To: to, msg: msg}
}
