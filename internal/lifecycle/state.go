package lifecycle

import "fmt"

type State int

const (
	StateInit State = iota
	StateConfigured
	StateDeviceResolved
	StatePipelineRunning
	StateStopping
	StateTerminated
)

var stateNames = map[State]string{
	StateInit:            "init",
	StateConfigured:      "configured",
	StateDeviceResolved:  "device_resolved",
	StatePipelineRunning: "pipeline_running",
	StateStopping:        "stopping",
	StateTerminated:      "terminated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// States lists every state in lifecycle order
func States() []State {
	return []State{StateInit, StateConfigured, StateDeviceResolved, StatePipelineRunning, StateStopping, StateTerminated}
}

// Stopping is reachable from every state before it, the rest only moves forward by one
func validTransition(from State, to State) bool {
	switch to {
	case StateStopping:
		return from < StateStopping
	default:
		return to == from+1
	}
}
