package flowgraph

import (
	"fmt"
	"reflect"

	"github.com/pelletier/go-toml/v2"
)

type BlockDescription struct {
	Name   string         `toml:"name"`
	Kind   Kind           `toml:"kind"`
	Params map[string]any `toml:"params"`
}

// Description is the runner input, one table per block plus the stream edges
type Description struct {
	Name        string             `toml:"name"`
	RunID       string             `toml:"run_id,omitempty"`
	Blocks      []BlockDescription `toml:"block"`
	Connections []Connection       `toml:"connection"`
}

func (d Description) Marshal() ([]byte, error) {
	return toml.Marshal(d)
}

// Describe snapshots the chain. Enumerated values are rendered by their constant name.
func (c *Chain) Describe(runID string) Description {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := Description{
		Name:        c.name,
		RunID:       runID,
		Blocks:      make([]BlockDescription, 0, len(c.blocks)),
		Connections: make([]Connection, len(c.connections)),
	}
	copy(d.Connections, c.connections)

	for _, b := range c.blocks {
		params := make(map[string]any, len(b.params))
		for k, v := range b.params {
			if s, ok := v.(fmt.Stringer); ok {
				params[k] = s.String()
				continue
			}
			// Named string types render as plain strings
			if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
				params[k] = rv.String()
				continue
			}
			params[k] = v
		}

		d.Blocks = append(d.Blocks, BlockDescription{Name: b.name, Kind: b.kind, Params: params})
	}

	return d
}
