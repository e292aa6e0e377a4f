package flowgraph

import (
	"fmt"
	"sync"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/zap"
)

// Connection is a single stream edge between two blocks
type Connection struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// Chain holds the constructed blocks and their connections in memory. It implements
// every Graph operation except the run control, which the runner backends add.
type Chain struct {
	mu sync.Mutex

	name        string
	blocks      []*block
	index       map[string]*block
	connections []Connection
	counter     map[Kind]int

	// Set once the chain was handed to a runner
	frozen bool
}

func NewChain(name string) *Chain {
	return &Chain{
		name:    name,
		index:   make(map[string]*block),
		counter: make(map[Kind]int),
	}
}

func (c *Chain) Name() string {
	return c.name
}

func (c *Chain) add(kind Kind, params Params) (*block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return nil, ErrGraphStarted
	}

	name := fmt.Sprintf("%s_%d", kind.short(), c.counter[kind])
	params = params.clone()

	if err := validate(name, kind, params); err != nil {
		log.Error("block construction failed", zap.String("block", name), zap.Error(err))
		return nil, err
	}

	c.counter[kind]++
	b := &block{chain: c, name: name, kind: kind, params: params}
	c.blocks = append(c.blocks, b)
	c.index[name] = b

	log.Debug("block constructed", zap.String("block", name), zap.Any("params", params))
	return b, nil
}

// AddBlock constructs a block of the given kind after validating its parameters
func (c *Chain) AddBlock(kind Kind, params Params) (Block, error) {
	if kind.IsRadio() {
		args, _ := params[ParamArgs].(string)
		return c.AddRadio(kind, args)
	}
	return c.add(kind, params)
}

// AddRadio constructs an SDR source or sink addressed by the osmosdr argument string
func (c *Chain) AddRadio(kind Kind, args string) (Radio, error) {
	if !kind.IsRadio() {
		return nil, NewParameterError(kind.short(), "kind", kind, "an SDR source or sink")
	}

	b, err := c.add(kind, Params{ParamArgs: args})
	if err != nil {
		return nil, err
	}
	return &radio{b}, nil
}

func (c *Chain) own(b Block) (*block, error) {
	var inner *block
	switch v := b.(type) {
	case *block:
		inner = v
	case *radio:
		inner = v.block
	default:
		return nil, ErrForeignBlock
	}

	if inner.chain != c {
		return nil, ErrForeignBlock
	}
	if _, ok := c.index[inner.name]; !ok {
		return nil, ErrBlockReleased
	}
	return inner, nil
}

// Connect chains the blocks linearly, every block feeds the next one.
// Either every edge is added or none.
func (c *Chain) Connect(blocks ...Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrGraphStarted
	}
	if len(blocks) < 2 {
		return fmt.Errorf("connecting needs at least two blocks, got %d", len(blocks))
	}

	owned := make([]*block, 0, len(blocks))
	for _, b := range blocks {
		inner, err := c.own(b)
		if err != nil {
			return err
		}
		owned = append(owned, inner)
	}

	edges := make([]Connection, 0, len(owned)-1)
	for i := 0; i < len(owned)-1; i++ {
		from, to := owned[i], owned[i+1]

		switch {
		case !from.kind.HasOutput():
			return NewConnectionError(from.name, to.name, "source block has no output")
		case !to.kind.HasInput():
			return NewConnectionError(from.name, to.name, "target block has no input")
		case c.hasInput(to.name) || containsTarget(edges, to.name):
			return NewConnectionError(from.name, to.name, "target input is already connected")
		}

		edges = append(edges, Connection{From: from.name, To: to.name})
	}

	c.connections = append(c.connections, edges...)
	return nil
}

func (c *Chain) hasInput(name string) bool {
	return containsTarget(c.connections, name)
}

func containsTarget(edges []Connection, name string) bool {
	for _, e := range edges {
		if e.To == name {
			return true
		}
	}
	return false
}

// Release drops the block and every connection touching it. Releasing an unknown
// or already released block does nothing.
func (c *Chain) Release(b Block) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inner, err := c.own(b)
	if err != nil {
		return
	}

	delete(c.index, inner.name)
	for i, v := range c.blocks {
		if v == inner {
			c.blocks = append(c.blocks[:i], c.blocks[i+1:]...)
			break
		}
	}

	kept := c.connections[:0]
	for _, e := range c.connections {
		if e.From != inner.name && e.To != inner.name {
			kept = append(kept, e)
		}
	}
	c.connections = kept

	log.Debug("block released", zap.String("block", inner.name))
}

// Blocks returns the names of the live blocks in construction order
func (c *Chain) Blocks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.blocks))
	for _, b := range c.blocks {
		names = append(names, b.name)
	}
	return names
}

func (c *Chain) Connections() []Connection {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Connection, len(c.connections))
	copy(out, c.connections)
	return out
}

// freeze marks the chain as handed over, it fails for chains without connections
func (c *Chain) freeze() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrGraphStarted
	}
	if len(c.connections) == 0 {
		return ErrEmptyGraph
	}
	c.frozen = true
	return nil
}
