package flowgraph

import "context"

// Graph builds and runs a chain of blocks. Start hands the connected chain to the
// scheduler, Stop and Wait are idempotent and safe without a prior Start.
type Graph interface {
	AddBlock(kind Kind, params Params) (Block, error)
	AddRadio(kind Kind, args string) (Radio, error)
	Connect(blocks ...Block) error
	Release(b Block)

	Start(ctx context.Context) error
	Stop() error
	Wait() error

	// Done is closed once the running graph exited, it never closes before Start
	Done() <-chan struct{}
}
