package lifecycle

import (
	"bufio"
	"context"
	"io"
)

// Waiter is the single suspension point of a running pipeline. It returns the
// cause that ends the run.
type Waiter func(ctx context.Context) error

// WaitForInterrupt blocks until the run is cancelled
func WaitForInterrupt(ctx context.Context) error {
	<-ctx.Done()
	return context.Cause(ctx)
}

// WaitForEnter additionally ends the run on a newline or end of input. The line
// is read in the background, a blocked read outlives a cancelled wait until the
// reader is closed.
func WaitForEnter(r io.Reader) Waiter {
	return func(ctx context.Context) error {
		line := make(chan struct{}, 1)
		go func() {
			// Both a complete line and EOF end the run
			_, _ = bufio.NewReader(r).ReadString('\n')
			line <- struct{}{}
		}()

		select {
		case <-line:
			return ErrConsoleClosed
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}
