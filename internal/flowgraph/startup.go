package flowgraph

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/misc"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/process"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/usb"
	"go.uber.org/zap"
)

// StartupResult maps a lower-case output fragment to the startup outcome, a nil Error means ready
type StartupResult struct {
	String string
	Error  error
}

func startupChecks(readyMarker string) []StartupResult {
	return []StartupResult{
		{strings.ToLower(readyMarker), nil},
		// Indicates the usb is busy and the sdr stuck
		{"resource busy", usb.NewStuckError("sdr is busy, another process holds the device")},
		// No SDR attached
		{"no supported devices found", usb.NewNotFoundError("the runner found no supported sdr")},
	}
}

// monitorStartup blocks until the scanned output matches a check, the stream ends,
// the timeout passes or ctx is cancelled
func monitorStartup(ctx context.Context, scanner *bufio.Scanner, checks []StartupResult, timeout time.Duration) error {
	result := make(chan error, 1)
	go func() {
		for scanner.Scan() {
			line := strings.ToLower(scanner.Text())
			log.Debug("got output from startup check", zap.String("line", line))
			for _, check := range checks {
				if !strings.Contains(line, check.String) {
					continue
				}

				// The string was found, lets do what we need to do
				result <- check.Error
				return
			}
		}

		// The stream ended before any check matched, the caller fills in the exit error
		result <- process.NewTerminatedEarlyError(scanner.Err())
	}()

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case err := <-result:
		return err
	case <-timeoutC:
		return misc.NewTimedOutError("flowgraph startup check timed out", timeout)
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
