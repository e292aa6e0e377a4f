// Package sdr enumerates attached SDR peripherals and turns the chosen one into
// the endpoint descriptor consumed by the osmosdr source and sink blocks.
package sdr

import (
	"context"
	"fmt"
	"strings"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/zap"
)

// Device is one enumeration record
type Device struct {
	Driver string
	Label  string
	Serial string
}

type Enumerator interface {
	Enumerate(ctx context.Context) ([]Device, error)
}

// EnumeratorFunc adapts a plain function to the Enumerator interface
type EnumeratorFunc func(ctx context.Context) ([]Device, error)

func (f EnumeratorFunc) Enumerate(ctx context.Context) ([]Device, error) {
	return f(ctx)
}

// Endpoint describes the selected SDR, it is built once per run
type Endpoint struct {
	Family Family
	Driver string
	Label  string
	Args   string
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s (Driver: %s)", e.Label, e.Driver)
}

// Select picks the first enumerated device. Enumeration order decides when several
// devices are attached.
func Select(ctx context.Context, enumerator Enumerator) (Endpoint, error) {
	devices, err := enumerator.Enumerate(ctx)
	if err != nil {
		return Endpoint{}, fmt.Errorf("enumerating sdr devices: %w", err)
	}

	if len(devices) == 0 {
		return Endpoint{}, NewNoDeviceFoundError("no SDR devices found")
	}

	if len(devices) > 1 {
		log.Warn("multiple SDR devices attached, using the first one", zap.Int("count", len(devices)))
	}

	dev := devices[0]
	driver := strings.ToLower(strings.TrimSpace(dev.Driver))
	label := dev.Label
	if label == "" {
		label = driver
	}

	family := ParseFamily(driver)
	endpoint := Endpoint{
		Family: family,
		Driver: driver,
		Label:  label,
		Args:   ConnectionArgs(family, driver),
	}

	log.Info(fmt.Sprintf("Detected SDR: %s", endpoint), zap.String("args", endpoint.Args), zap.Stringer("family", family))

	return endpoint, nil
}
