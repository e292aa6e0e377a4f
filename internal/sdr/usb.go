package sdr

import (
	"context"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/usb"
)

// USBEnumerator lists devices by matching the USB bus against the known SDR ids.
// It needs no SoapySDR installation but can not tell apart devices behind other transports.
type USBEnumerator struct {
	scan func() ([]usb.Attached, error)
}

func NewUSBEnumerator() *USBEnumerator {
	return &USBEnumerator{scan: usb.Scan}
}

func (u *USBEnumerator) Enumerate(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attached, err := u.scan()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(attached))
	for _, a := range attached {
		devices = append(devices, Device{
			Driver: a.Driver,
			Label:  a.Name,
		})
	}
	return devices, nil
}
