package sdr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/usb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func fixed(devices ...Device) Enumerator {
	return EnumeratorFunc(func(ctx context.Context) ([]Device, error) {
		return devices, nil
	})
}

func TestConnectionArgs(t *testing.T) {
	tests := []struct {
		family Family
		want   string
	}{
		{FamilyLime, "driver=lime,soapy=0"},
		{FamilyPluto, "driver=plutosdr,soapy=0"},
		{FamilyHackRF, "driver=hackrf,soapy=0"},
		{FamilyRTL, "driver=rtl,soapy=0"},
		{FamilyUHD, "driver=uhd,soapy=0"},
		{FamilyBladeRF, "driver=bladerf,soapy=0"},
	}

	for _, tt := range tests {
		t.Run(tt.family.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ConnectionArgs(tt.family, tt.family.String()))
			assert.Equal(t, tt.family, ParseFamily(tt.family.String()))
		})
	}

	assert.Equal(t, "driver=airspy,soapy=0", ConnectionArgs(FamilyUnknown, "airspy"))
}

func TestParseFamily(t *testing.T) {
	assert.Equal(t, FamilyHackRF, ParseFamily("HackRF"))
	assert.Equal(t, FamilyPluto, ParseFamily("plutosdr"))
	assert.Equal(t, FamilyRTL, ParseFamily(" rtl "))
	assert.Equal(t, FamilyUnknown, ParseFamily("airspy"))
	assert.Equal(t, FamilyUnknown, ParseFamily("unknown"))
	assert.Equal(t, "unknown", Family(42).String())
}

func TestSelectHackRF(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer log.Replace(zap.New(core))()

	ep, err := Select(context.Background(), fixed(Device{Driver: "hackrf", Label: "HackRF One"}))
	require.NoError(t, err)

	assert.Equal(t, Endpoint{Family: FamilyHackRF, Driver: "hackrf", Label: "HackRF One", Args: "driver=hackrf,soapy=0"}, ep)
	assert.Equal(t, 1, logs.FilterMessage("Detected SDR: HackRF One (Driver: hackrf)").Len())
}

func TestSelectUnknownFallsBack(t *testing.T) {
	ep, err := Select(context.Background(), fixed(Device{Driver: "AirSpy"}))
	require.NoError(t, err)

	assert.Equal(t, FamilyUnknown, ep.Family)
	assert.Equal(t, "airspy", ep.Label)
	assert.Equal(t, "driver=airspy,soapy=0", ep.Args)
}

func TestSelectConnectionArgs(t *testing.T) {
	tests := []struct {
		driver string
		family Family
		args   string
	}{
		{"lime", FamilyLime, "driver=lime,soapy=0"},
		{"unknownvendor", FamilyUnknown, "driver=unknownvendor,soapy=0"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			ep, err := Select(context.Background(), fixed(Device{Driver: tt.driver}))
			require.NoError(t, err)

			assert.Equal(t, tt.family, ep.Family)
			assert.Equal(t, tt.driver, ep.Label)
			assert.Equal(t, tt.args, ep.Args)
		})
	}
}

func TestSelectFirstWins(t *testing.T) {
	ep, err := Select(context.Background(), fixed(
		Device{Driver: "lime", Label: "LimeSDR Mini"},
		Device{Driver: "hackrf", Label: "HackRF One"},
	))
	require.NoError(t, err)
	assert.Equal(t, FamilyLime, ep.Family)
}

func TestSelectNoDevice(t *testing.T) {
	_, err := Select(context.Background(), fixed())
	assert.ErrorIs(t, err, &NoDeviceFoundError{})

	boom := errors.New("boom")
	_, err = Select(context.Background(), EnumeratorFunc(func(ctx context.Context) ([]Device, error) {
		return nil, boom
	}))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, &NoDeviceFoundError{})
}

const soapyOutput = `######################################################
##     Soapy SDR -- the SDR abstraction library     ##
######################################################

Found device 0
  default_input = Built-in Microphone
  driver = audio
  label = Built-in Microphone

Found device 1
  device = HackRF One
  driver = hackrf
  label = HackRF One #0 0000000000000000a06063c8234e925f
  part_id = a000cb3c00584f4e
  serial = 0000000000000000a06063c8234e925f
  version = 2018.01.1

`

func TestParseSoapyFind(t *testing.T) {
	devices, err := ParseSoapyFind(strings.NewReader(soapyOutput))
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "audio", devices[0].Driver)
	assert.Equal(t, Device{
		Driver: "hackrf",
		Label:  "HackRF One #0 0000000000000000a06063c8234e925f",
		Serial: "0000000000000000a06063c8234e925f",
	}, devices[1])

	devices, err = ParseSoapyFind(strings.NewReader("######\nNo devices found!\n"))
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestSoapyEnumeratorCommandFailure(t *testing.T) {
	e := NewSoapyEnumerator("/nonexistent/SoapySDRUtil")
	_, err := e.Enumerate(context.Background())
	assert.Error(t, err)

	assert.Equal(t, DefaultSoapyUtil, NewSoapyEnumerator("").Command)
}

func TestUSBEnumerator(t *testing.T) {
	pluto, _ := usb.FindSupportedDeviceTuple(0x0456, 0xb673)
	e := &USBEnumerator{scan: func() ([]usb.Attached, error) {
		return []usb.Attached{{DeviceTuple: pluto, Bus: 1, Address: 4}}, nil
	}}

	ep, err := Select(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, FamilyPluto, ep.Family)
	assert.Equal(t, "ADALM-PLUTO", ep.Label)
	assert.Equal(t, "driver=plutosdr,soapy=0", ep.Args)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Enumerate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
