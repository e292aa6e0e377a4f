package usb

import (
	"fmt"
	"strconv"

	"github.com/google/gousb"
)

type DeviceType int

const (
	Unknown DeviceType = iota
	SDRHackRFOne
	SDRHackRFJawbreaker
	SDRRTL2838
	SDRRTL2832
	SDRLimeUSB
	SDRLimeMini
	SDRPluto
	SDRUSRPB200
	SDRBladeRF1
	SDRBladeRF2
)

// Driver identifiers as reported by the SoapySDR modules
const (
	DriverHackRF  = "hackrf"
	DriverRTL     = "rtlsdr"
	DriverLime    = "lime"
	DriverPluto   = "plutosdr"
	DriverUHD     = "uhd"
	DriverBladeRF = "bladerf"
)

var (
	SupportedDevices = DeviceMap{
		SDRHackRFOne: {
			VendorID:  0x1d50,
			ProductID: 0x6089,
			Name:      "HackRF One",
			Driver:    DriverHackRF,
		},
		SDRHackRFJawbreaker: {
			VendorID:  0x1d50,
			ProductID: 0x604b,
			Name:      "HackRF Jawbreaker",
			Driver:    DriverHackRF,
		},
		SDRRTL2838: {
			VendorID:  0x0bda,
			ProductID: 0x2838,
			Name:      "RTL2838 DVB-T",
			Driver:    DriverRTL,
		},
		SDRRTL2832: {
			VendorID:  0x0bda,
			ProductID: 0x2832,
			Name:      "RTL2832U DVB-T",
			Driver:    DriverRTL,
		},
		SDRLimeUSB: {
			VendorID:  0x1d50,
			ProductID: 0x6108,
			Name:      "LimeSDR-USB",
			Driver:    DriverLime,
		},
		SDRLimeMini: {
			VendorID:  0x0403,
			ProductID: 0x601f,
			Name:      "LimeSDR Mini",
			Driver:    DriverLime,
		},
		SDRPluto: {
			VendorID:  0x0456,
			ProductID: 0xb673,
			Name:      "ADALM-PLUTO",
			Driver:    DriverPluto,
		},
		SDRUSRPB200: {
			VendorID:  0x2500,
			ProductID: 0x0020,
			Name:      "USRP B200/B210",
			Driver:    DriverUHD,
		},
		SDRBladeRF1: {
			VendorID:  0x2cf0,
			ProductID: 0x5246,
			Name:      "bladeRF",
			Driver:    DriverBladeRF,
		},
		SDRBladeRF2: {
			VendorID:  0x2cf0,
			ProductID: 0x5250,
			Name:      "bladeRF 2.0 micro",
			Driver:    DriverBladeRF,
		},
	}
)

type Device struct {
	Name      string
	Driver    string
	VendorID  gousb.ID
	ProductID gousb.ID
}

func (d *Device) String() string {
	return fmt.Sprintf("%s pid: %s vid: %s", d.Name, d.ProductID.String(), d.VendorID.String())
}

type DeviceMap map[DeviceType]*Device

type DeviceTuple struct {
	*Device
	DeviceType
}

func FindSupportedDeviceTuple(vendorID gousb.ID, productID gousb.ID) (DeviceTuple, bool) {
	for k, device := range SupportedDevices {
		if device.VendorID == vendorID && device.ProductID == productID {
			return DeviceTuple{DeviceType: k, Device: device}, true
		}
	}
	return DeviceTuple{}, false
}

func ParseHexUINT16(str string) (uint16, error) {
	val, err := strconv.ParseUint(str, 16, 16)
	if err != nil {
		return 0, err
	}

	return uint16(val), nil
}
