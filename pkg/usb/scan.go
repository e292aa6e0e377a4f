package usb

import (
	"sort"

	"github.com/google/gousb"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/zap"
)

// Attached is a supported device found on the bus
type Attached struct {
	DeviceTuple
	Bus     int
	Address int
}

// Scan lists the attached supported devices ordered by bus and address.
// No device is opened, only the descriptors are inspected.
func Scan() ([]Attached, error) {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	var found []Attached
	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		tuple, ok := FindSupportedDeviceTuple(desc.Vendor, desc.Product)
		if !ok {
			return false
		}

		log.Debug("found supported device", zap.String("sdr", tuple.Device.String()), zap.Int("bus", desc.Bus), zap.Int("address", desc.Address))
		found = append(found, Attached{DeviceTuple: tuple, Bus: desc.Bus, Address: desc.Address})
		return false
	})

	// The opener never asks for a handle, close whatever came back anyway
	for _, d := range devs {
		d.Close()
	}

	if err != nil {
		log.Error("error while iterating over usb devices", zap.Error(err))
		if len(found) == 0 {
			return nil, err
		}
	}

	SortAttached(found)
	return found, nil
}

func SortAttached(devices []Attached) {
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].Bus != devices[j].Bus {
			return devices[i].Bus < devices[j].Bus
		}
		return devices[i].Address < devices[j].Address
	})
}
