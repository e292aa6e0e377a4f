package usb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/DiscoResearchSat/go-udev/netlink"
	"github.com/google/gousb"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/zap"
)

// Event is a bind or unbind of a supported device
type Event struct {
	DeviceTuple
	Added bool
}

type EventHandler func(Event)

// HotplugMonitor forwards udev usb_device binds and unbinds of supported devices
type HotplugMonitor struct {
	sync.Mutex
	sync.WaitGroup

	udev   *netlink.UEventConn
	cancel context.CancelFunc
}

func NewHotplugMonitor() (*HotplugMonitor, error) {
	m := &HotplugMonitor{
		udev: new(netlink.UEventConn),
	}

	if err := m.udev.Connect(netlink.UdevEvent); err != nil {
		log.Error("could not connect to udev, hotplug support not available", zap.Error(err))
		return nil, err
	}

	return m, nil
}

func deviceMatcher() *netlink.RuleDefinitions {
	// BIND OR UNBIND
	matchRule := fmt.Sprintf("%s|%s", netlink.BIND, netlink.UNBIND)
	return &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{
				// Only match usb_device binds and unbinds
				Action: &matchRule,
				Env: map[string]string{
					"DEVTYPE": "usb_device",
				},
			},
		},
	}
}

// Start observes udev in the background until ctx is done or Shutdown is called
func (m *HotplugMonitor) Start(ctx context.Context, handler EventHandler) {
	m.Lock()
	defer m.Unlock()

	ctx, m.cancel = context.WithCancel(ctx)

	errs := make(chan error, 1)
	queue := m.udev.Monitor(ctx, errs, deviceMatcher())

	m.Add(1)
	go m.observe(ctx, queue, errs, handler)
}

func (m *HotplugMonitor) observe(ctx context.Context, queue chan netlink.UEvent, errs chan error, handler EventHandler) {
	defer func() {
		m.Lock()
		m.udev.Close()
		m.Unlock()
		m.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			drain(queue, errs)
			log.Info("stopped observing udev events")
			return

		case uevent, ok := <-queue:
			if !ok {
				queue = nil
				continue
			}

			ev, ok := EventFromUEvent(uevent)
			if !ok {
				continue
			}

			if ev.Added {
				log.Info("hotplug device added", zap.String("device", ev.Device.String()))
			} else {
				log.Info("hotplug device removed", zap.String("device", ev.Device.String()))
			}
			handler(ev)

		case err := <-errs:
			if ctx.Err() == nil && err != nil {
				log.Error("udev monitor encountered an error", zap.Error(err))
			}
		}
	}
}

// Wait until the reader terminates, it reports the cancelled peek before closing the queue
func drain(queue chan netlink.UEvent, errs chan error) {
	for queue != nil {
		select {
		case _, ok := <-queue:
			if !ok {
				queue = nil
			}
		case <-errs:
		}
	}
}

// Shutdown stops the monitor and waits for the observer to exit
func (m *HotplugMonitor) Shutdown() {
	m.Lock()
	cancel := m.cancel
	m.Unlock()

	if cancel != nil {
		cancel()
	}
	m.Wait()
}

// EventFromUEvent maps a udev event to a supported device, unsupported devices are ignored
func EventFromUEvent(uevent netlink.UEvent) (Event, bool) {
	pstr, pok := uevent.Env["PRODUCT"]
	if !pok {
		log.Debug("device did not contain product indicator", zap.String("event", uevent.String()))
		return Event{}, false
	}

	vid, pid, err := ParseProduct(pstr)
	if err != nil {
		log.Error("malformed product string", zap.String("product", pstr), zap.Error(err))
		return Event{}, false
	}

	tuple, found := FindSupportedDeviceTuple(gousb.ID(vid), gousb.ID(pid))
	if !found {
		log.Debug("no matching device found", zap.String("vid", gousb.ID(vid).String()), zap.String("pid", gousb.ID(pid).String()))
		return Event{}, false
	}

	return Event{DeviceTuple: tuple, Added: uevent.Action == netlink.BIND}, true
}

// ParseProduct splits the udev PRODUCT value, e.g "1d50/6089/104" is VID/PID/REVISION
func ParseProduct(product string) (vid uint16, pid uint16, err error) {
	s := strings.Split(product, "/")
	if len(s) < 2 {
		return 0, 0, fmt.Errorf("expected vid/pid[/rev], got %q", product)
	}

	if vid, err = ParseHexUINT16(s[0]); err != nil {
		return 0, 0, fmt.Errorf("could not parse hex vid %q: %w", s[0], err)
	}
	if pid, err = ParseHexUINT16(s[1]); err != nil {
		return 0, 0, fmt.Errorf("could not parse hex pid %q: %w", s[1], err)
	}

	return vid, pid, nil
}
