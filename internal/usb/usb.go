// Package usb drives the Overbridge alternate setting of a supported device
// through libusb (via gousb): configuration 1, interface 1 alt 3 for audio,
// interface 2 alt 2 for MIDI, interface 3 alt 0 claimed but unused.
package usb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"

	"github.com/quimgil/overwitch/internal/device"
	"github.com/quimgil/overwitch/internal/owerr"
)

// Endpoint addresses of the Overbridge alternate setting.
const (
	AudioInEP  = 0x83
	AudioOutEP = 0x03
	MIDIInEP   = 0x81
	MIDIOutEP  = 0x01
)

// reqClearFeature is the standard CLEAR_FEATURE request; wValue 0 selects
// ENDPOINT_HALT.
const reqClearFeature = 0x01

var (
	// ErrTimeout marks a transfer that timed out at the device. Callers
	// treat it as a NAK, not a fault.
	ErrTimeout = errors.New("usb: transfer timed out")

	// ErrGone marks a device that has been unplugged or closed. No
	// further transfers can succeed.
	ErrGone = errors.New("usb: device gone")
)

// interface/alt-setting pairs claimed on attach, in order.
var claims = []struct{ num, alt int }{
	{1, 3}, // audio
	{2, 2}, // MIDI
	{3, 0}, // unknown function, claimed to match the device session
}

// Device is an opened Overbridge device with all four endpoints prepared.
// Transfer methods are safe for concurrent use from different goroutines as
// long as each endpoint has a single caller.
type Device struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	ifaces []*gousb.Interface

	audioIn  *gousb.InEndpoint
	audioOut *gousb.OutEndpoint
	midiIn   *gousb.InEndpoint
	midiOut  *gousb.OutEndpoint

	desc         *device.Descriptor
	bus, address uint8
}

// Info identifies one attached supported device.
type Info struct {
	Bus     uint8
	Address uint8
	VID     uint16
	PID     uint16
	Name    string
}

// List enumerates attached supported devices without opening them.
func List() ([]Info, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var out []Info
	_, err := ctx.OpenDevices(func(d *gousb.DeviceDesc) bool {
		if desc, ok := device.Lookup(uint16(d.Vendor), uint16(d.Product)); ok {
			out = append(out, Info{
				Bus:     uint8(d.Bus),
				Address: uint8(d.Address),
				VID:     uint16(d.Vendor),
				PID:     uint16(d.Product),
				Name:    desc.Name,
			})
		}
		return false
	})
	if err != nil {
		return nil, owerr.Wrap(owerr.LibUSBInitFailed, err)
	}
	return out, nil
}

// Open enumerates the bus, matches a supported device at (bus, address) and
// claims its Overbridge interfaces. On any failure everything opened so far
// is released and a typed error is returned.
func Open(bus, address uint8) (*Device, error) {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(d *gousb.DeviceDesc) bool {
		return device.Supported(uint16(d.Vendor), uint16(d.Product)) &&
			d.Bus == int(bus) && d.Address == int(address)
	})
	if len(devs) > 1 {
		for _, d := range devs[1:] {
			d.Close()
		}
	}
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, owerr.Wrap(owerr.CantOpenDev, err)
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, owerr.New(owerr.CantFindDev)
	}
	return setup(ctx, devs[0])
}

// OpenFileDescriptor wraps an externally-opened usbfs file descriptor, for
// hosts that cannot enumerate the bus themselves.
func OpenFileDescriptor(fd uintptr) (*Device, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithFileDescriptor(fd)
	if err != nil {
		ctx.Close()
		return nil, owerr.Wrap(owerr.LibUSBInitFailed, err)
	}
	return setup(ctx, dev)
}

func setup(ctx *gousb.Context, dev *gousb.Device) (*Device, error) {
	d := &Device{ctx: ctx, dev: dev}

	vid, pid := uint16(dev.Desc.Vendor), uint16(dev.Desc.Product)
	desc, ok := device.Lookup(vid, pid)
	if !ok {
		d.Close()
		return nil, owerr.New(owerr.CantFindDev)
	}
	d.desc = desc
	d.bus = uint8(dev.Desc.Bus)
	d.address = uint8(dev.Desc.Address)

	// The kernel snd-usb-audio driver binds the class-compliant setting;
	// it has to let go before the framed one can be claimed.
	if err := dev.SetAutoDetach(true); err != nil {
		d.Close()
		return nil, owerr.Wrap(owerr.CantOpenDev, err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		d.Close()
		return nil, owerr.Wrap(owerr.CantSetUSBConfig, err)
	}
	d.cfg = cfg

	for _, c := range claims {
		if !hasAltSetting(cfg, c.num, c.alt) {
			d.Close()
			return nil, owerr.New(owerr.CantSetAltSetting)
		}
		intf, err := cfg.Interface(c.num, c.alt)
		if err != nil {
			d.Close()
			return nil, owerr.Wrap(owerr.CantClaimIf, err)
		}
		d.ifaces = append(d.ifaces, intf)
	}

	for _, ep := range []uint16{AudioInEP, AudioOutEP, MIDIInEP, MIDIOutEP} {
		if err := d.clearHalt(ep); err != nil {
			d.Close()
			return nil, owerr.Wrap(owerr.CantClearEP, err)
		}
	}

	audio, midi := d.ifaces[0], d.ifaces[1]
	if d.audioIn, err = audio.InEndpoint(AudioInEP & 0x0f); err == nil {
		if d.audioOut, err = audio.OutEndpoint(AudioOutEP & 0x0f); err == nil {
			if d.midiIn, err = midi.InEndpoint(MIDIInEP & 0x0f); err == nil {
				d.midiOut, err = midi.OutEndpoint(MIDIOutEP & 0x0f)
			}
		}
	}
	if err != nil {
		d.Close()
		return nil, owerr.Wrap(owerr.CantPrepareTransfer, err)
	}

	return d, nil
}

func hasAltSetting(cfg *gousb.Config, num, alt int) bool {
	for _, intf := range cfg.Desc.Interfaces {
		if intf.Number != num {
			continue
		}
		for _, s := range intf.AltSettings {
			if s.Alternate == alt {
				return true
			}
		}
	}
	return false
}

func (d *Device) clearHalt(ep uint16) error {
	rType := uint8(gousb.ControlOut | gousb.ControlStandard | gousb.ControlEndpoint)
	_, err := d.dev.Control(rType, reqClearFeature, 0, ep, nil)
	return err
}

// Descriptor returns the model descriptor resolved at open.
func (d *Device) Descriptor() *device.Descriptor { return d.desc }

// Bus returns the bus number the device is attached to.
func (d *Device) Bus() uint8 { return d.bus }

// Address returns the device address on its bus.
func (d *Device) Address() uint8 { return d.address }

// AudioIn reads one audio transfer from the interrupt IN endpoint.
func (d *Device) AudioIn(ctx context.Context, buf []byte) (int, error) {
	n, err := d.audioIn.ReadContext(ctx, buf)
	return n, mapIOErr(err)
}

// AudioOut writes one audio transfer to the interrupt OUT endpoint.
func (d *Device) AudioOut(ctx context.Context, buf []byte) (int, error) {
	n, err := d.audioOut.WriteContext(ctx, buf)
	return n, mapIOErr(err)
}

// MIDIIn reads one MIDI transfer from the bulk IN endpoint.
func (d *Device) MIDIIn(ctx context.Context, buf []byte) (int, error) {
	n, err := d.midiIn.ReadContext(ctx, buf)
	return n, mapIOErr(err)
}

// MIDIOut writes one MIDI transfer to the bulk OUT endpoint.
func (d *Device) MIDIOut(ctx context.Context, buf []byte) (int, error) {
	n, err := d.midiOut.WriteContext(ctx, buf)
	return n, mapIOErr(err)
}

// Close releases the interfaces, the configuration, the device and the
// libusb context, in that order. In-flight transfers are cancelled.
func (d *Device) Close() error {
	for _, intf := range d.ifaces {
		intf.Close()
	}
	d.ifaces = nil
	var errs []error
	if d.cfg != nil {
		errs = append(errs, d.cfg.Close())
		d.cfg = nil
	}
	if d.dev != nil {
		errs = append(errs, d.dev.Close())
		d.dev = nil
	}
	if d.ctx != nil {
		errs = append(errs, d.ctx.Close())
		d.ctx = nil
	}
	return errors.Join(errs...)
}

func mapIOErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.TransferTimedOut) || errors.Is(err, gousb.ErrorTimeout):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.ErrorNotFound):
		return fmt.Errorf("%w: %v", ErrGone, err)
	default:
		return err
	}
}
