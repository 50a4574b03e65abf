package engine

import (
	"fmt"

	"github.com/quimgil/overwitch/internal/usb"
)

// Open enumerates the bus and builds an engine around the supported device
// at (bus, address).
func Open(bus, address uint8, blocksPerTransfer int) (*Engine, error) {
	dev, err := usb.Open(bus, address)
	if err != nil {
		return nil, err
	}
	return fromDevice(dev, blocksPerTransfer), nil
}

// OpenFileDescriptor builds an engine around an externally-opened usbfs
// file descriptor, for hosts that cannot enumerate the bus themselves.
func OpenFileDescriptor(fd uintptr, blocksPerTransfer int) (*Engine, error) {
	dev, err := usb.OpenFileDescriptor(fd)
	if err != nil {
		return nil, err
	}
	return fromDevice(dev, blocksPerTransfer), nil
}

func fromDevice(dev *usb.Device, blocksPerTransfer int) *Engine {
	desc := dev.Descriptor()
	name := fmt.Sprintf("%s@%03d,%03d", desc.Name, dev.Bus(), dev.Address())
	return New(dev, desc, name, blocksPerTransfer)
}
