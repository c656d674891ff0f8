package detect

//go:generate mockgen -destination=mock_detect.go -package=detect github.com/sigreer/astrogod/internal/detect DriverResolver,ServerControl

import (
	"context"

	"go.bug.st/serial/enumerator"

	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/knowledge"
	"github.com/sigreer/astrogod/internal/usb"
)

// USBLister enumerates attached USB devices.
type USBLister interface {
	List(ctx context.Context) ([]usb.Device, error)
}

// KnowledgeBase resolves ids and names to equipment descriptors.
type KnowledgeBase interface {
	Lookup(vendorID, productID string) (knowledge.Entry, bool)
	LookupByName(name string) (knowledge.Entry, bool)
}

// DriverResolver classifies and installs drivers.
type DriverResolver interface {
	Status(ctx context.Context, name string) drivers.Status
	Install(ctx context.Context, pkg string) error
}

// ServerControl loads and unloads drivers in the running control server.
type ServerControl interface {
	StartDriver(ctx context.Context, name string) error
	RemoveDriver(ctx context.Context, name string) error
}

// SerialLister enumerates serial ports.
type SerialLister interface {
	ListPorts() ([]*enumerator.PortDetails, error)
}

// NetworkDiscoverer finds network-attached equipment.
type NetworkDiscoverer interface {
	Discover(ctx context.Context) ([]DetectedDevice, error)
}
