package detect

import (
	"context"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortEnumerator lists serial ports through the OS.
type PortEnumerator struct{}

func (PortEnumerator) ListPorts() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}

// NoNetwork is the default NetworkDiscoverer; it finds nothing.
type NoNetwork struct{}

func (NoNetwork) Discover(context.Context) ([]DetectedDevice, error) {
	return nil, nil
}

// serialID keys a serial device by its port path.
func serialID(port string) string {
	return "serial:" + strings.TrimPrefix(port, "/dev/")
}
