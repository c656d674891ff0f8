package detect

import (
	"errors"

	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/knowledge"
)

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrNotAutoInstallable = errors.New("device driver is not auto-installable")
)

// Connection is how a device is attached.
type Connection string

const (
	ConnectionUSB     Connection = "usb"
	ConnectionSerial  Connection = "serial"
	ConnectionNetwork Connection = "network"
)

// Confidence scores
const (
	ConfidenceKnown     = 95
	ConfidenceHeuristic = 60
	ConfidenceSerial    = 30
	ConfidenceUnknown   = 20
)

// Unknown is shown for unresolved display strings.
const Unknown = "Unknown"

// DetectedDevice is one physically present or inferred piece of hardware.
type DetectedDevice struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Manufacturer    string         `json:"manufacturer"`
	Model           string         `json:"model"`
	Type            knowledge.Type `json:"type"`
	Connection      Connection     `json:"connection"`
	DriverName      string         `json:"driver_name,omitempty"`
	PackageName     string         `json:"package_name,omitempty"`
	DriverStatus    drivers.Status `json:"driver_status"`
	AutoInstallable bool           `json:"auto_installable"`
	Confidence      int            `json:"confidence"`
	VendorID        string         `json:"vendor_id,omitempty"`
	ProductID       string         `json:"product_id,omitempty"`
	Port            string         `json:"port,omitempty"`
	Serial          string         `json:"serial,omitempty"`
}

// SetupFailure pairs a device with the reason setup failed.
type SetupFailure struct {
	Device DetectedDevice `json:"device"`
	Error  string         `json:"error"`
}

// SetupResult partitions a bulk setup run.
type SetupResult struct {
	Success []DetectedDevice `json:"success"`
	Failed  []SetupFailure   `json:"failed"`
}
