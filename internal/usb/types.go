package usb

import (
	"fmt"
	"time"
)

// RawDevice is one line of the bus listing, optionally enriched with the
// descriptor strings from a verbose per-device query.
type RawDevice struct {
	Bus          string `json:"bus"`
	Device       string `json:"device"`
	VendorID     string `json:"vendor_id"`
	ProductID    string `json:"product_id"`
	Description  string `json:"description"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`
	Serial       string `json:"serial,omitempty"`
}

// Key is the vendor:product pair used for knowledge base lookups.
func (r RawDevice) Key() string {
	return r.VendorID + ":" + r.ProductID
}

// Location is the bus/device address, unique while the device stays plugged.
func (r RawDevice) Location() string {
	return r.Bus + ":" + r.Device
}

// Device is a USB device as tracked by the scanner.
type Device struct {
	RawDevice
	ID              string   `json:"id"`
	Brand           string   `json:"brand,omitempty"`
	Model           string   `json:"model,omitempty"`
	MatchingDrivers []string `json:"matching_drivers,omitempty"`
}

// HasDrivers reports whether any installed driver may serve the device.
func (d Device) HasDrivers() bool {
	return len(d.MatchingDrivers) > 0
}

// DeviceID builds the tracked identity: usb:<vid>:<pid> for the first device
// of a model, usb:<vid>:<pid>#<n> for further identical devices.
func DeviceID(vendorID, productID string, instance int) string {
	if instance <= 1 {
		return fmt.Sprintf("usb:%s:%s", vendorID, productID)
	}
	return fmt.Sprintf("usb:%s:%s#%d", vendorID, productID, instance)
}

// Stats summarises scanner activity.
type Stats struct {
	Running          bool      `json:"running"`
	DeviceCount      int       `json:"device_count"`
	AstroDeviceCount int       `json:"astro_device_count"`
	ScanCount        int       `json:"scan_count"`
	LastScan         time.Time `json:"last_scan"`
	LastError        string    `json:"last_error,omitempty"`
}
