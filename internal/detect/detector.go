// Package detect turns raw USB, serial and network findings into
// confidence-scored equipment records and drives per-device setup.
package detect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/knowledge"
	"github.com/sigreer/astrogod/internal/logger"
	"github.com/sigreer/astrogod/internal/usb"
)

// Detector combines the sub-scans with the knowledge base and resolver.
type Detector struct {
	usb      USBLister
	kb       KnowledgeBase
	resolver DriverResolver
	server   ServerControl
	serial   SerialLister
	network  NetworkDiscoverer
	log      zerolog.Logger

	mu   sync.RWMutex
	last []DetectedDevice
}

type Option func(*Detector)

// WithSerial overrides the serial port enumerator. nil disables the serial sub-scan.
func WithSerial(s SerialLister) Option {
	return func(d *Detector) { d.serial = s }
}

func WithNetwork(n NetworkDiscoverer) Option {
	return func(d *Detector) { d.network = n }
}

func New(usbLister USBLister, kb KnowledgeBase, resolver DriverResolver, server ServerControl, log zerolog.Logger, opts ...Option) *Detector {
	d := &Detector{
		usb:      usbLister,
		kb:       kb,
		resolver: resolver,
		server:   server,
		serial:   PortEnumerator{},
		network:  NoNetwork{},
		log:      logger.WithComponent(log, "detect"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DetectAll runs every sub-scan and returns the devices sorted by id. A USB
// enumeration failure fails the pass; serial and network failures are logged.
func (d *Detector) DetectAll(ctx context.Context) ([]DetectedDevice, error) {
	raws, err := d.usb.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("usb scan: %w", err)
	}

	var devices []DetectedDevice
	known := make(map[string]bool)
	for _, raw := range raws {
		dev := d.fromUSB(ctx, raw)
		if dev.Confidence == ConfidenceKnown {
			known[raw.Key()] = true
		}
		devices = append(devices, dev)
	}

	devices = append(devices, d.detectSerial(ctx, known)...)

	if d.network != nil {
		found, err := d.network.Discover(ctx)
		if err != nil {
			d.log.Warn().Err(err).Msg("network discovery failed")
		}
		for _, dev := range found {
			dev.Connection = ConnectionNetwork
			dev.DriverStatus = d.driverStatus(ctx, dev.DriverName)
			dev.Confidence = clamp(dev.Confidence)
			devices = append(devices, dev)
		}
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	d.mu.Lock()
	d.last = devices
	d.mu.Unlock()

	d.log.Debug().Int("devices", len(devices)).Msg("detection pass complete")
	return devices, nil
}

// Devices returns the result of the last DetectAll.
func (d *Detector) Devices() []DetectedDevice {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DetectedDevice(nil), d.last...)
}

// Device finds a device from the last pass by id.
func (d *Detector) Device(id string) (DetectedDevice, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, dev := range d.last {
		if dev.ID == id {
			return dev, nil
		}
	}
	return DetectedDevice{}, fmt.Errorf("%s: %w", id, ErrDeviceNotFound)
}

func (d *Detector) fromUSB(ctx context.Context, raw usb.Device) DetectedDevice {
	dev := DetectedDevice{
		ID:         raw.ID,
		Connection: ConnectionUSB,
		VendorID:   raw.VendorID,
		ProductID:  raw.ProductID,
		Serial:     raw.Serial,
	}

	text := strings.TrimSpace(strings.Join([]string{raw.Description, raw.Manufacturer, raw.Product}, " "))

	entry, ok := d.kb.Lookup(raw.VendorID, raw.ProductID)
	if !ok {
		entry, ok = d.kb.LookupByName(text)
	}
	if ok {
		applyEntry(&dev, entry)
	} else {
		dev.Manufacturer = orUnknown(raw.Brand)
		dev.Model = orUnknown(raw.Model)
		dev.Name = orUnknown(raw.Description)
		dev.Type, dev.Confidence = classifyText(text)
		if raw.HasDrivers() {
			dev.DriverName = raw.MatchingDrivers[0]
		}
	}

	dev.DriverStatus = d.driverStatus(ctx, dev.DriverName)
	return dev
}

func (d *Detector) detectSerial(ctx context.Context, knownUSB map[string]bool) []DetectedDevice {
	if d.serial == nil {
		return nil
	}
	ports, err := d.serial.ListPorts()
	if err != nil {
		d.log.Warn().Err(err).Msg("serial port enumeration failed")
		return nil
	}

	var out []DetectedDevice
	for _, p := range ports {
		if p == nil || p.Name == "" {
			continue
		}
		vid, pid := strings.ToLower(p.VID), strings.ToLower(p.PID)
		// Already identified through its USB bridge
		if p.IsUSB && vid != "" && knownUSB[vid+":"+pid] {
			continue
		}

		dev := DetectedDevice{
			ID:           serialID(p.Name),
			Name:         p.Name,
			Manufacturer: Unknown,
			Model:        orUnknown(p.Product),
			Type:         knowledge.TypeUnknown,
			Connection:   ConnectionSerial,
			Confidence:   ConfidenceSerial,
			VendorID:     vid,
			ProductID:    pid,
			Port:         p.Name,
			Serial:       p.SerialNumber,
		}
		if p.IsUSB && vid != "" {
			if entry, ok := d.kb.Lookup(vid, pid); ok {
				applyEntry(&dev, entry)
			}
		}
		dev.DriverStatus = d.driverStatus(ctx, dev.DriverName)
		out = append(out, dev)
	}
	return out
}

func applyEntry(dev *DetectedDevice, e knowledge.Entry) {
	dev.Manufacturer = orUnknown(e.Manufacturer)
	dev.Model = orUnknown(e.Model)
	dev.Name = strings.TrimSpace(e.Manufacturer + " " + e.Model)
	dev.Type = e.Type
	dev.DriverName = e.DriverName
	dev.PackageName = e.Package()
	dev.AutoInstallable = e.AutoInstallable
	dev.Confidence = ConfidenceKnown
}

// classifyText guesses the equipment type from description keywords.
func classifyText(text string) (knowledge.Type, int) {
	lower := strings.ToLower(text)
	rules := []struct {
		t        knowledge.Type
		keywords []string
	}{
		{knowledge.TypeCamera, []string{"camera", "cam"}},
		{knowledge.TypeMount, []string{"mount", "telescope"}},
		{knowledge.TypeFocuser, []string{"focuser", "focus"}},
		{knowledge.TypeFilterWheel, []string{"filter", "wheel"}},
	}
	for _, r := range rules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.t, ConfidenceHeuristic
			}
		}
	}
	return knowledge.TypeUnknown, ConfidenceUnknown
}

func (d *Detector) driverStatus(ctx context.Context, name string) drivers.Status {
	if name == "" || d.resolver == nil {
		return drivers.StatusNotFound
	}
	return d.resolver.Status(ctx, name)
}

// SetupDevice installs the device's driver when needed and allowed, then
// starts it. It reports true only once the driver is running.
func (d *Detector) SetupDevice(ctx context.Context, dev DetectedDevice) (bool, error) {
	log := d.log.With().Str("device", dev.ID).Str("driver", dev.DriverName).Logger()

	if dev.DriverName == "" {
		return false, fmt.Errorf("%s: %w", dev.ID, drivers.ErrDriverNotFound)
	}

	status := d.driverStatus(ctx, dev.DriverName)
	if status == drivers.StatusRunning {
		return true, nil
	}

	if status == drivers.StatusFound {
		if !dev.AutoInstallable {
			return false, fmt.Errorf("%s: %w", dev.ID, ErrNotAutoInstallable)
		}
		pkg := dev.PackageName
		if pkg == "" {
			pkg = dev.DriverName
		}
		log.Info().Str("package", pkg).Msg("installing driver")
		if err := d.resolver.Install(ctx, pkg); err != nil {
			log.Error().Err(err).Msg("driver install failed")
			return false, err
		}
		status = d.driverStatus(ctx, dev.DriverName)
		if !status.AtLeast(drivers.StatusInstalled) {
			log.Error().Str("package", pkg).Msg("package installed but driver executable not found")
			return false, fmt.Errorf("%s after installing %s: %w", dev.DriverName, pkg, drivers.ErrDriverNotFound)
		}
	}

	if status == drivers.StatusInstalled {
		if d.server == nil {
			return false, errors.New("no control server configured")
		}
		log.Info().Msg("starting driver")
		if err := d.server.StartDriver(ctx, dev.DriverName); err != nil {
			log.Error().Err(err).Msg("driver start failed")
			return false, err
		}
		status = d.driverStatus(ctx, dev.DriverName)
	}

	switch status {
	case drivers.StatusRunning:
		log.Info().Msg("device ready")
		return true, nil
	case drivers.StatusNotFound:
		return false, fmt.Errorf("%s: %w", dev.DriverName, drivers.ErrDriverNotFound)
	default:
		return false, fmt.Errorf("driver %s is %s after setup", dev.DriverName, status)
	}
}

// RestartDevice unloads the device's driver from the control server and
// sets the device up again.
func (d *Detector) RestartDevice(ctx context.Context, dev DetectedDevice) (bool, error) {
	if dev.DriverName == "" {
		return false, fmt.Errorf("%s: %w", dev.ID, drivers.ErrDriverNotFound)
	}
	if d.server == nil {
		return false, errors.New("no control server configured")
	}
	if d.driverStatus(ctx, dev.DriverName) == drivers.StatusRunning {
		d.log.Info().Str("device", dev.ID).Str("driver", dev.DriverName).Msg("restarting driver")
		if err := d.server.RemoveDriver(ctx, dev.DriverName); err != nil {
			return false, err
		}
	}
	return d.SetupDevice(ctx, dev)
}

// SetupAllDevices runs SetupDevice over every auto-installable device that
// is not yet running.
func (d *Detector) SetupAllDevices(ctx context.Context) (SetupResult, error) {
	devices, err := d.DetectAll(ctx)
	if err != nil {
		return SetupResult{}, err
	}

	var res SetupResult
	for _, dev := range devices {
		if !dev.AutoInstallable || dev.DriverStatus == drivers.StatusRunning {
			continue
		}
		if ok, err := d.SetupDevice(ctx, dev); ok {
			res.Success = append(res.Success, dev)
		} else {
			res.Failed = append(res.Failed, SetupFailure{Device: dev, Error: errString(err)})
		}
	}
	return res, nil
}

func errString(err error) string {
	if err == nil {
		return "setup did not reach running state"
	}
	return err.Error()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

func clamp(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
