package usb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sigreer/astrogod/internal/system"
)

// Root hubs and other Linux Foundation virtual devices
const linuxFoundationVID = "1d6b"

// Bus 001 Device 004: ID 03c3:294a ZWO ASI294MC Pro
var lsusbLineRe = regexp.MustCompile(`^Bus\s+(\d+)\s+Device\s+(\d+):\s+ID\s+([0-9a-fA-F]{4}):([0-9a-fA-F]{4})\s*(.*)$`)

//   iManufacturer           1 ZWO
var verboseStringRe = regexp.MustCompile(`^\s*(iManufacturer|iProduct|iSerial)\s+\d+\s*(.*)$`)

// ParseLsusb parses plain lsusb output.
func ParseLsusb(output string) []RawDevice {
	var devices []RawDevice
	for _, line := range strings.Split(output, "\n") {
		m := lsusbLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if len(m) < 6 {
			continue
		}
		vid := strings.ToLower(m[3])
		if vid == linuxFoundationVID {
			continue
		}
		devices = append(devices, RawDevice{
			Bus:         m[1],
			Device:      m[2],
			VendorID:    vid,
			ProductID:   strings.ToLower(m[4]),
			Description: strings.TrimSpace(m[5]),
		})
	}
	return devices
}

// ParseVerbose extracts descriptor strings from lsusb -v output.
func ParseVerbose(output string) (manufacturer, product, serial string) {
	for _, line := range strings.Split(output, "\n") {
		m := verboseStringRe.FindStringSubmatch(line)
		if len(m) < 3 {
			continue
		}
		val := strings.TrimSpace(m[2])
		switch m[1] {
		case "iManufacturer":
			if manufacturer == "" {
				manufacturer = val
			}
		case "iProduct":
			if product == "" {
				product = val
			}
		case "iSerial":
			if serial == "" {
				serial = val
			}
		}
	}
	return manufacturer, product, serial
}

// listLsusb runs lsusb, or reads sysfs when lsusb is not installed.
func listLsusb(ctx context.Context, runner system.Runner, sysfsRoot string) ([]RawDevice, error) {
	out, err := runner.Run(ctx, "lsusb")
	if err != nil {
		if errors.Is(err, system.ErrNotInstalled) {
			return CollectSysfs(sysfsRoot)
		}
		return nil, err
	}
	return ParseLsusb(string(out)), nil
}

// CollectSysfs reads USB devices from /sys/bus/usb/devices without spawning
// a process. Interfaces (entries containing ':') are skipped.
func CollectSysfs(root string) ([]RawDevice, error) {
	if root == "" {
		root = "/sys/bus/usb/devices"
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var devices []RawDevice
	for _, entry := range entries {
		name := entry.Name()
		if strings.Contains(name, ":") {
			continue
		}
		dir := filepath.Join(root, name)

		vid := readAttr(dir, "idVendor")
		pid := readAttr(dir, "idProduct")
		if vid == "" || pid == "" || vid == linuxFoundationVID {
			continue
		}

		dev := RawDevice{
			Bus:          pad3(readAttr(dir, "busnum")),
			Device:       pad3(readAttr(dir, "devnum")),
			VendorID:     strings.ToLower(vid),
			ProductID:    strings.ToLower(pid),
			Manufacturer: readAttr(dir, "manufacturer"),
			Product:      readAttr(dir, "product"),
			Serial:       readAttr(dir, "serial"),
		}
		dev.Description = strings.TrimSpace(dev.Manufacturer + " " + dev.Product)
		devices = append(devices, dev)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Location() < devices[j].Location()
	})
	return devices, nil
}

func readAttr(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func pad3(s string) string {
	for len(s) > 0 && len(s) < 3 {
		s = "0" + s
	}
	return s
}
