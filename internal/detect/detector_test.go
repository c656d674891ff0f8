package detect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/mock/gomock"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/knowledge"
	"github.com/sigreer/astrogod/internal/system"
	"github.com/sigreer/astrogod/internal/usb"
)

type fakeUSB struct {
	devices []usb.Device
	err     error
}

func (f *fakeUSB) List(context.Context) ([]usb.Device, error) { return f.devices, f.err }

type fakeSerial struct {
	ports []*enumerator.PortDetails
	err   error
}

func (f *fakeSerial) ListPorts() ([]*enumerator.PortDetails, error) { return f.ports, f.err }

type fakeNetwork struct{ devices []DetectedDevice }

func (f fakeNetwork) Discover(context.Context) ([]DetectedDevice, error) { return f.devices, nil }

func usbDevice(vid, pid, desc string, drivers ...string) usb.Device {
	raw := usb.RawDevice{Bus: "001", Device: "002", VendorID: vid, ProductID: pid, Description: desc}
	return usb.Device{RawDevice: raw, ID: usb.DeviceID(vid, pid, 1), MatchingDrivers: drivers}
}

func staticKB() *knowledge.Base {
	return knowledge.New(knowledge.Options{}, nil, clocktesting.NewFakePassiveClock(time.Now()), zerolog.Nop())
}

func newDetector(lister USBLister, resolver DriverResolver, server ServerControl, opts ...Option) *Detector {
	opts = append([]Option{WithSerial(&fakeSerial{})}, opts...)
	return New(lister, staticKB(), resolver, server, zerolog.Nop(), opts...)
}

func TestDetectKnownCamera(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusInstalled)

	d := newDetector(&fakeUSB{devices: []usb.Device{usbDevice("03c3", "294a", "ZWO ASI294MC Pro")}}, resolver, nil)

	devs, err := d.DetectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 1)

	dev := devs[0]
	assert.Equal(t, "usb:03c3:294a", dev.ID)
	assert.Equal(t, "ZWO", dev.Manufacturer)
	assert.Equal(t, "ASI294MC Pro", dev.Model)
	assert.Equal(t, knowledge.TypeCamera, dev.Type)
	assert.Equal(t, "indi-asi", dev.DriverName)
	assert.Equal(t, 95, dev.Confidence)
	assert.Equal(t, ConnectionUSB, dev.Connection)
	assert.Equal(t, drivers.StatusInstalled, dev.DriverStatus)
	assert.True(t, dev.AutoInstallable)
}

func TestZWODevicesResolveOwnExecutables(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"indi_asi_ccd", "indi_asi_focuser", "indi_asi_wheel"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("#!/bin/sh\n"), 0755))
	}
	resolver := drivers.New(drivers.Options{SearchPaths: []string{dir}}, system.NewFakeRunner(), nil, nil, zerolog.Nop())
	lister := &fakeUSB{devices: []usb.Device{
		usbDevice("03c3", "294a", "ZWO ASI294MC Pro"),
		usbDevice("03c3", "1f01", "ZWO EFW"),
		usbDevice("03c3", "1f10", "ZWO EAF"),
	}}
	d := newDetector(lister, resolver, nil)
	ctx := context.Background()

	want := map[string]string{
		"usb:03c3:294a": "indi_asi_ccd",
		"usb:03c3:1f01": "indi_asi_wheel",
		"usb:03c3:1f10": "indi_asi_focuser",
	}
	devs, err := d.DetectAll(ctx)
	require.NoError(t, err)
	require.Len(t, devs, 3)
	for _, dev := range devs {
		path, err := resolver.Resolve(dev.DriverName)
		require.NoError(t, err, dev.ID)
		assert.Equal(t, want[dev.ID], filepath.Base(path), dev.ID)
		assert.Equal(t, "indi-asi", dev.PackageName, dev.ID)
		assert.Equal(t, drivers.StatusInstalled, dev.DriverStatus, dev.ID)
	}

	resolver.SetRunning([]string{filepath.Join(dir, "indi_asi_wheel")})
	devs, err = d.DetectAll(ctx)
	require.NoError(t, err)
	for _, dev := range devs {
		if dev.ID == "usb:03c3:1f01" {
			assert.Equal(t, drivers.StatusRunning, dev.DriverStatus)
		} else {
			assert.Equal(t, drivers.StatusInstalled, dev.DriverStatus, dev.ID)
		}
	}
}

func TestDetectHeuristics(t *testing.T) {
	tests := []struct {
		desc       string
		wantType   knowledge.Type
		confidence int
	}{
		{"USB2.0 Webcam", knowledge.TypeCamera, 60},
		{"Generic Telescope Controller", knowledge.TypeMount, 60},
		{"DIY Focus Motor", knowledge.TypeFocuser, 60},
		{"Five Slot Wheel", knowledge.TypeFilterWheel, 60},
		{"Generic Keyboard", knowledge.TypeUnknown, 20},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			d := newDetector(&fakeUSB{devices: []usb.Device{usbDevice("f00d", "0001", tt.desc)}}, nil, nil)

			devs, err := d.DetectAll(context.Background())
			require.NoError(t, err)
			require.Len(t, devs, 1)
			assert.Equal(t, tt.wantType, devs[0].Type)
			assert.Equal(t, tt.confidence, devs[0].Confidence)
			assert.Equal(t, drivers.StatusNotFound, devs[0].DriverStatus)
			assert.False(t, devs[0].AutoInstallable)
			assert.Equal(t, Unknown, devs[0].Manufacturer)
		})
	}
}

func TestDetectHeuristicUsesMatchingDriver(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	resolver.EXPECT().Status(gomock.Any(), "indi_gizmo_ccd").Return(drivers.StatusInstalled)

	d := newDetector(&fakeUSB{devices: []usb.Device{usbDevice("f00d", "0002", "Gizmo camera", "indi_gizmo_ccd")}}, resolver, nil)

	devs, err := d.DetectAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "indi_gizmo_ccd", devs[0].DriverName)
	assert.Equal(t, drivers.StatusInstalled, devs[0].DriverStatus)
}

func TestDetectSerial(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	resolver.EXPECT().Status(gomock.Any(), "indi_eqmod_telescope").Return(drivers.StatusFound)

	serial := &fakeSerial{ports: []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "067B", PID: "2303"},
	}}
	d := New(&fakeUSB{}, staticKB(), resolver, nil, zerolog.Nop(), WithSerial(serial))

	devs, err := d.DetectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 2)

	assert.Equal(t, "serial:ttyS0", devs[0].ID)
	assert.Equal(t, knowledge.TypeUnknown, devs[0].Type)
	assert.Equal(t, 30, devs[0].Confidence)
	assert.Equal(t, ConnectionSerial, devs[0].Connection)

	assert.Equal(t, "serial:ttyUSB0", devs[1].ID)
	assert.Equal(t, knowledge.TypeMount, devs[1].Type)
	assert.Equal(t, 95, devs[1].Confidence)
	assert.Equal(t, "/dev/ttyUSB0", devs[1].Port)
	assert.Equal(t, drivers.StatusFound, devs[1].DriverStatus)
}

func TestDetectSerialSkipsKnownUSBBridge(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	resolver.EXPECT().Status(gomock.Any(), gomock.Any()).Return(drivers.StatusNotFound).AnyTimes()

	serial := &fakeSerial{ports: []*enumerator.PortDetails{{Name: "/dev/ttyUSB0", IsUSB: true, VID: "067b", PID: "2303"}}}
	d := New(&fakeUSB{devices: []usb.Device{usbDevice("067b", "2303", "Prolific PL2303")}}, staticKB(), resolver, nil, zerolog.Nop(), WithSerial(serial))

	devs, err := d.DetectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, "usb:067b:2303", devs[0].ID)
}

func TestDetectSerialFailureIsLocal(t *testing.T) {
	d := New(&fakeUSB{devices: []usb.Device{usbDevice("f00d", "0001", "thing")}}, staticKB(), nil, nil, zerolog.Nop(),
		WithSerial(&fakeSerial{err: errors.New("permission denied")}))

	devs, err := d.DetectAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, devs, 1)
}

func TestDetectUSBFailure(t *testing.T) {
	d := newDetector(&fakeUSB{err: errors.New("lsusb exploded")}, nil, nil)
	_, err := d.DetectAll(context.Background())
	assert.Error(t, err)
}

func TestDetectSortedAndBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	resolver.EXPECT().Status(gomock.Any(), gomock.Any()).Return(drivers.StatusNotFound).AnyTimes()

	lister := &fakeUSB{devices: []usb.Device{
		usbDevice("1618", "c294", "QHYCCD QHY294"),
		usbDevice("03c3", "294a", "ZWO ASI294MC Pro"),
		usbDevice("f00d", "0001", "mystery"),
	}}
	net := fakeNetwork{devices: []DetectedDevice{{ID: "net:alpaca-1", Name: "Alpaca Dome", Type: knowledge.TypeDome, Confidence: 250}}}
	d := newDetector(lister, resolver, nil, WithNetwork(net))

	devs, err := d.DetectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 4)

	for i, dev := range devs {
		assert.GreaterOrEqual(t, dev.Confidence, 0)
		assert.LessOrEqual(t, dev.Confidence, 100)
		if i > 0 {
			assert.Less(t, devs[i-1].ID, dev.ID)
		}
	}
	assert.Equal(t, ConnectionNetwork, devs[0].Connection)
	assert.Equal(t, devs, d.Devices())
}

func TestDeviceLookup(t *testing.T) {
	d := newDetector(&fakeUSB{devices: []usb.Device{usbDevice("f00d", "0001", "thing")}}, nil, nil)
	_, err := d.DetectAll(context.Background())
	require.NoError(t, err)

	dev, err := d.Device("usb:f00d:0001")
	require.NoError(t, err)
	assert.Equal(t, "thing", dev.Name)

	_, err = d.Device("usb:0000:0000")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func asiDevice() DetectedDevice {
	return DetectedDevice{
		ID: "usb:03c3:294a", DriverName: "indi-asi", PackageName: "indi-asi",
		DriverStatus: drivers.StatusFound, AutoInstallable: true,
	}
}

func TestSetupDeviceInstallsAndStarts(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	server := NewMockServerControl(ctrl)

	gomock.InOrder(
		resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusFound),
		resolver.EXPECT().Install(gomock.Any(), "indi-asi").Return(nil),
		resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusInstalled),
		server.EXPECT().StartDriver(gomock.Any(), "indi-asi").Return(nil),
		resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusRunning),
	)

	d := newDetector(&fakeUSB{}, resolver, server)
	ok, err := d.SetupDevice(context.Background(), asiDevice())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetupDeviceInstallFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	server := NewMockServerControl(ctrl)

	resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusFound)
	resolver.EXPECT().Install(gomock.Any(), "indi-asi").
		Return(fmt.Errorf("%w: indi-asi: exit status 100", drivers.ErrInstallFailed))

	d := newDetector(&fakeUSB{}, resolver, server)
	ok, err := d.SetupDevice(context.Background(), asiDevice())
	assert.False(t, ok)
	assert.ErrorIs(t, err, drivers.ErrInstallFailed)
}

func TestSetupDeviceInstallLeavesNoExecutable(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	server := NewMockServerControl(ctrl)

	gomock.InOrder(
		resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusFound),
		resolver.EXPECT().Install(gomock.Any(), "indi-asi").Return(nil),
		resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusFound),
	)

	d := newDetector(&fakeUSB{}, resolver, server)
	ok, err := d.SetupDevice(context.Background(), asiDevice())
	assert.False(t, ok)
	assert.ErrorIs(t, err, drivers.ErrDriverNotFound)
}

func TestSetupDeviceStartFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	server := NewMockServerControl(ctrl)

	resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusInstalled)
	server.EXPECT().StartDriver(gomock.Any(), "indi-asi").Return(errors.New("not listening"))

	d := newDetector(&fakeUSB{}, resolver, server)
	ok, err := d.SetupDevice(context.Background(), asiDevice())
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestSetupDeviceNotAutoInstallable(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	resolver.EXPECT().Status(gomock.Any(), "indi-sbig").Return(drivers.StatusFound)

	dev := DetectedDevice{ID: "usb:0d97:0001", DriverName: "indi-sbig", DriverStatus: drivers.StatusFound}
	d := newDetector(&fakeUSB{}, resolver, NewMockServerControl(ctrl))

	ok, err := d.SetupDevice(context.Background(), dev)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotAutoInstallable)
}

func TestSetupDeviceAlreadyRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusRunning)

	d := newDetector(&fakeUSB{}, resolver, NewMockServerControl(ctrl))
	ok, err := d.SetupDevice(context.Background(), asiDevice())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetupDeviceUnknownDriver(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	resolver.EXPECT().Status(gomock.Any(), "indi-nope").Return(drivers.StatusNotFound)

	d := newDetector(&fakeUSB{}, resolver, nil)
	ok, err := d.SetupDevice(context.Background(), DetectedDevice{ID: "x", DriverName: "indi-nope", AutoInstallable: true})
	assert.False(t, ok)
	assert.ErrorIs(t, err, drivers.ErrDriverNotFound)
}

func TestSetupAllDevices(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	server := NewMockServerControl(ctrl)

	// ZWO installs and starts, QHY fails to install, SBIG is not auto-installable
	resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusInstalled).Times(2)
	server.EXPECT().StartDriver(gomock.Any(), "indi-asi").Return(nil)
	resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusRunning)

	resolver.EXPECT().Status(gomock.Any(), "indi-qhy").Return(drivers.StatusFound).Times(2)
	resolver.EXPECT().Install(gomock.Any(), "indi-qhy").Return(drivers.ErrInstallFailed)

	resolver.EXPECT().Status(gomock.Any(), "indi-sbig").Return(drivers.StatusFound)

	lister := &fakeUSB{devices: []usb.Device{
		usbDevice("03c3", "294a", "ZWO ASI294MC Pro"),
		usbDevice("1618", "c294", "QHY294"),
		usbDevice("0d97", "0101", "SBIG STF"),
	}}
	d := newDetector(lister, resolver, server)

	res, err := d.SetupAllDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Success, 1)
	assert.Equal(t, "usb:03c3:294a", res.Success[0].ID)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "usb:1618:c294", res.Failed[0].Device.ID)
	assert.Contains(t, res.Failed[0].Error, "install failed")
}

func TestRestartDevice(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockDriverResolver(ctrl)
	server := NewMockServerControl(ctrl)

	gomock.InOrder(
		resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusRunning),
		server.EXPECT().RemoveDriver(gomock.Any(), "indi-asi").Return(nil),
		resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusInstalled),
		server.EXPECT().StartDriver(gomock.Any(), "indi-asi").Return(nil),
		resolver.EXPECT().Status(gomock.Any(), "indi-asi").Return(drivers.StatusRunning),
	)

	d := newDetector(&fakeUSB{}, resolver, server)
	ok, err := d.RestartDevice(context.Background(), asiDevice())
	require.NoError(t, err)
	assert.True(t, ok)
}
