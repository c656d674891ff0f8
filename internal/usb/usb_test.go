package usb

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/system"
)

const baseListing = `Bus 001 Device 001: ID 1d6b:0002 Linux Foundation 2.0 root hub
Bus 001 Device 004: ID 03c3:294a ZWO ASI294MC Pro
Bus 002 Device 003: ID 046d:0825 Logitech, Inc. Webcam C270
`

type staticInstalled []string

func (s staticInstalled) ListInstalled() []string { return s }

func TestParseLsusb(t *testing.T) {
	devs := ParseLsusb(baseListing)
	require.Len(t, devs, 2)

	assert.Equal(t, RawDevice{
		Bus: "001", Device: "004", VendorID: "03c3", ProductID: "294a",
		Description: "ZWO ASI294MC Pro",
	}, devs[0])
	assert.Equal(t, "046d:0825", devs[1].Key())
	assert.Equal(t, "002:003", devs[1].Location())
}

func TestParseLsusbIgnoresGarbage(t *testing.T) {
	assert.Empty(t, ParseLsusb("no devices\n\n"))
}

func TestParseVerbose(t *testing.T) {
	out := `Device Descriptor:
  bLength                18
  idVendor           0x03c3
  iManufacturer           1 ZWO
  iProduct                2 ASI294MC Pro
  iSerial                 3 0123456789
Configuration Descriptor:
  iConfiguration          0
`
	m, p, s := ParseVerbose(out)
	assert.Equal(t, "ZWO", m)
	assert.Equal(t, "ASI294MC Pro", p)
	assert.Equal(t, "0123456789", s)
}

func TestIdentifyByVendor(t *testing.T) {
	raw := RawDevice{VendorID: "03c3", ProductID: "294a", Description: "ZWO ASI294MC Pro"}
	dev := Identify(raw, []string{"indi_asi_ccd", "indi_asi_wheel", "indi_qhy_ccd"})

	assert.Equal(t, "ZWO", dev.Brand)
	assert.Equal(t, "ASI294MC Pro", dev.Model)
	assert.Equal(t, []string{"indi_asi_ccd", "indi_asi_wheel"}, dev.MatchingDrivers)
	assert.True(t, dev.HasDrivers())
}

func TestIdentifyByKeyword(t *testing.T) {
	raw := RawDevice{VendorID: "ffff", ProductID: "0001", Description: "Pegasus Astro Focus Cube"}
	dev := Identify(raw, []string{"indi_pegasus_focuscube"})

	assert.Equal(t, "Pegasus Astro", dev.Brand)
	assert.Equal(t, []string{"indi_pegasus_focuscube"}, dev.MatchingDrivers)
}

func TestIdentifyTokenFallback(t *testing.T) {
	raw := RawDevice{VendorID: "1234", ProductID: "5678", Description: "Generic eqmod serial bridge"}
	dev := Identify(raw, []string{"indi_eqmod_telescope", "indi_simulator_ccd"})

	assert.Empty(t, dev.Brand)
	assert.Equal(t, "Generic eqmod serial bridge", dev.Model)
	assert.Equal(t, []string{"indi_eqmod_telescope"}, dev.MatchingDrivers)
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"usb2", "webcam"}, Tokens("USB2.0 Webcam"))
}

func TestDeviceID(t *testing.T) {
	assert.Equal(t, "usb:03c3:294a", DeviceID("03c3", "294a", 1))
	assert.Equal(t, "usb:03c3:294a#2", DeviceID("03c3", "294a", 2))
}

func newTestScanner(runner system.Runner, clk *clocktesting.FakeClock) *Scanner {
	return NewScanner(Options{Interval: 5 * time.Second}, runner, staticInstalled{"indi_asi_ccd"}, clk, zerolog.Nop())
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func TestScanUnchangedEmitsNothing(t *testing.T) {
	runner := system.NewFakeRunner().On("lsusb", baseListing, nil)
	s := newTestScanner(runner, clocktesting.NewFakeClock(time.Now()))

	rec := &recorder{}
	s.Events().Subscribe(rec.handle)

	added, removed, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Empty(t, removed)

	added, removed, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Empty(t, removed)

	assert.Len(t, rec.all(), 2)
}

func TestScanDiff(t *testing.T) {
	runner := system.NewFakeRunner().On("lsusb", baseListing, nil)
	s := newTestScanner(runner, clocktesting.NewFakeClock(time.Now()))
	_, _, err := s.Scan(context.Background())
	require.NoError(t, err)

	rec := &recorder{}
	s.Events().Subscribe(rec.handle)

	runner.On("lsusb", `Bus 001 Device 004: ID 03c3:294a ZWO ASI294MC Pro
Bus 001 Device 007: ID 1618:c294 QHYCCD QHY294
`, nil)

	added, removed, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, added, 1)
	require.Len(t, removed, 1)
	assert.Equal(t, "usb:1618:c294", added[0].ID)
	assert.Equal(t, "usb:046d:0825", removed[0].ID)

	got := rec.all()
	require.Len(t, got, 2)
	assert.Equal(t, events.DeviceAdded, got[0].Type)
	assert.Equal(t, events.DeviceRemoved, got[1].Type)
	assert.Equal(t, "usb", got[0].Source)
}

func TestScanIdenticalDevicesGetDistinctIDs(t *testing.T) {
	runner := system.NewFakeRunner().On("lsusb", `Bus 001 Device 009: ID 03c3:294a ZWO ASI294MC Pro
Bus 001 Device 004: ID 03c3:294a ZWO ASI294MC Pro
`, nil)
	s := newTestScanner(runner, clocktesting.NewFakeClock(time.Now()))

	_, _, err := s.Scan(context.Background())
	require.NoError(t, err)

	devs := s.Devices()
	require.Len(t, devs, 2)
	assert.Equal(t, "usb:03c3:294a", devs[0].ID)
	assert.Equal(t, "004", devs[0].Device)
	assert.Equal(t, "usb:03c3:294a#2", devs[1].ID)
	assert.Equal(t, "009", devs[1].Device)
}

func TestScanEnrichment(t *testing.T) {
	runner := system.NewFakeRunner().
		On("lsusb", "Bus 003 Device 002: ID a0a0:6001 \n", nil).
		On("lsusb -v -s 003:002", "  iManufacturer 1 Player One\n  iProduct 2 Neptune-C II\n", nil)
	s := NewScanner(Options{Enrich: true}, runner, staticInstalled{"indi_playerone_ccd"}, clocktesting.NewFakeClock(time.Now()), zerolog.Nop())

	devs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, "Player One", devs[0].Brand)
	assert.Equal(t, "Neptune-C II", devs[0].Model)
	assert.Equal(t, []string{"indi_playerone_ccd"}, devs[0].MatchingDrivers)

	_, err = s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.Called("lsusb -v -s 003:002"), "enrichment is cached")
}

func TestScanEnrichmentFailureIgnored(t *testing.T) {
	runner := system.NewFakeRunner().On("lsusb", baseListing, nil)
	s := NewScanner(Options{Enrich: true}, runner, nil, clocktesting.NewFakeClock(time.Now()), zerolog.Nop())

	devs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, devs, 2)
}

func TestSysfsFallback(t *testing.T) {
	root := t.TempDir()
	writeSysfsDevice(t, root, "1-4", map[string]string{
		"idVendor": "03c3", "idProduct": "294a", "busnum": "1", "devnum": "4",
		"manufacturer": "ZWO", "product": "ASI294MC Pro",
	})
	writeSysfsDevice(t, root, "usb1", map[string]string{"idVendor": "1d6b", "idProduct": "0002"})
	writeSysfsDevice(t, root, "1-4:1.0", map[string]string{"bInterfaceClass": "ff"})

	runner := system.NewFakeRunner() // lsusb not installed
	s := NewScanner(Options{SysfsRoot: root}, runner, staticInstalled{"indi_asi_ccd"}, clocktesting.NewFakeClock(time.Now()), zerolog.Nop())

	devs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, "usb:03c3:294a", devs[0].ID)
	assert.Equal(t, "001:004", devs[0].Location())
	assert.Equal(t, "ASI294MC Pro", devs[0].Model)
}

func writeSysfsDevice(t *testing.T, root, name string, attrs map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for k, v := range attrs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, k), []byte(v+"\n"), 0o644))
	}
}

func TestStartBaselineThenPoll(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	runner := system.NewFakeRunner().On("lsusb", baseListing, nil)
	s := newTestScanner(runner, clk)

	rec := &recorder{}
	s.Events().Subscribe(rec.handle)

	require.NoError(t, s.Start(context.Background()))
	assert.Empty(t, rec.all(), "baseline scan publishes nothing")
	assert.Len(t, s.Devices(), 2)
	assert.Equal(t, []string{"indi_asi_ccd"}, s.MatchingDrivers())

	runner.On("lsusb", "Bus 001 Device 004: ID 03c3:294a ZWO ASI294MC Pro\n", nil)
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	clk.Step(5 * time.Second)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, events.DeviceRemoved, rec.all()[0].Type)

	st := s.Stats()
	assert.True(t, st.Running)
	assert.Equal(t, 1, st.DeviceCount)
	assert.Equal(t, 1, st.AstroDeviceCount)

	s.Stop()
	assert.Empty(t, s.Devices())
	assert.False(t, s.Stats().Running)
}

func TestScanErrorRecorded(t *testing.T) {
	runner := system.NewFakeRunner().On("lsusb", "", &system.ExitError{Command: "lsusb", Err: assert.AnError})
	s := newTestScanner(runner, clocktesting.NewFakeClock(time.Now()))

	_, _, err := s.Scan(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, s.Stats().LastError)
}
