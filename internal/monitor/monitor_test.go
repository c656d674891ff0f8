package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/sigreer/astrogod/internal/detect"
	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/knowledge"
)

type fakeDetector struct {
	mu       sync.Mutex
	devices  []detect.DetectedDevice
	results  map[string]error
	gate     chan struct{}
	entered  chan struct{}
	setups   []string
	restarts []string
	detects  int
}

func (f *fakeDetector) DetectAll(context.Context) ([]detect.DetectedDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detects++
	return append([]detect.DetectedDevice(nil), f.devices...), nil
}

func (f *fakeDetector) SetupDevice(_ context.Context, dev detect.DetectedDevice) (bool, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.setups = append(f.setups, dev.ID)
	err := f.results[dev.ID]
	f.mu.Unlock()

	if gate != nil {
		if entered != nil {
			close(entered)
		}
		<-gate
	}
	return err == nil, err
}

func (f *fakeDetector) RestartDevice(_ context.Context, dev detect.DetectedDevice) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts = append(f.restarts, dev.ID)
	return true, nil
}

func (f *fakeDetector) set(devs ...detect.DetectedDevice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devs
}

func device(id string, status drivers.Status, auto bool) detect.DetectedDevice {
	return detect.DetectedDevice{
		ID: id, Name: id, Type: knowledge.TypeCamera, Connection: detect.ConnectionUSB,
		DriverName: "indi-asi", DriverStatus: status, AutoInstallable: auto, Confidence: 95,
	}
}

type changeLog struct {
	mu      sync.Mutex
	changes []Change
}

func (l *changeLog) handle(e events.Event) {
	if c, ok := e.Data.(Change); ok {
		l.mu.Lock()
		l.changes = append(l.changes, c)
		l.mu.Unlock()
	}
}

func (l *changeLog) all() []Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Change(nil), l.changes...)
}

func newMonitor(det *fakeDetector) (*Monitor, *changeLog, *clocktesting.FakeClock) {
	clk := clocktesting.NewFakeClock(time.Now())
	m := New(Options{Interval: 30 * time.Second}, det, clk, zerolog.Nop())
	log := &changeLog{}
	m.Events().Subscribe(log.handle, events.EquipmentStatusChanged)
	return m, log, clk
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, StateConnected, StateFor(drivers.StatusRunning))
	assert.Equal(t, StateDisconnected, StateFor(drivers.StatusInstalled))
	assert.Equal(t, StateDisconnected, StateFor(drivers.StatusFound))
	assert.Equal(t, StateError, StateFor(drivers.StatusNotFound))
}

func TestScanEmitsOnlyTransitions(t *testing.T) {
	det := &fakeDetector{}
	det.set(device("usb:a", drivers.StatusRunning, true), device("usb:b", drivers.StatusNotFound, false))
	m, log, clk := newMonitor(det)
	ctx := context.Background()

	_, err := m.ScanNow(ctx)
	require.NoError(t, err)
	require.Len(t, log.all(), 2)

	first, _ := m.Status("usb:a")
	clk.Step(time.Minute)

	_, err = m.ScanNow(ctx)
	require.NoError(t, err)
	assert.Len(t, log.all(), 2, "unchanged statuses are silent")

	again, _ := m.Status("usb:a")
	assert.True(t, again.LastSeen.After(first.LastSeen), "lastSeen refreshed")
	assert.Equal(t, StateConnected, again.Status)

	det.set(device("usb:a", drivers.StatusInstalled, true), device("usb:b", drivers.StatusNotFound, false))
	_, err = m.ScanNow(ctx)
	require.NoError(t, err)

	changes := log.all()
	require.Len(t, changes, 3)
	assert.Equal(t, Change{ID: "usb:a", Previous: StateConnected, Status: StateDisconnected, Device: device("usb:a", drivers.StatusInstalled, true)}, changes[2])
}

func TestMissingDeviceBecomesDisconnected(t *testing.T) {
	det := &fakeDetector{}
	det.set(device("usb:a", drivers.StatusRunning, true))
	m, log, _ := newMonitor(det)
	ctx := context.Background()

	_, err := m.ScanNow(ctx)
	require.NoError(t, err)

	det.set()
	_, err = m.ScanNow(ctx)
	require.NoError(t, err)

	changes := log.all()
	require.Len(t, changes, 2)
	assert.Equal(t, StateDisconnected, changes[1].Status)
	assert.Equal(t, StateConnected, changes[1].Previous)

	_, err = m.ScanNow(ctx)
	require.NoError(t, err)
	assert.Len(t, log.all(), 2)
}

func TestConnectedIffRunning(t *testing.T) {
	det := &fakeDetector{}
	det.set(
		device("usb:a", drivers.StatusRunning, true),
		device("usb:b", drivers.StatusInstalled, true),
		device("usb:c", drivers.StatusFound, true),
		device("usb:d", drivers.StatusNotFound, true),
	)
	m, _, _ := newMonitor(det)

	sts, err := m.ScanNow(context.Background())
	require.NoError(t, err)
	for _, st := range sts {
		assert.Equal(t, st.Device.DriverStatus == drivers.StatusRunning, st.Status == StateConnected, st.ID)
		assert.Equal(t, st.Device.DriverStatus == drivers.StatusNotFound, st.Status == StateError, st.ID)
	}
}

func TestPerformAutoSetup(t *testing.T) {
	det := &fakeDetector{results: map[string]error{"usb:c": drivers.ErrInstallFailed}}
	det.set(
		device("usb:a", drivers.StatusRunning, true),
		device("usb:b", drivers.StatusFound, true),
		device("usb:c", drivers.StatusFound, true),
		device("usb:d", drivers.StatusFound, false),
	)
	m, log, _ := newMonitor(det)

	done := make(chan SetupSummary, 1)
	m.Events().Subscribe(func(e events.Event) { done <- e.Data.(SetupSummary) }, events.AutoSetupCompleted)

	sum, err := m.PerformAutoSetup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.TotalDevices)
	assert.Equal(t, 1, sum.Configured)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "usb:c")
	assert.Equal(t, sum, <-done)

	assert.Equal(t, []string{"usb:b", "usb:c"}, det.setups)

	b, _ := m.Status("usb:b")
	assert.Equal(t, StateConnected, b.Status)
	c, _ := m.Status("usb:c")
	assert.Equal(t, StateError, c.Status)
	assert.Contains(t, c.ErrorMessage, "install failed")

	var seq []State
	for _, ch := range log.all() {
		if ch.ID == "usb:b" {
			seq = append(seq, ch.Status)
		}
	}
	assert.Equal(t, []State{StateDisconnected, StateConfiguring, StateConnected}, seq)
}

func TestAutoSetupIsSingleFlight(t *testing.T) {
	det := &fakeDetector{gate: make(chan struct{}), entered: make(chan struct{})}
	det.set(device("usb:a", drivers.StatusFound, true))
	m, _, _ := newMonitor(det)

	first := make(chan error, 1)
	go func() {
		_, err := m.PerformAutoSetup(context.Background())
		first <- err
	}()
	<-det.entered

	before, _ := m.Status("usb:a")
	require.Equal(t, StateConfiguring, before.Status)
	assert.True(t, m.Summary().IsSetupInProgress)

	_, err := m.PerformAutoSetup(context.Background())
	assert.ErrorIs(t, err, ErrSetupInProgress)

	after, _ := m.Status("usb:a")
	assert.Equal(t, StateConfiguring, after.Status, "in-flight status untouched")

	// a scan during setup does not override configuring either
	_, err = m.ScanNow(context.Background())
	require.NoError(t, err)
	during, _ := m.Status("usb:a")
	assert.Equal(t, StateConfiguring, during.Status)

	close(det.gate)
	require.NoError(t, <-first)
	final, _ := m.Status("usb:a")
	assert.Equal(t, StateConnected, final.Status)
	assert.False(t, m.Summary().IsSetupInProgress)
}

func TestSetupSingleDevice(t *testing.T) {
	det := &fakeDetector{results: map[string]error{}}
	det.set(device("usb:a", drivers.StatusFound, true), device("usb:b", drivers.StatusFound, false))
	m, _, _ := newMonitor(det)
	ctx := context.Background()

	require.NoError(t, m.SetupSingleDevice(ctx, "usb:a"))
	st, _ := m.Status("usb:a")
	assert.Equal(t, StateConnected, st.Status)

	assert.ErrorIs(t, m.SetupSingleDevice(ctx, "usb:b"), detect.ErrNotAutoInstallable)

	err := m.SetupSingleDevice(ctx, "usb:nope")
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.ErrorIs(t, err, detect.ErrDeviceNotFound)
}

func TestSetupSingleDeviceFailure(t *testing.T) {
	det := &fakeDetector{results: map[string]error{"usb:a": errors.New("boom")}}
	det.set(device("usb:a", drivers.StatusFound, true))
	m, _, _ := newMonitor(det)

	require.Error(t, m.SetupSingleDevice(context.Background(), "usb:a"))
	st, _ := m.Status("usb:a")
	assert.Equal(t, StateError, st.Status)
	assert.Equal(t, "boom", st.ErrorMessage)
}

func TestRestartDevice(t *testing.T) {
	det := &fakeDetector{}
	det.set(device("usb:a", drivers.StatusRunning, true))
	m, _, _ := newMonitor(det)

	require.NoError(t, m.RestartDevice(context.Background(), "usb:a"))
	assert.Equal(t, []string{"usb:a"}, det.restarts)
	st, _ := m.Status("usb:a")
	assert.Equal(t, StateConnected, st.Status)
}

func TestStartRunsImmediatelyAndOnInterval(t *testing.T) {
	det := &fakeDetector{}
	det.set(device("usb:a", drivers.StatusRunning, true))
	m, _, clk := newMonitor(det)

	m.Start(context.Background())
	require.Eventually(t, func() bool {
		det.mu.Lock()
		defer det.mu.Unlock()
		return det.detects == 1
	}, time.Second, time.Millisecond)
	assert.True(t, m.Summary().IsMonitoring)

	clk.Step(30 * time.Second)
	require.Eventually(t, func() bool {
		det.mu.Lock()
		defer det.mu.Unlock()
		return det.detects == 2
	}, time.Second, time.Millisecond)

	m.Stop()
	sum := m.Summary()
	assert.False(t, sum.IsMonitoring)
	assert.Equal(t, 1, sum.TotalCount)
	assert.Equal(t, 1, sum.ConnectedCount)
}
