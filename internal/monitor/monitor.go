// Package monitor periodically re-runs equipment detection, keeps a status
// per device and serialises auto-setup runs.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/sigreer/astrogod/internal/detect"
	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/logger"
)

// Detector produces device records and performs setup.
type Detector interface {
	DetectAll(ctx context.Context) ([]detect.DetectedDevice, error)
	SetupDevice(ctx context.Context, dev detect.DetectedDevice) (bool, error)
	RestartDevice(ctx context.Context, dev detect.DetectedDevice) (bool, error)
}

type Options struct {
	Interval  time.Duration
	AutoSetup bool
}

// Monitor tracks equipment status.
type Monitor struct {
	opts     Options
	detector Detector
	clock    clock.WithTicker
	bus      *events.Bus
	log      zerolog.Logger

	setupBusy atomic.Bool

	mu       sync.RWMutex
	statuses map[string]*EquipmentStatus
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(opts Options, detector Detector, clk clock.WithTicker, log zerolog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Monitor{
		opts:     opts,
		detector: detector,
		clock:    clk,
		bus:      events.NewBusWithClock("monitor", clk),
		log:      logger.WithComponent(log, "monitor"),
		statuses: make(map[string]*EquipmentStatus),
	}
}

// Events carries equipmentStatusChanged and autoSetupCompleted.
func (m *Monitor) Events() *events.Bus {
	return m.bus
}

// Start runs one detection pass, then one per interval until Stop.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	ticker := m.clock.NewTicker(m.opts.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()

		m.cycle(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C():
				m.cycle(loopCtx)
			}
		}
	}()

	m.log.Info().Dur("interval", m.opts.Interval).Bool("auto_setup", m.opts.AutoSetup).Msg("equipment monitor started")
}

func (m *Monitor) cycle(ctx context.Context) {
	if _, err := m.ScanNow(ctx); err != nil {
		if ctx.Err() == nil {
			m.log.Warn().Err(err).Msg("equipment scan failed")
		}
		return
	}
	if m.opts.AutoSetup {
		if _, err := m.PerformAutoSetup(ctx); err != nil && ctx.Err() == nil {
			m.log.Debug().Err(err).Msg("auto-setup skipped")
		}
	}
}

// Stop ends the polling loop and waits for an in-flight pass.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.log.Info().Msg("equipment monitor stopped")
}

// ScanNow runs detection and updates the status map, publishing a change
// for every device whose status differs from the recorded one.
func (m *Monitor) ScanNow(ctx context.Context) ([]EquipmentStatus, error) {
	devs, err := m.detector.DetectAll(ctx)
	if err != nil {
		return nil, err
	}
	m.apply(devs)
	return m.Statuses(), nil
}

func (m *Monitor) apply(devs []detect.DetectedDevice) {
	now := m.clock.Now()
	var changes []Change

	m.mu.Lock()
	seen := make(map[string]bool, len(devs))
	for _, dev := range devs {
		seen[dev.ID] = true
		next := StateFor(dev.DriverStatus)

		st, ok := m.statuses[dev.ID]
		if !ok {
			st = &EquipmentStatus{ID: dev.ID}
			m.statuses[dev.ID] = st
		}
		st.LastSeen = now
		st.Device = dev

		// a running setup owns the status until it resolves
		if st.Status == StateConfiguring {
			continue
		}
		if st.Status == next {
			continue
		}
		prev := st.Status
		st.Status = next
		if next != StateError {
			st.ErrorMessage = ""
		}
		changes = append(changes, Change{ID: dev.ID, Previous: prev, Status: next, ErrorMessage: st.ErrorMessage, Device: dev})
	}

	for id, st := range m.statuses {
		if seen[id] || st.Status == StateDisconnected || st.Status == StateConfiguring {
			continue
		}
		prev := st.Status
		st.Status = StateDisconnected
		st.ErrorMessage = ""
		changes = append(changes, Change{ID: id, Previous: prev, Status: StateDisconnected, Device: st.Device})
	}
	m.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
	for _, c := range changes {
		m.publishChange(c)
	}
}

func (m *Monitor) publishChange(c Change) {
	m.log.Info().Str("device", c.ID).Str("from", string(c.Previous)).Str("to", string(c.Status)).Msg("equipment status changed")
	m.bus.Publish(events.EquipmentStatusChanged, c)
}

// setState records a setup-driven status and publishes it when it changed.
func (m *Monitor) setState(dev detect.DetectedDevice, next State, msg string) {
	m.mu.Lock()
	st, ok := m.statuses[dev.ID]
	if !ok {
		st = &EquipmentStatus{ID: dev.ID, Device: dev, LastSeen: m.clock.Now()}
		m.statuses[dev.ID] = st
	}
	prev := st.Status
	st.Status = next
	st.ErrorMessage = msg
	m.mu.Unlock()

	if prev != next {
		m.publishChange(Change{ID: dev.ID, Previous: prev, Status: next, ErrorMessage: msg, Device: dev})
	}
}

// PerformAutoSetup configures every auto-installable device whose driver is
// not running. A call made while another run is in flight returns
// ErrSetupInProgress immediately.
func (m *Monitor) PerformAutoSetup(ctx context.Context) (SetupSummary, error) {
	if !m.setupBusy.CompareAndSwap(false, true) {
		return SetupSummary{}, ErrSetupInProgress
	}
	defer m.setupBusy.Store(false)

	devs, err := m.detector.DetectAll(ctx)
	if err != nil {
		return SetupSummary{}, err
	}
	m.apply(devs)

	sum := SetupSummary{TotalDevices: len(devs), Errors: []string{}}
	for _, dev := range devs {
		if !dev.AutoInstallable || dev.DriverStatus == drivers.StatusRunning {
			continue
		}
		if err := m.configure(ctx, dev, m.detector.SetupDevice); err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", dev.Name, err))
			continue
		}
		sum.Configured++
	}

	m.log.Info().Int("devices", sum.TotalDevices).Int("configured", sum.Configured).Int("failed", sum.Failed).Msg("auto-setup complete")
	m.bus.Publish(events.AutoSetupCompleted, sum)
	return sum, nil
}

type setupFunc func(context.Context, detect.DetectedDevice) (bool, error)

// configure runs a setup step with the configuring -> connected|error
// transitions.
func (m *Monitor) configure(ctx context.Context, dev detect.DetectedDevice, fn setupFunc) error {
	m.setState(dev, StateConfiguring, "")

	ok, err := fn(ctx, dev)
	if err == nil && !ok {
		err = fmt.Errorf("driver %s did not reach running state", dev.DriverName)
	}
	if err != nil {
		m.setState(dev, StateError, err.Error())
		return err
	}
	m.setState(dev, StateConnected, "")
	return nil
}

// SetupSingleDevice sets up one auto-installable device by id.
func (m *Monitor) SetupSingleDevice(ctx context.Context, id string) error {
	dev, err := m.lookup(ctx, id)
	if err != nil {
		return err
	}
	return m.configure(ctx, dev, m.detector.SetupDevice)
}

// RestartDevice reloads the driver of one auto-installable device by id.
func (m *Monitor) RestartDevice(ctx context.Context, id string) error {
	dev, err := m.lookup(ctx, id)
	if err != nil {
		return err
	}
	return m.configure(ctx, dev, m.detector.RestartDevice)
}

func (m *Monitor) lookup(ctx context.Context, id string) (detect.DetectedDevice, error) {
	st, ok := m.Status(id)
	if !ok {
		// not seen yet, look again
		if _, err := m.ScanNow(ctx); err != nil {
			return detect.DetectedDevice{}, err
		}
		st, ok = m.Status(id)
	}
	if !ok {
		return detect.DetectedDevice{}, fmt.Errorf("%s: %w", id, ErrUnknownDevice)
	}
	if st.Status == StateConfiguring {
		return detect.DetectedDevice{}, fmt.Errorf("%s: %w", id, ErrSetupInProgress)
	}
	if !st.Device.AutoInstallable {
		return detect.DetectedDevice{}, fmt.Errorf("%s: %w", id, detect.ErrNotAutoInstallable)
	}
	return st.Device, nil
}

// Status returns the recorded status of one device.
func (m *Monitor) Status(id string) (EquipmentStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[id]
	if !ok {
		return EquipmentStatus{}, false
	}
	return *st, true
}

// Statuses returns every recorded status sorted by id.
func (m *Monitor) Statuses() []EquipmentStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EquipmentStatus, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Devices returns the detected devices behind the recorded statuses.
func (m *Monitor) Devices() []detect.DetectedDevice {
	sts := m.Statuses()
	out := make([]detect.DetectedDevice, 0, len(sts))
	for _, st := range sts {
		out = append(out, st.Device)
	}
	return out
}

func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Summary{
		TotalCount:        len(m.statuses),
		IsMonitoring:      m.cancel != nil,
		IsSetupInProgress: m.setupBusy.Load(),
	}
	for _, st := range m.statuses {
		if st.Status == StateConnected {
			s.ConnectedCount++
		}
	}
	return s
}
