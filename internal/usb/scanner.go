// Package usb polls the USB bus, diffs each listing against the previous
// snapshot and publishes deviceAdded/deviceRemoved events.
package usb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/sigreer/astrogod/internal/cache"
	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/logger"
	"github.com/sigreer/astrogod/internal/system"
)

// InstalledLister returns the names of driver executables present on disk.
type InstalledLister interface {
	ListInstalled() []string
}

type Options struct {
	Interval  time.Duration
	Enrich    bool
	SysfsRoot string
}

// Scanner tracks the set of attached USB devices.
type Scanner struct {
	opts      Options
	runner    system.Runner
	installed InstalledLister
	clock     clock.WithTicker
	bus       *events.Bus
	enrich    *cache.Cache[RawDevice]
	log       zerolog.Logger

	scanMu sync.Mutex // one scan at a time

	mu       sync.RWMutex
	snapshot map[string]Device
	stats    Stats
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScanner(opts Options, runner system.Runner, installed InstalledLister, clk clock.WithTicker, log zerolog.Logger) *Scanner {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Scanner{
		opts:      opts,
		runner:    runner,
		installed: installed,
		clock:     clk,
		bus:       events.NewBusWithClock("usb", clk),
		enrich:    cache.NewWithClock[RawDevice](clk),
		log:       logger.WithComponent(log, "usb"),
		snapshot:  make(map[string]Device),
	}
}

// Events is the bus deviceAdded/deviceRemoved are published on.
func (s *Scanner) Events() *events.Bus {
	return s.bus
}

// Start takes a baseline snapshot without publishing, then polls on the
// configured interval until Stop. Calling Start twice is a no-op.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.stats.Running = true
	s.mu.Unlock()

	if _, err := s.baseline(loopCtx); err != nil {
		s.log.Warn().Err(err).Msg("initial USB scan failed")
	}

	ticker := s.clock.NewTicker(s.opts.Interval)
	go s.loop(loopCtx, ticker, s.done)

	s.log.Info().Dur("interval", s.opts.Interval).Msg("USB scanner started")
	return nil
}

func (s *Scanner) loop(ctx context.Context, ticker clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("USB scan failed")
			}
		}
	}
}

// Stop cancels polling, waits for an in-flight scan to return and clears
// the snapshot.
func (s *Scanner) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	s.snapshot = make(map[string]Device)
	s.stats.Running = false
	s.mu.Unlock()

	s.log.Info().Msg("USB scanner stopped")
}

// List enumerates and identifies the attached devices without touching the
// snapshot.
func (s *Scanner) List(ctx context.Context) ([]Device, error) {
	raws, err := listLsusb(ctx, s.runner, s.opts.SysfsRoot)
	if err != nil {
		return nil, err
	}

	var installed []string
	if s.installed != nil {
		installed = s.installed.ListInstalled()
	}

	// Stable instance numbering for identical devices
	sort.SliceStable(raws, func(i, j int) bool { return raws[i].Location() < raws[j].Location() })

	instances := make(map[string]int)
	devices := make([]Device, 0, len(raws))
	for _, raw := range raws {
		if s.opts.Enrich {
			raw = s.enrichDevice(ctx, raw)
		}
		dev := Identify(raw, installed)
		instances[raw.Key()]++
		dev.ID = DeviceID(raw.VendorID, raw.ProductID, instances[raw.Key()])
		devices = append(devices, dev)
	}
	return devices, nil
}

// enrichDevice adds descriptor strings from lsusb -v. Failures are ignored.
func (s *Scanner) enrichDevice(ctx context.Context, raw RawDevice) RawDevice {
	if raw.Manufacturer != "" && raw.Product != "" {
		return raw
	}

	key := raw.Location() + "/" + raw.Key()
	if cached, ok := s.enrich.Get(key); ok {
		raw.Manufacturer, raw.Product, raw.Serial = cached.Manufacturer, cached.Product, cached.Serial
		return raw
	}

	out, err := s.runner.Run(ctx, "lsusb", "-v", "-s", raw.Location())
	if err != nil && len(out) == 0 {
		s.log.Debug().Err(err).Str("device", raw.Location()).Msg("USB enrichment failed")
		return raw
	}

	// lsusb -v exits non-zero without root but still prints descriptors
	m, p, serial := ParseVerbose(string(out))
	if m != "" {
		raw.Manufacturer = m
	}
	if p != "" {
		raw.Product = p
	}
	if serial != "" {
		raw.Serial = serial
	}
	s.enrich.Set(key, raw, cache.TTLEnrichment)
	return raw
}

func (s *Scanner) baseline(ctx context.Context) ([]Device, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	devices, err := s.List(ctx)
	s.record(err)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]Device, len(devices))
	for _, d := range devices {
		snap[d.ID] = d
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	return devices, nil
}

// Scan enumerates the bus, replaces the snapshot and publishes an event for
// every device that appeared or disappeared since the previous scan.
func (s *Scanner) Scan(ctx context.Context) (added, removed []Device, err error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	devices, err := s.List(ctx)
	s.record(err)
	if err != nil {
		return nil, nil, err
	}

	current := make(map[string]Device, len(devices))
	for _, d := range devices {
		current[d.ID] = d
	}

	s.mu.Lock()
	previous := s.snapshot
	s.snapshot = current
	s.mu.Unlock()

	for id, d := range current {
		if _, ok := previous[id]; !ok {
			added = append(added, d)
		}
	}
	for id, d := range previous {
		if _, ok := current[id]; !ok {
			removed = append(removed, d)
		}
	}
	sortDevices(added)
	sortDevices(removed)
	s.enrich.Cleanup()

	for _, d := range added {
		s.log.Info().Str("id", d.ID).Str("brand", d.Brand).Str("model", d.Model).
			Strs("drivers", d.MatchingDrivers).Msg("USB device added")
		s.bus.Publish(events.DeviceAdded, d)
	}
	for _, d := range removed {
		s.log.Info().Str("id", d.ID).Str("brand", d.Brand).Msg("USB device removed")
		s.bus.Publish(events.DeviceRemoved, d)
	}

	return added, removed, nil
}

func (s *Scanner) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ScanCount++
	s.stats.LastScan = s.clock.Now()
	if err != nil {
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
	}
}

// Devices returns the current snapshot sorted by id.
func (s *Scanner) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Device, 0, len(s.snapshot))
	for _, d := range s.snapshot {
		out = append(out, d)
	}
	sortDevices(out)
	return out
}

// MatchingDrivers returns the union of drivers matched by attached devices.
func (s *Scanner) MatchingDrivers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range s.Devices() {
		for _, drv := range d.MatchingDrivers {
			if !seen[drv] {
				seen[drv] = true
				out = append(out, drv)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (s *Scanner) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.DeviceCount = len(s.snapshot)
	st.AstroDeviceCount = 0
	for _, d := range s.snapshot {
		if d.HasDrivers() || d.Brand != "" {
			st.AstroDeviceCount++
		}
	}
	return st
}

func sortDevices(ds []Device) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
}
