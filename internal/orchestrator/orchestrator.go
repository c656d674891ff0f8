// Package orchestrator wires USB hot-plug events to debounced control
// server restarts and exposes the combined status.
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/logger"
	"github.com/sigreer/astrogod/internal/supervisor"
	"github.com/sigreer/astrogod/internal/usb"
)

type Options struct {
	Debounce       time.Duration
	StartupDrivers []string
}

// Status is the aggregate orchestration view.
type Status struct {
	Running        bool              `json:"running"`
	Scanner        usb.Stats         `json:"scanner"`
	Server         supervisor.Status `json:"server"`
	StartupDrivers []string          `json:"startup_drivers"`
	MatchedDrivers []string          `json:"matched_drivers"`
	RestartCount   int               `json:"restart_count"`
	LastRestart    time.Time         `json:"last_restart,omitempty"`
	PendingRestart bool              `json:"pending_restart"`
}

// Coordinator composes the USB scanner and the server supervisor.
type Coordinator struct {
	opts    Options
	scanner Scanner
	server  Server
	clock   clock.WithDelayedExecution
	bus     *events.Bus
	log     zerolog.Logger

	mu           sync.Mutex
	running      bool
	ctx          context.Context
	cancel       context.CancelFunc
	unsubs       []func()
	pending      clock.Timer
	pendingGen   uint64
	restartCount int
	lastRestart  time.Time
}

func New(opts Options, scanner Scanner, server Server, clk clock.WithDelayedExecution, log zerolog.Logger) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = 3 * time.Second
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Coordinator{
		opts:    opts,
		scanner: scanner,
		server:  server,
		clock:   clk,
		bus:     events.NewBusWithClock("orchestrator", clk),
		log:     logger.WithComponent(log, "orchestrator"),
	}
}

// Events re-emits every scanner and supervisor event plus restartRequested.
func (c *Coordinator) Events() *events.Bus {
	return c.bus
}

// Start subscribes to both components, starts the scanner and, when the
// startup driver set is non-empty, the control server. A server that fails
// to start is logged; hot-plug events retry it later.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.unsubs = []func(){
		c.scanner.Events().Subscribe(c.onScannerEvent),
		c.server.Events().Subscribe(c.onServerEvent),
	}
	runCtx := c.ctx
	c.mu.Unlock()

	if err := c.scanner.Start(runCtx); err != nil {
		c.Stop()
		return err
	}

	set := c.DriverSet()
	if len(set) == 0 {
		c.log.Info().Msg("no drivers to load yet, control server not started")
		return nil
	}

	c.log.Info().Strs("drivers", set).Msg("starting control server")
	if err := c.server.Start(runCtx, set); err != nil {
		c.log.Error().Err(err).Msg("control server failed to start")
	}
	return nil
}

func (c *Coordinator) onScannerEvent(e events.Event) {
	c.bus.Forward(e)

	if e.Type != events.DeviceAdded && e.Type != events.DeviceRemoved {
		return
	}
	dev, ok := e.Data.(usb.Device)
	if !ok || !dev.HasDrivers() {
		return
	}
	c.scheduleRestart()
}

func (c *Coordinator) onServerEvent(e events.Event) {
	if e.Type == events.ServerRestarted {
		c.mu.Lock()
		c.restartCount++
		c.lastRestart = c.clock.Now()
		c.mu.Unlock()
	}
	c.bus.Forward(e)
}

// scheduleRestart (re)arms the single debounce timer.
func (c *Coordinator) scheduleRestart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pendingGen++
	gen := c.pendingGen
	// Fake clocks run AfterFunc callbacks under their own lock
	c.pending = c.clock.AfterFunc(c.opts.Debounce, func() {
		go c.debouncedRestart(gen)
	})
	c.log.Debug().Dur("debounce", c.opts.Debounce).Msg("control server restart scheduled")
}

func (c *Coordinator) debouncedRestart(gen uint64) {
	c.mu.Lock()
	if !c.running || gen != c.pendingGen {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	ctx := c.ctx
	c.mu.Unlock()

	set := c.DriverSet()
	c.bus.Publish(events.RestartRequested, set)

	if len(set) == 0 {
		c.log.Info().Msg("no drivers left, stopping control server")
		if err := c.server.Stop(); err != nil {
			c.log.Warn().Err(err).Msg("control server stop failed")
		}
		return
	}

	c.log.Info().Strs("drivers", set).Msg("hot-plug change, restarting control server")
	if err := c.server.Start(ctx, set); err != nil {
		if errors.Is(err, supervisor.ErrRestartInProgress) {
			c.log.Debug().Msg("control server already restarting")
			return
		}
		c.log.Error().Err(err).Msg("control server restart failed")
	}
}

func (c *Coordinator) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.pendingGen++
}

// DriverSet is the union of the configured startup drivers and the drivers
// matched by plugged-in USB devices.
func (c *Coordinator) DriverSet() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{c.opts.StartupDrivers, c.scanner.MatchingDrivers()} {
		for _, d := range list {
			if d != "" && !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ForceIndiRestart recomputes the driver set and restarts the server now.
func (c *Coordinator) ForceIndiRestart(ctx context.Context) error {
	c.mu.Lock()
	c.cancelPendingLocked()
	c.mu.Unlock()

	set := c.DriverSet()
	c.log.Info().Strs("drivers", set).Msg("forced control server restart")
	c.bus.Publish(events.RestartRequested, set)
	return c.server.Restart(ctx, set)
}

// Stop cancels the debounce timer, then stops the scanner and the server
// in that order.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancelPendingLocked()
	unsubs := c.unsubs
	c.unsubs = nil
	cancel := c.cancel
	c.mu.Unlock()

	c.scanner.Stop()
	if err := c.server.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("control server stop failed")
	}
	cancel()
	for _, u := range unsubs {
		u()
	}
	c.log.Info().Msg("orchestrator stopped")
}

// Restart tears both components down and starts them again.
func (c *Coordinator) Restart(ctx context.Context) error {
	c.Stop()
	return c.Start(ctx)
}

// Cleanup is the terminal teardown. It releases the supervisor even when
// Stop already ran.
func (c *Coordinator) Cleanup() {
	c.Stop()
	c.server.Close()
	c.bus.Close()
}

func (c *Coordinator) AddDriver(ctx context.Context, name string) error {
	return c.server.AddDriver(ctx, name)
}

func (c *Coordinator) RemoveDriver(ctx context.Context, name string) error {
	return c.server.RemoveDriver(ctx, name)
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	st := Status{
		Running:        c.running,
		RestartCount:   c.restartCount,
		LastRestart:    c.lastRestart,
		PendingRestart: c.pending != nil,
		StartupDrivers: append([]string{}, c.opts.StartupDrivers...),
	}
	c.mu.Unlock()

	st.Scanner = c.scanner.Stats()
	st.Server = c.server.Status()
	st.MatchedDrivers = c.scanner.MatchingDrivers()
	return st
}
