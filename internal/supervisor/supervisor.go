// Package supervisor owns the lifecycle of the single indiserver process:
// start, stop, restart, crash-triggered bounded retry, log capture and
// liveness checks.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
	"k8s.io/utils/clock"

	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/logger"
)

// Supervisor runs at most one control server process.
type Supervisor struct {
	opts     Options
	launcher Launcher
	probe    Probe
	resolver DriverResolver
	clock    clock.WithDelayedExecution
	bus      *events.Bus
	logs     *ring
	log      zerolog.Logger
	srvLog   zerolog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc

	// opMu serialises start, stop and restart. Callers that cannot get it
	// are rejected rather than queued.
	opMu sync.Mutex
	// cycling is set while start, stop, restart or a retry holds opMu.
	cycling atomic.Bool

	mu          sync.Mutex
	proc        Process
	exited      chan struct{}
	gen         uint64
	starting    bool
	intentional bool
	drivers     []string
	loaded      map[string]string
	startedAt   time.Time
	retries     int
	retryTimer  clock.Timer
	closed      bool
}

func New(opts Options, launcher Launcher, probe Probe, resolver DriverResolver, clk clock.WithDelayedExecution, log zerolog.Logger) *Supervisor {
	if opts.Binary == "" {
		opts.Binary = "indiserver"
	}
	if opts.Port == 0 {
		opts.Port = 7624
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if launcher == nil {
		launcher = ExecLauncher{}
	}
	if probe == nil {
		probe = SystemProbe{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		opts:       opts,
		launcher:   launcher,
		probe:      probe,
		resolver:   resolver,
		clock:      clk,
		bus:        events.NewBusWithClock("supervisor", clk),
		logs:       newRing(opts.LogLines),
		log:        logger.WithComponent(log, "supervisor"),
		srvLog:     logger.WithComponent(log, "indiserver"),
		baseCtx:    ctx,
		cancelBase: cancel,
	}
}

// Events is the bus server lifecycle and log events are published on.
func (s *Supervisor) Events() *events.Bus {
	return s.bus
}

// Start launches the server with the given drivers. When the server is
// already running it is restarted with the new set instead.
func (s *Supervisor) Start(ctx context.Context, names []string) error {
	if !s.beginOp() {
		return ErrRestartInProgress
	}
	defer s.endOp()

	if s.Running() {
		return s.restart(ctx, names)
	}
	if err := s.start(ctx, names, true); err != nil {
		s.publishError(err, 0)
		return err
	}
	return nil
}

// Restart stops and starts the server. A nil names keeps the current driver
// set. Overlapping calls return ErrRestartInProgress and change nothing.
func (s *Supervisor) Restart(ctx context.Context, names []string) error {
	if !s.beginOp() {
		s.log.Debug().Msg("restart already in progress, ignoring request")
		return ErrRestartInProgress
	}
	defer s.endOp()

	if names == nil {
		names = s.Drivers()
	}
	return s.restart(ctx, names)
}

func (s *Supervisor) restart(ctx context.Context, names []string) error {
	s.log.Info().Strs("drivers", names).Msg("restarting control server")
	s.stop()
	if err := s.start(ctx, names, true); err != nil {
		s.publishError(err, 0)
		return err
	}
	s.bus.Publish(events.ServerRestarted, s.startedInfo())
	return nil
}

// Stop terminates the server: SIGTERM to the process group, then SIGKILL
// once the stop timeout passes.
func (s *Supervisor) Stop() error {
	if !s.beginOp() {
		return ErrRestartInProgress
	}
	defer s.endOp()
	s.stop()
	return nil
}

func (s *Supervisor) beginOp() bool {
	if !s.opMu.TryLock() {
		return false
	}
	s.cycling.Store(true)
	return true
}

func (s *Supervisor) endOp() {
	s.cycling.Store(false)
	s.opMu.Unlock()
}

// Close cancels pending retries, waits for any in-flight operation and
// stops the server. The supervisor cannot be started again.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelRetryLocked()
	s.mu.Unlock()

	s.cancelBase()

	s.opMu.Lock()
	s.cycling.Store(true)
	defer s.endOp()
	s.stop()
}

func (s *Supervisor) args(paths []string) []string {
	args := []string{"-p", strconv.Itoa(s.opts.Port)}
	if v := s.opts.Verbose; v > 0 {
		args = append(args, "-"+strings.Repeat("v", min(v, 3)))
	}
	if s.opts.FIFO != "" {
		args = append(args, "-f", s.opts.FIFO)
	}
	return append(args, paths...)
}

// start requires opMu. explicit starts reset the crash retry counter.
func (s *Supervisor) start(ctx context.Context, names []string, explicit bool) error {
	names = dedupe(names)

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	// Names resolving to one executable collapse to the first of them
	loaded := make(map[string]string)
	byPath := make(map[string]string)
	var paths, kept []string
	for _, name := range names {
		path, err := s.resolver.Resolve(name)
		if err != nil {
			s.log.Warn().Err(err).Str("driver", name).Msg("skipping unresolved driver")
			kept = append(kept, name)
			continue
		}
		if first, dup := byPath[path]; dup {
			s.log.Debug().Str("driver", name).Str("as", first).Str("path", path).Msg("driver already in launch set")
			continue
		}
		byPath[path] = name
		loaded[name] = path
		paths = append(paths, path)
		kept = append(kept, name)
	}

	s.mu.Lock()
	s.drivers = kept
	s.mu.Unlock()

	if len(paths) == 0 && s.opts.FIFO == "" {
		return ErrNoDrivers
	}
	if s.opts.FIFO != "" {
		if err := ensureFIFO(s.opts.FIFO); err != nil {
			return err
		}
	}

	args := s.args(paths)
	out := &lineWriter{emit: s.captureLine}
	proc, err := s.launcher.Launch(s.opts.Binary, args, out)
	if err != nil {
		return err
	}

	exited := make(chan struct{})
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.proc = proc
	s.exited = exited
	s.starting = true
	s.intentional = false
	s.loaded = loaded
	s.mu.Unlock()

	go s.watch(proc, exited, gen)

	s.log.Info().Int("pid", proc.Pid()).Strs("args", args).Msg("control server launched")

	if err := s.awaitStartup(ctx, exited); err != nil {
		s.log.Error().Err(err).Int("pid", proc.Pid()).Msg("control server failed to start")
		s.terminate(proc, exited)
		return err
	}

	s.mu.Lock()
	s.starting = false
	s.startedAt = s.clock.Now()
	if explicit {
		s.retries = 0
	}
	s.mu.Unlock()

	s.resolver.SetRunning(sortedValues(loaded))

	info := s.startedInfo()
	s.log.Info().Int("pid", info.Pid).Strs("drivers", info.Drivers).Msg("control server started")
	s.bus.Publish(events.ServerStarted, info)
	return nil
}

func (s *Supervisor) awaitStartup(ctx context.Context, exited <-chan struct{}) error {
	if s.opts.StartGrace > 0 {
		t := s.clock.NewTimer(s.opts.StartGrace)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return ErrExitedEarly
		case <-t.C():
		}
	} else {
		select {
		case <-exited:
			return ErrExitedEarly
		default:
		}
	}

	ok, err := s.probe.Listening(s.opts.Port)
	if err != nil {
		return fmt.Errorf("check port %d: %w", s.opts.Port, err)
	}
	if !ok {
		return fmt.Errorf("port %d: %w", s.opts.Port, ErrNotListening)
	}
	return nil
}

// stop requires opMu.
func (s *Supervisor) stop() {
	s.mu.Lock()
	s.cancelRetryLocked()
	proc, exited := s.proc, s.exited
	paths := sortedValues(s.loaded)
	s.mu.Unlock()

	if proc == nil {
		return
	}

	pid := proc.Pid()
	s.log.Info().Int("pid", pid).Msg("stopping control server")
	s.terminate(proc, exited)
	s.resolver.MarkStopped(paths...)
	s.bus.Publish(events.ServerStopped, ExitInfo{Pid: pid, Expected: true})
}

// terminate marks the exit as intentional and runs the two-phase shutdown.
func (s *Supervisor) terminate(proc Process, exited <-chan struct{}) {
	s.mu.Lock()
	s.intentional = true
	s.mu.Unlock()

	if err := proc.Signal(unix.SIGTERM); err != nil {
		s.log.Warn().Err(err).Int("pid", proc.Pid()).Msg("SIGTERM failed")
	}
	if s.waitExit(exited, s.opts.StopTimeout) {
		return
	}

	s.log.Warn().Int("pid", proc.Pid()).Dur("timeout", s.opts.StopTimeout).Msg("control server ignored SIGTERM, killing")
	if err := proc.Signal(unix.SIGKILL); err != nil {
		s.log.Error().Err(err).Int("pid", proc.Pid()).Msg("SIGKILL failed")
	}
	<-exited
}

func (s *Supervisor) waitExit(exited <-chan struct{}, d time.Duration) bool {
	t := s.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-exited:
		return true
	case <-t.C():
		return false
	}
}

func (s *Supervisor) watch(proc Process, exited chan struct{}, gen uint64) {
	code := exitCode(proc.Wait())

	s.mu.Lock()
	close(exited)
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	expected := s.intentional || s.starting
	s.proc = nil
	s.loaded = nil
	s.startedAt = time.Time{}
	names := append([]string(nil), s.drivers...)
	closed := s.closed
	s.mu.Unlock()

	s.bus.Publish(events.ServerExit, ExitInfo{Pid: proc.Pid(), Code: code, Expected: expected})
	if expected {
		return
	}

	s.resolver.SetRunning(nil)
	if code == 0 {
		s.log.Info().Int("pid", proc.Pid()).Msg("control server exited")
		return
	}
	s.log.Warn().Int("pid", proc.Pid()).Int("code", code).Msg("control server exited unexpectedly")
	if !closed {
		s.scheduleRetry(names)
	}
}

func (s *Supervisor) scheduleRetry(names []string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.retries >= s.opts.MaxRetries {
		attempts := s.retries
		s.mu.Unlock()
		err := fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, attempts)
		s.log.Error().Err(err).Msg("giving up on control server")
		s.publishError(err, attempts)
		return
	}
	s.retries++
	attempt := s.retries
	// Fake clocks run AfterFunc callbacks under their own lock
	s.retryTimer = s.clock.AfterFunc(s.opts.RetryDelay, func() {
		go s.retry(attempt, names)
	})
	s.mu.Unlock()

	s.log.Warn().Int("attempt", attempt).Int("max", s.opts.MaxRetries).Dur("delay", s.opts.RetryDelay).
		Msg("scheduling control server restart")
}

func (s *Supervisor) retry(attempt int, names []string) {
	if !s.beginOp() {
		s.log.Debug().Int("attempt", attempt).Msg("skipping automatic restart, another operation in progress")
		return
	}
	defer s.endOp()

	s.mu.Lock()
	s.retryTimer = nil
	skip := s.closed || s.proc != nil
	s.mu.Unlock()
	if skip {
		return
	}

	if err := s.start(s.baseCtx, names, false); err != nil {
		s.log.Error().Err(err).Int("attempt", attempt).Msg("automatic restart failed")
		s.scheduleRetry(names)
		return
	}
	s.bus.Publish(events.ServerRestarted, s.startedInfo())
}

func (s *Supervisor) cancelRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

func (s *Supervisor) publishError(err error, attempts int) {
	s.bus.Publish(events.ServerError, ErrorInfo{Error: err.Error(), Attempts: attempts})
}

func (s *Supervisor) captureLine(line string) {
	s.logs.add(line)
	s.srvLog.Debug().Msg(line)
	s.bus.Publish(events.ServerLog, line)
}

// AddDriver adds name to the driver set. Through the FIFO a running server
// loads it in place; otherwise the server is (re)started with the new set.
func (s *Supervisor) AddDriver(ctx context.Context, name string) error {
	if _, ok := s.member(name); ok {
		return nil
	}
	s.mu.Lock()
	next := append(append([]string(nil), s.drivers...), name)
	hot := s.proc != nil && !s.starting && s.opts.FIFO != ""
	s.mu.Unlock()

	if hot {
		return s.fifoCommand("start", name, next)
	}
	return s.Start(ctx, next)
}

// RemoveDriver drops name from the driver set, unloading it through the FIFO
// or restarting the server without it.
func (s *Supervisor) RemoveDriver(ctx context.Context, name string) error {
	name, ok := s.member(name)
	if !ok {
		return nil
	}
	s.mu.Lock()
	next := without(s.drivers, name)
	running := s.proc != nil
	_, loaded := s.loaded[name]
	s.mu.Unlock()

	switch {
	case !running:
		return s.setDrivers(next)
	case s.opts.FIFO != "" && loaded:
		return s.fifoCommand("stop", name, next)
	case len(next) == 0 && s.opts.FIFO == "":
		if err := s.Stop(); err != nil {
			return err
		}
		return s.setDrivers(next)
	default:
		return s.Restart(ctx, next)
	}
}

func (s *Supervisor) setDrivers(names []string) error {
	if !s.opMu.TryLock() {
		return ErrRestartInProgress
	}
	defer s.opMu.Unlock()
	s.mu.Lock()
	s.drivers = names
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) fifoCommand(verb, name string, next []string) error {
	if !s.opMu.TryLock() {
		return ErrRestartInProgress
	}
	defer s.opMu.Unlock()

	var path string
	if verb == "start" {
		p, err := s.resolver.Resolve(name)
		if err != nil {
			return err
		}
		path = p
	} else {
		s.mu.Lock()
		path = s.loaded[name]
		s.mu.Unlock()
	}

	if err := writeFIFO(s.opts.FIFO, verb+" "+path); err != nil {
		return err
	}

	s.mu.Lock()
	s.drivers = next
	if s.loaded == nil {
		s.loaded = make(map[string]string)
	}
	if verb == "start" {
		s.loaded[name] = path
	} else {
		delete(s.loaded, name)
	}
	s.mu.Unlock()

	if verb == "start" {
		s.resolver.MarkRunning(path)
	} else {
		s.resolver.MarkStopped(path)
	}
	s.log.Info().Str("driver", name).Str("command", verb).Msg("driver updated through fifo")
	return nil
}

// StartDriver makes sure name is loaded into a running server.
func (s *Supervisor) StartDriver(ctx context.Context, name string) error {
	if err := s.AddDriver(ctx, name); err != nil {
		return err
	}
	if !s.Running() {
		if err := s.Start(ctx, s.Drivers()); err != nil {
			return err
		}
	}
	if !s.IsLoaded(name) {
		return fmt.Errorf("%s: %w", name, drivers.ErrDriverNotFound)
	}
	return nil
}

// Running reports whether a started server process is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && !s.starting
}

// IsLoaded reports whether name, or another name for the same executable,
// is loaded into the running server.
func (s *Supervisor) IsLoaded(name string) bool {
	path, err := s.resolver.Resolve(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return false
	}
	if _, ok := s.loaded[name]; ok {
		return true
	}
	if err != nil {
		return false
	}
	for _, p := range s.loaded {
		if p == path {
			return true
		}
	}
	return false
}

// member returns the entry of the driver set that name refers to. Names that
// resolve to the same executable ("indi-asi", "indi_asi_ccd") are one driver.
func (s *Supervisor) member(name string) (string, bool) {
	s.mu.Lock()
	set := append([]string(nil), s.drivers...)
	loaded := make(map[string]string, len(s.loaded))
	for k, v := range s.loaded {
		loaded[k] = v
	}
	s.mu.Unlock()

	if contains(set, name) {
		return name, true
	}
	path, err := s.resolver.Resolve(name)
	if err != nil {
		return "", false
	}
	for _, d := range set {
		p, ok := loaded[d]
		if !ok {
			if p, err = s.resolver.Resolve(d); err != nil {
				continue
			}
		}
		if p == path {
			return d, true
		}
	}
	return "", false
}

// Drivers returns the logical driver set.
func (s *Supervisor) Drivers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.drivers...)
}

// Logs returns the most recent server output lines, oldest first.
func (s *Supervisor) Logs() []string {
	return s.logs.snapshot()
}

func (s *Supervisor) startedInfo() StartedInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := StartedInfo{Drivers: sortedKeys(s.loaded)}
	if s.proc != nil {
		info.Pid = s.proc.Pid()
	}
	return info
}

// Status reports liveness, uptime, drivers and connected clients.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	st := Status{
		Port:          s.opts.Port,
		Drivers:       append([]string{}, s.drivers...),
		LoadedDrivers: sortedKeys(s.loaded),
		Retries:       s.retries,
		Restarting:    s.cycling.Load(),
	}
	proc, started := s.proc, s.startedAt
	s.mu.Unlock()

	if proc == nil || started.IsZero() {
		st.LoadedDrivers = []string{}
		return st
	}

	st.Pid = proc.Pid()
	st.Running = s.probe.Alive(st.Pid)
	st.StartedAt = started
	st.Uptime = s.clock.Since(started)
	st.UptimeMs = st.Uptime.Milliseconds()
	if n, err := s.probe.ClientCount(s.opts.Port); err == nil {
		st.ConnectedClients = n
	} else {
		s.log.Debug().Err(err).Msg("client count unavailable")
	}
	return st
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
