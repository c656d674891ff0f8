package supervisor

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sigreer/astrogod/internal/drivers"
)

type exitErr struct{ code int }

func (e exitErr) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e exitErr) ExitCode() int { return e.code }

type fakeProc struct {
	pid        int
	ignoreTerm bool

	once sync.Once
	done chan struct{}
	code int

	mu      sync.Mutex
	signals []unix.Signal
}

func (p *fakeProc) Pid() int { return p.pid }

func (p *fakeProc) Wait() error {
	<-p.done
	if p.code != 0 {
		return exitErr{p.code}
	}
	return nil
}

func (p *fakeProc) Signal(sig unix.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if sig == unix.SIGTERM && p.ignoreTerm {
		return nil
	}
	p.exit(-1)
	return nil
}

// exit ends the process with code; only the first call counts.
func (p *fakeProc) exit(code int) {
	p.once.Do(func() {
		p.code = code
		close(p.done)
	})
}

func (p *fakeProc) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *fakeProc) gotSignals() []unix.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]unix.Signal(nil), p.signals...)
}

type launch struct {
	binary string
	args   []string
	proc   *fakeProc
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches []launch
	nextPid  int
	err      error
	output   string
	// when set, Launch signals entered and blocks until gate is closed
	gate       chan struct{}
	entered    chan struct{}
	ignoreTerm bool
}

func (l *fakeLauncher) Launch(binary string, args []string, out io.Writer) (Process, error) {
	l.mu.Lock()
	gate, entered := l.gate, l.entered
	l.mu.Unlock()
	if gate != nil {
		if entered != nil {
			close(entered)
		}
		<-gate
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.nextPid++
	p := &fakeProc{pid: 1000 + l.nextPid, done: make(chan struct{}), ignoreTerm: l.ignoreTerm}
	l.launches = append(l.launches, launch{binary: binary, args: args, proc: p})
	if l.output != "" {
		_, _ = out.Write([]byte(l.output))
	}
	return p, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launches)
}

func (l *fakeLauncher) last() launch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches[len(l.launches)-1]
}

func (l *fakeLauncher) alive() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, la := range l.launches {
		if !la.proc.exited() {
			n++
		}
	}
	return n
}

type fakeResolver struct {
	mu      sync.Mutex
	paths   map[string]string
	running map[string]bool
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		paths: map[string]string{
			"indi-asi":             "/usr/bin/indi_asi_ccd",
			"indi-qhy":             "/usr/bin/indi_qhy_ccd",
			"indi_eqmod_telescope": "/usr/bin/indi_eqmod_telescope",
		},
		running: map[string]bool{},
	}
}

func (r *fakeResolver) Resolve(name string) (string, error) {
	if p, ok := r.paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", name, drivers.ErrDriverNotFound)
}

func (r *fakeResolver) SetRunning(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = map[string]bool{}
	for _, p := range paths {
		r.running[p] = true
	}
}

func (r *fakeResolver) MarkRunning(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range paths {
		r.running[p] = true
	}
}

func (r *fakeResolver) MarkStopped(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range paths {
		delete(r.running, p)
	}
}

func (r *fakeResolver) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.running))
	for p := range r.running {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
