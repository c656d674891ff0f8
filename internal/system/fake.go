package system

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRunner answers commands from a table keyed by the full command line.
// Unmatched commands fail with ErrNotInstalled. It is used by tests across
// packages.
type FakeRunner struct {
	mu       sync.Mutex
	outputs  map[string]fakeResult
	prefixes map[string]fakeResult
	paths    map[string]string
	calls    []string
}

type fakeResult struct {
	out []byte
	err error
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		outputs:  make(map[string]fakeResult),
		prefixes: make(map[string]fakeResult),
		paths:    make(map[string]string),
	}
}

// On registers the output for an exact command line.
func (f *FakeRunner) On(cmdline string, out string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[cmdline] = fakeResult{out: []byte(out), err: err}
	return f
}

// OnPrefix registers the output for any command line starting with prefix.
func (f *FakeRunner) OnPrefix(prefix string, out string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes[prefix] = fakeResult{out: []byte(out), err: err}
	return f
}

// Installed makes LookPath succeed for name.
func (f *FakeRunner) Installed(name, path string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths[name] = path
	return f
}

func (f *FakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmdline)

	if r, ok := f.outputs[cmdline]; ok {
		return r.out, r.err
	}

	best := ""
	for p := range f.prefixes {
		if strings.HasPrefix(cmdline, p) && len(p) > len(best) {
			best = p
		}
	}
	if best != "" {
		r := f.prefixes[best]
		return r.out, r.err
	}

	return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
}

func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotInstalled)
}

// Calls returns every command line run so far.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports how many times cmdline was run.
func (f *FakeRunner) Called(cmdline string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == cmdline {
			n++
		}
	}
	return n
}
