package indi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sigreer/astrogod/internal/system"
)

// Transport reads and writes properties on the control server.
type Transport interface {
	// Get returns the element values of prop keyed by element name.
	Get(ctx context.Context, prop Property) (map[string]string, error)
	State(ctx context.Context, prop Property) (State, error)
	// Set writes the given elements in one request.
	Set(ctx context.Context, prop Property, values map[string]string) error
}

// CLITransport drives indi_getprop and indi_setprop.
type CLITransport struct {
	runner system.Runner
	host   string
	port   int
}

func NewCLITransport(runner system.Runner, host string, port int) *CLITransport {
	return &CLITransport{runner: runner, host: host, port: port}
}

func (t *CLITransport) addr() []string {
	return []string{"-h", t.host, "-p", strconv.Itoa(t.port)}
}

func (t *CLITransport) Get(ctx context.Context, prop Property) (map[string]string, error) {
	args := append(t.addr(), prop.String()+".*")
	out, err := t.runner.Run(ctx, "indi_getprop", args...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", prop, err)
	}
	vals := parseGetprop(out, prop)
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: %w", prop, ErrNoSuchProperty)
	}
	return vals, nil
}

func (t *CLITransport) State(ctx context.Context, prop Property) (State, error) {
	args := append(t.addr(), "-1", prop.String()+"._STATE")
	out, err := t.runner.Run(ctx, "indi_getprop", args...)
	if err != nil {
		return "", fmt.Errorf("state %s: %w", prop, err)
	}
	return ParseState(string(out))
}

func (t *CLITransport) Set(ctx context.Context, prop Property, values map[string]string) error {
	if len(values) == 0 {
		return fmt.Errorf("set %s: no values", prop)
	}
	args := append(t.addr(), setExpr(prop, values))
	if _, err := t.runner.Run(ctx, "indi_setprop", args...); err != nil {
		return fmt.Errorf("set %s: %w", prop, err)
	}
	return nil
}

// setExpr renders dev.prop.e1;e2=v1;v2 with elements in name order.
func setExpr(prop Property, values map[string]string) string {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	vals := make([]string, len(names))
	for i, n := range names {
		vals[i] = values[n]
	}
	return prop.String() + "." + strings.Join(names, ";") + "=" + strings.Join(vals, ";")
}

// parseGetprop reads dev.prop.elem=value lines belonging to prop.
func parseGetprop(out []byte, prop Property) map[string]string {
	prefix := prop.String() + "."
	vals := make(map[string]string)

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, val, ok := strings.Cut(line, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		elem := strings.TrimPrefix(key, prefix)
		if elem == "" || strings.HasPrefix(elem, "_") {
			continue
		}
		vals[elem] = val
	}
	return vals
}
