// Package system wraps the OS commands astrogod shells out to (lsusb, apt-get,
// indi_getprop, ...) so callers can be exercised against canned output.
package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotInstalled is returned when the requested tool is not on PATH.
var ErrNotInstalled = errors.New("command not found in PATH")

// Runner executes external commands.
type Runner interface {
	// Run executes name with args and returns combined stdout/stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// LookPath reports the resolved path of name.
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
		}
		return out.Bytes(), &ExitError{
			Command: name + " " + strings.Join(args, " "),
			Output:  strings.TrimSpace(out.String()),
			Err:     err,
		}
	}

	return out.Bytes(), nil
}

func (ExecRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	return path, nil
}

// ExitError carries the output of a command that exited non-zero.
type ExitError struct {
	Command string
	Output  string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, lastLine(e.Output))
}

func (e *ExitError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
