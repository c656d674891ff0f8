package supervisor

//go:generate mockgen -destination=mock_supervisor.go -package=supervisor github.com/sigreer/astrogod/internal/supervisor Probe

import (
	"io"

	"golang.org/x/sys/unix"
)

// Process is a running control server.
type Process interface {
	Pid() int
	// Wait blocks until the process exits.
	Wait() error
	// Signal delivers sig to the process group.
	Signal(sig unix.Signal) error
}

// Launcher spawns the control server in its own process group with stdout
// and stderr copied to out.
type Launcher interface {
	Launch(binary string, args []string, out io.Writer) (Process, error)
}

// Probe inspects sockets and processes.
type Probe interface {
	Listening(port int) (bool, error)
	ClientCount(port int) (int, error)
	Alive(pid int) bool
}

// DriverResolver maps driver names to executables and tracks which
// executables are loaded, by path.
type DriverResolver interface {
	Resolve(name string) (string, error)
	SetRunning(paths []string)
	MarkRunning(paths ...string)
	MarkStopped(paths ...string)
}
