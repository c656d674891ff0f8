package supervisor

import (
	"errors"
	"time"
)

var (
	ErrNotListening      = errors.New("control server is not listening")
	ErrRestartInProgress = errors.New("control server start/stop already in progress")
	ErrRetriesExhausted  = errors.New("control server crash retries exhausted")
	ErrBinaryNotFound    = errors.New("control server binary not found")
	ErrNoDrivers         = errors.New("no driver executables resolved")
	ErrExitedEarly       = errors.New("control server exited during startup")
	ErrClosed            = errors.New("supervisor closed")
)

// Options configures the supervised server.
type Options struct {
	Binary      string
	Port        int
	Verbose     int
	FIFO        string
	MaxRetries  int
	RetryDelay  time.Duration
	StartGrace  time.Duration
	StopTimeout time.Duration
	LogLines    int
}

// Status is a point-in-time view of the control server.
type Status struct {
	Running          bool          `json:"running"`
	Pid              int           `json:"pid,omitempty"`
	Port             int           `json:"port"`
	StartedAt        time.Time     `json:"started_at,omitempty"`
	Uptime           time.Duration `json:"-"`
	UptimeMs         int64         `json:"uptime_ms"`
	Drivers          []string      `json:"drivers"`
	LoadedDrivers    []string      `json:"loaded_drivers"`
	ConnectedClients int           `json:"connected_clients"`
	Retries          int           `json:"retries"`
	Restarting       bool          `json:"restarting"`
}

// StartedInfo is the payload of serverStarted and serverRestarted.
type StartedInfo struct {
	Pid     int      `json:"pid"`
	Drivers []string `json:"drivers"`
}

// ExitInfo is the payload of serverExit.
type ExitInfo struct {
	Pid      int  `json:"pid"`
	Code     int  `json:"code"`
	Expected bool `json:"expected"`
}

// ErrorInfo is the payload of serverError.
type ErrorInfo struct {
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}
