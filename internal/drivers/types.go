package drivers

import "errors"

// Common errors
var (
	ErrDriverNotFound = errors.New("driver executable not found in search paths")
	ErrInstallFailed  = errors.New("driver package install failed")
	ErrNoSources      = errors.New("no catalog sources configured")
)

// Status is how far along a driver is: known upstream, on disk, or supervised.
type Status string

const (
	StatusNotFound  Status = "not-found"
	StatusFound     Status = "found"
	StatusInstalled Status = "installed"
	StatusRunning   Status = "running"
)

// rank orders statuses so callers can compare progress.
func (s Status) rank() int {
	switch s {
	case StatusRunning:
		return 3
	case StatusInstalled:
		return 2
	case StatusFound:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s has reached other.
func (s Status) AtLeast(other Status) bool {
	return s.rank() >= other.rank()
}

// CatalogEntry is one driver package advertised by an upstream catalog.
type CatalogEntry struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// tools that live beside drivers but are not drivers themselves
var nonDriverTools = map[string]bool{
	"indiserver":   true,
	"indi_getprop": true,
	"indi_setprop": true,
	"indi_eval":    true,
}
