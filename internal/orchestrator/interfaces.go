package orchestrator

import (
	"context"

	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/supervisor"
	"github.com/sigreer/astrogod/internal/usb"
)

// Scanner is the hot-plug source.
type Scanner interface {
	Start(ctx context.Context) error
	Stop()
	Events() *events.Bus
	MatchingDrivers() []string
	Stats() usb.Stats
}

// Server is the supervised control server.
type Server interface {
	Start(ctx context.Context, drivers []string) error
	Restart(ctx context.Context, drivers []string) error
	Stop() error
	Close()
	Running() bool
	Events() *events.Bus
	Status() supervisor.Status
	AddDriver(ctx context.Context, name string) error
	RemoveDriver(ctx context.Context, name string) error
}
