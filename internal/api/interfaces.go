package api

import (
	"context"

	"github.com/sigreer/astrogod/internal/detect"
	"github.com/sigreer/astrogod/internal/knowledge"
	"github.com/sigreer/astrogod/internal/monitor"
	"github.com/sigreer/astrogod/internal/orchestrator"
)

//go:generate mockgen -destination=mock_api.go -package=api github.com/sigreer/astrogod/internal/api Orchestrator

// Monitor is the equipment monitor surface the API exposes.
type Monitor interface {
	Devices() []detect.DetectedDevice
	Statuses() []monitor.EquipmentStatus
	Summary() monitor.Summary
	ScanNow(ctx context.Context) ([]monitor.EquipmentStatus, error)
	PerformAutoSetup(ctx context.Context) (monitor.SetupSummary, error)
	SetupSingleDevice(ctx context.Context, id string) error
	RestartDevice(ctx context.Context, id string) error
}

// Orchestrator controls the supervised control server.
type Orchestrator interface {
	Status() orchestrator.Status
	ForceIndiRestart(ctx context.Context) error
	AddDriver(ctx context.Context, name string) error
	RemoveDriver(ctx context.Context, name string) error
}

type KnowledgeBase interface {
	Stats() knowledge.Stats
}

// DriverDirectory lists driver executables on disk and under supervision.
type DriverDirectory interface {
	ListInstalled() []string
	ListRunning() []string
}
