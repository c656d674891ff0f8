package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/sigreer/astrogod/internal/detect"
	"github.com/sigreer/astrogod/internal/drivers"
)

var (
	ErrSetupInProgress = errors.New("auto-setup already in progress")
	ErrUnknownDevice   = fmt.Errorf("unknown device: %w", detect.ErrDeviceNotFound)
)

// State is the monitoring-side status of a device.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateError        State = "error"
	StateConfiguring  State = "configuring"
)

// StateFor derives the state from a driver status.
func StateFor(s drivers.Status) State {
	switch s {
	case drivers.StatusRunning:
		return StateConnected
	case drivers.StatusInstalled, drivers.StatusFound:
		return StateDisconnected
	default:
		return StateError
	}
}

// EquipmentStatus is the monitored view of one device.
type EquipmentStatus struct {
	ID           string                `json:"id"`
	Status       State                 `json:"status"`
	LastSeen     time.Time             `json:"last_seen"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Device       detect.DetectedDevice `json:"device"`
}

// Change is the payload of equipmentStatusChanged.
type Change struct {
	ID           string                `json:"id"`
	Previous     State                 `json:"previous,omitempty"`
	Status       State                 `json:"status"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Device       detect.DetectedDevice `json:"device"`
}

// SetupSummary is the result of an auto-setup run.
type SetupSummary struct {
	TotalDevices int      `json:"total_devices"`
	Configured   int      `json:"configured"`
	Failed       int      `json:"failed"`
	Errors       []string `json:"errors"`
}

// Summary is the aggregate monitor view.
type Summary struct {
	TotalCount        int  `json:"total_count"`
	ConnectedCount    int  `json:"connected_count"`
	IsMonitoring      bool `json:"is_monitoring"`
	IsSetupInProgress bool `json:"is_setup_in_progress"`
}
