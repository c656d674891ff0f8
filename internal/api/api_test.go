package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sigreer/astrogod/internal/detect"
	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/knowledge"
	"github.com/sigreer/astrogod/internal/monitor"
	"github.com/sigreer/astrogod/internal/orchestrator"
	"github.com/sigreer/astrogod/internal/supervisor"
)

type fakeMonitor struct {
	statuses []monitor.EquipmentStatus
	setupErr error
	autoErr  error
	setupIDs []string
}

func (f *fakeMonitor) Devices() []detect.DetectedDevice {
	out := make([]detect.DetectedDevice, 0, len(f.statuses))
	for _, st := range f.statuses {
		out = append(out, st.Device)
	}
	return out
}

func (f *fakeMonitor) Statuses() []monitor.EquipmentStatus { return f.statuses }

func (f *fakeMonitor) Summary() monitor.Summary {
	return monitor.Summary{TotalCount: len(f.statuses), IsMonitoring: true}
}

func (f *fakeMonitor) ScanNow(context.Context) ([]monitor.EquipmentStatus, error) {
	return f.statuses, nil
}

func (f *fakeMonitor) PerformAutoSetup(context.Context) (monitor.SetupSummary, error) {
	if f.autoErr != nil {
		return monitor.SetupSummary{}, f.autoErr
	}
	return monitor.SetupSummary{TotalDevices: len(f.statuses), Configured: 1, Errors: []string{}}, nil
}

func (f *fakeMonitor) SetupSingleDevice(_ context.Context, id string) error {
	f.setupIDs = append(f.setupIDs, id)
	return f.setupErr
}

func (f *fakeMonitor) RestartDevice(_ context.Context, id string) error {
	return f.SetupSingleDevice(context.Background(), id)
}

type fakeKB struct{}

func (fakeKB) Stats() knowledge.Stats {
	return knowledge.Stats{Total: 42, ByType: map[knowledge.Type]int{knowledge.TypeCamera: 10}}
}

type fakeDrivers struct{}

func (fakeDrivers) ListInstalled() []string { return []string{"indi_asi_ccd", "indi_eqmod_telescope"} }
func (fakeDrivers) ListRunning() []string   { return []string{"indi_asi_ccd"} }

func camera() monitor.EquipmentStatus {
	return monitor.EquipmentStatus{
		ID:     "usb:03c3:294a",
		Status: monitor.StateConnected,
		Device: detect.DetectedDevice{
			ID: "usb:03c3:294a", Name: "ZWO ASI294MC Pro", Manufacturer: "ZWO", Model: "ASI294MC Pro",
			Type: knowledge.TypeCamera, Connection: detect.ConnectionUSB, DriverName: "indi-asi",
			DriverStatus: drivers.StatusRunning, Confidence: 95,
		},
	}
}

func newTestServer(t *testing.T, mon *fakeMonitor, buses ...*events.Bus) (*httptest.Server, *MockOrchestrator) {
	t.Helper()
	ctrl := gomock.NewController(t)
	orch := NewMockOrchestrator(ctrl)
	srv := httptest.NewServer(New(mon, orch, fakeKB{}, fakeDrivers{}, buses, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv, orch
}

func do(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestDevicesAndStatus(t *testing.T) {
	srv, _ := newTestServer(t, &fakeMonitor{statuses: []monitor.EquipmentStatus{camera()}})

	resp, body := do(t, http.MethodGet, srv.URL+"/api/devices")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var devs []detect.DetectedDevice
	require.NoError(t, json.Unmarshal(body, &devs))
	require.Len(t, devs, 1)
	assert.Equal(t, "ZWO", devs[0].Manufacturer)
	assert.Equal(t, 95, devs[0].Confidence)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"connected"`)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/status/summary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum monitor.Summary
	require.NoError(t, json.Unmarshal(body, &sum))
	assert.Equal(t, 1, sum.TotalCount)
	assert.True(t, sum.IsMonitoring)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/knowledge/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total":42`)
}

func TestSetupErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("usb:x: %w", monitor.ErrUnknownDevice), http.StatusNotFound},
		{monitor.ErrSetupInProgress, http.StatusConflict},
		{errors.New("apt-get exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		mon := &fakeMonitor{setupErr: tc.err}
		srv, _ := newTestServer(t, mon)

		resp, body := do(t, http.MethodPost, srv.URL+"/api/devices/usb:x/setup")
		assert.Equal(t, tc.want, resp.StatusCode, tc.err.Error())
		assert.Contains(t, string(body), `"error"`)
		assert.Equal(t, []string{"usb:x"}, mon.setupIDs)
	}
}

func TestSetupDeviceReturnsStatus(t *testing.T) {
	srv, _ := newTestServer(t, &fakeMonitor{statuses: []monitor.EquipmentStatus{camera()}})

	resp, body := do(t, http.MethodPost, srv.URL+"/api/devices/usb:03c3:294a/restart")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"id":"usb:03c3:294a"`)
}

func TestAutoSetupInProgress(t *testing.T) {
	srv, _ := newTestServer(t, &fakeMonitor{autoErr: monitor.ErrSetupInProgress})

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/setup")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServerRoutes(t *testing.T) {
	srv, orch := newTestServer(t, &fakeMonitor{})
	status := orchestrator.Status{
		Running:      true,
		RestartCount: 2,
		Server:       supervisor.Status{Running: true, Pid: 321, Port: 7624, LoadedDrivers: []string{"indi_asi_ccd"}},
	}

	orch.EXPECT().Status().Return(status).AnyTimes()
	orch.EXPECT().ForceIndiRestart(gomock.Any()).Return(nil)
	orch.EXPECT().AddDriver(gomock.Any(), "indi_eqmod_telescope").Return(nil)
	orch.EXPECT().RemoveDriver(gomock.Any(), "indi_asi_ccd").Return(supervisor.ErrRestartInProgress)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/server")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"pid":321`)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/server/restart")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/server/drivers/indi_eqmod_telescope")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/server/drivers/indi_asi_ccd")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/orchestrator")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"restart_count":2`)
}

func TestEventStream(t *testing.T) {
	usbBus := events.NewBus("usb")
	monBus := events.NewBus("monitor")
	srv, _ := newTestServer(t, &fakeMonitor{}, usbBus, monBus)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	monBus.Publish(events.EquipmentStatusChanged, monitor.Change{ID: "usb:a", Status: monitor.StateConnected})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got struct {
		Type   events.Type    `json:"type"`
		Source string         `json:"source"`
		Data   monitor.Change `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, events.EquipmentStatusChanged, got.Type)
	assert.Equal(t, "monitor", got.Source)
	assert.Equal(t, monitor.StateConnected, got.Data.Status)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return usbBus.Len() == 0 && monBus.Len() == 0
	}, 2*time.Second, 10*time.Millisecond, "subscriptions released on disconnect")
}

func TestDriversListing(t *testing.T) {
	srv, _ := newTestServer(t, &fakeMonitor{})

	resp, body := do(t, http.MethodGet, srv.URL+"/api/drivers")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got driverListing
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []string{"indi_asi_ccd", "indi_eqmod_telescope"}, got.Installed)
	assert.Equal(t, []string{"indi_asi_ccd"}, got.Running)
}
