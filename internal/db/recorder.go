package db

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/logger"
	"github.com/sigreer/astrogod/internal/monitor"
	"github.com/sigreer/astrogod/internal/supervisor"
	"github.com/sigreer/astrogod/internal/usb"
)

var recordedTypes = []events.Type{
	events.DeviceAdded,
	events.DeviceRemoved,
	events.EquipmentStatusChanged,
	events.AutoSetupCompleted,
	events.RestartRequested,
	events.ServerStarted,
	events.ServerStopped,
	events.ServerRestarted,
	events.ServerError,
	events.ServerExit,
}

// Recorder writes bus events to the history tables from its own goroutine.
// Write failures are logged and dropped.
type Recorder struct {
	db  *DB
	log zerolog.Logger

	queue chan events.Event
	wg    sync.WaitGroup

	mu     sync.Mutex
	unsubs []func()
	closed bool
}

func NewRecorder(db *DB, log zerolog.Logger) *Recorder {
	return &Recorder{
		db:    db,
		log:   logger.WithComponent(log, "history"),
		queue: make(chan events.Event, 256),
	}
}

// Attach subscribes to bus. Call before Start.
func (r *Recorder) Attach(bus *events.Bus) {
	unsub := bus.Subscribe(r.enqueue, recordedTypes...)
	r.mu.Lock()
	r.unsubs = append(r.unsubs, unsub)
	r.mu.Unlock()
}

func (r *Recorder) enqueue(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.log.Warn().Str("type", string(e.Type)).Msg("history queue full, event dropped")
	}
}

// Start writes queued events until Close.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for e := range r.queue {
			r.record(e)
		}
	}()
}

// Close detaches from every bus and flushes queued events.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubs := r.unsubs
	r.unsubs = nil
	close(r.queue)
	r.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	r.wg.Wait()
}

func (r *Recorder) record(e events.Event) {
	if err := r.write(e); err != nil {
		r.log.Warn().Err(err).Str("type", string(e.Type)).Msg("failed to record event")
	}
}

func (r *Recorder) write(e events.Event) error {
	switch data := e.Data.(type) {
	case usb.Device:
		if err := r.db.UpsertDevice(&DeviceRecord{
			ID:           data.ID,
			Name:         usbName(data),
			Manufacturer: data.Brand,
			Model:        data.Model,
			Connection:   "usb",
			LastSeen:     e.Time,
		}); err != nil {
			return err
		}
		return r.db.RecordEquipmentEvent(&EquipmentEvent{
			EventID: e.ID, DeviceID: data.ID, EventType: string(e.Type), Timestamp: e.Time,
		})

	case monitor.Change:
		dev := data.Device
		if err := r.db.UpsertDevice(&DeviceRecord{
			ID:            data.ID,
			Name:          dev.Name,
			Manufacturer:  dev.Manufacturer,
			Model:         dev.Model,
			Type:          string(dev.Type),
			Connection:    string(dev.Connection),
			DriverName:    dev.DriverName,
			CurrentStatus: string(data.Status),
			LastSeen:      e.Time,
		}); err != nil {
			return err
		}
		return r.db.RecordEquipmentEvent(&EquipmentEvent{
			EventID:      e.ID,
			DeviceID:     data.ID,
			EventType:    string(e.Type),
			OldStatus:    string(data.Previous),
			NewStatus:    string(data.Status),
			ErrorMessage: data.ErrorMessage,
			Timestamp:    e.Time,
		})

	case monitor.SetupSummary:
		return r.server(e, 0, nil, detail(data))
	case supervisor.StartedInfo:
		return r.server(e, data.Pid, data.Drivers, "")
	case supervisor.ExitInfo:
		return r.server(e, data.Pid, nil, fmt.Sprintf("code=%d expected=%t", data.Code, data.Expected))
	case supervisor.ErrorInfo:
		return r.server(e, 0, nil, fmt.Sprintf("%s (attempts=%d)", data.Error, data.Attempts))
	case []string:
		return r.server(e, 0, data, "")
	}
	return r.server(e, 0, nil, detail(e.Data))
}

func (r *Recorder) server(e events.Event, pid int, drivers []string, detail string) error {
	return r.db.RecordServerEvent(&ServerEvent{
		EventID:   e.ID,
		EventType: string(e.Type),
		Pid:       pid,
		Drivers:   drivers,
		Detail:    detail,
		Timestamp: e.Time,
	})
}

func usbName(d usb.Device) string {
	if d.Brand != "" && d.Model != "" {
		return d.Brand + " " + d.Model
	}
	return d.Description
}

func detail(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
