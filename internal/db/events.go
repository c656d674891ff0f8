package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func eventID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}

// RecordEquipmentEvent stores a hot-plug or status transition. Re-recording
// the same EventID is a no-op.
func (d *DB) RecordEquipmentEvent(ev *EquipmentEvent) error {
	ev.EventID = eventID(ev.EventID)
	ev.Timestamp = stamp(ev.Timestamp)

	_, err := d.conn.Exec(`
		INSERT OR IGNORE INTO equipment_events
			(event_id, device_id, event_type, old_status, new_status, error_message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.EventID, ev.DeviceID, ev.EventType, nullString(ev.OldStatus), nullString(ev.NewStatus),
		nullString(ev.ErrorMessage), ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record equipment event: %w", err)
	}
	return nil
}

// GetEquipmentEvents returns the most recent equipment events, newest first.
// An empty deviceID returns events of every device.
func (d *DB) GetEquipmentEvents(deviceID string, limit int) ([]*EquipmentEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, event_id, device_id, event_type, old_status, new_status, error_message, timestamp
		FROM equipment_events`
	args := []any{}
	if deviceID != "" {
		query += " WHERE device_id = ?"
		args = append(args, deviceID)
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment events: %w", err)
	}
	defer rows.Close()

	var out []*EquipmentEvent
	for rows.Next() {
		var ev EquipmentEvent
		var oldStatus, newStatus, msg sql.NullString
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.DeviceID, &ev.EventType,
			&oldStatus, &newStatus, &msg, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan equipment event: %w", err)
		}
		ev.OldStatus = oldStatus.String
		ev.NewStatus = newStatus.String
		ev.ErrorMessage = msg.String
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// RecordServerEvent stores a control-server lifecycle event. Re-recording
// the same EventID is a no-op.
func (d *DB) RecordServerEvent(ev *ServerEvent) error {
	ev.EventID = eventID(ev.EventID)
	ev.Timestamp = stamp(ev.Timestamp)

	_, err := d.conn.Exec(`
		INSERT OR IGNORE INTO server_events (event_id, event_type, pid, drivers, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.EventID, ev.EventType, nullInt(ev.Pid), nullString(strings.Join(ev.Drivers, ",")),
		nullString(ev.Detail), ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record server event: %w", err)
	}
	return nil
}

// GetServerEvents returns the most recent server events, newest first.
func (d *DB) GetServerEvents(limit int) ([]*ServerEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(`
		SELECT id, event_id, event_type, pid, drivers, detail, timestamp
		FROM server_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query server events: %w", err)
	}
	defer rows.Close()

	var out []*ServerEvent
	for rows.Next() {
		var ev ServerEvent
		var pid sql.NullInt64
		var drivers, detail sql.NullString
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.EventType, &pid, &drivers, &detail, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan server event: %w", err)
		}
		ev.Pid = int(pid.Int64)
		if drivers.String != "" {
			ev.Drivers = strings.Split(drivers.String, ",")
		}
		ev.Detail = detail.String
		out = append(out, &ev)
	}
	return out, rows.Err()
}
