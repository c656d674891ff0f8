package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertDevice inserts a device or refreshes its descriptive columns,
// status and last_seen. first_seen is kept from the first insert.
func (d *DB) UpsertDevice(rec *DeviceRecord) error {
	seen := rec.LastSeen
	if seen.IsZero() {
		seen = time.Now()
	}
	seen = seen.UTC()

	_, err := d.conn.Exec(`
		INSERT INTO devices (
			id, name, manufacturer, model, type, connection, driver_name,
			current_status, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = COALESCE(excluded.name, name),
			manufacturer = COALESCE(excluded.manufacturer, manufacturer),
			model = COALESCE(excluded.model, model),
			type = COALESCE(excluded.type, type),
			connection = COALESCE(excluded.connection, connection),
			driver_name = COALESCE(excluded.driver_name, driver_name),
			current_status = COALESCE(excluded.current_status, current_status),
			last_seen = excluded.last_seen
	`,
		rec.ID, nullString(rec.Name), nullString(rec.Manufacturer), nullString(rec.Model),
		nullString(rec.Type), nullString(rec.Connection), nullString(rec.DriverName),
		nullString(rec.CurrentStatus), seen, seen,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", rec.ID, err)
	}
	return nil
}

// GetDevice returns a device by id, or nil when it was never seen.
func (d *DB) GetDevice(id string) (*DeviceRecord, error) {
	row := d.conn.QueryRow(`
		SELECT id, name, manufacturer, model, type, connection, driver_name,
			current_status, first_seen, last_seen
		FROM devices WHERE id = ?
	`, id)

	rec, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// GetAllDevices returns every known device ordered by id.
func (d *DB) GetAllDevices() ([]*DeviceRecord, error) {
	rows, err := d.conn.Query(`
		SELECT id, name, manufacturer, model, type, connection, driver_name,
			current_status, first_seen, last_seen
		FROM devices ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var out []*DeviceRecord
	for rows.Next() {
		rec, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*DeviceRecord, error) {
	var rec DeviceRecord
	var name, manufacturer, model, typ, conn, driver, status sql.NullString

	err := s.Scan(&rec.ID, &name, &manufacturer, &model, &typ, &conn, &driver,
		&status, &rec.FirstSeen, &rec.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	rec.Name = name.String
	rec.Manufacturer = manufacturer.String
	rec.Model = model.String
	rec.Type = typ.String
	rec.Connection = conn.String
	rec.DriverName = driver.String
	rec.CurrentStatus = status.String
	return &rec, nil
}
