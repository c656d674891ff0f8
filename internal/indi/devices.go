package indi

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	// exposures get this on top of their own duration for download
	exposureSlack  = 60 * time.Second
	coolingTimeout = 10 * time.Minute
	slewTimeout    = 5 * time.Minute
	parkTimeout    = 5 * time.Minute
	focusTimeout   = 2 * time.Minute
	filterTimeout  = time.Minute
)

type Camera struct {
	*Device
}

func (c *Client) Camera(name string) *Camera {
	return &Camera{c.Device(name)}
}

// StartExposure takes one frame and returns once the exposure completes.
func (c *Camera) StartExposure(ctx context.Context, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("exposure %gs: negative duration", seconds)
	}
	timeout := time.Duration(seconds*float64(time.Second)) + exposureSlack
	return c.set(ctx, "CCD_EXPOSURE", map[string]string{"CCD_EXPOSURE_VALUE": num(seconds)}, timeout)
}

func (c *Camera) AbortExposure(ctx context.Context) error {
	return c.set(ctx, "CCD_ABORT_EXPOSURE", map[string]string{"ABORT": On}, 0)
}

func (c *Camera) SetGain(ctx context.Context, gain float64) error {
	return c.set(ctx, "CCD_GAIN", map[string]string{"GAIN": num(gain)}, 0)
}

// SetTemperature sets the cooler target and waits for it to be reached.
func (c *Camera) SetTemperature(ctx context.Context, celsius float64) error {
	return c.set(ctx, "CCD_TEMPERATURE", map[string]string{"CCD_TEMPERATURE_VALUE": num(celsius)}, coolingTimeout)
}

type Mount struct {
	*Device
}

func (c *Client) Mount(name string) *Mount {
	return &Mount{c.Device(name)}
}

// SlewToCoord slews to JNow coordinates, ra in hours and dec in degrees.
func (m *Mount) SlewToCoord(ctx context.Context, ra, dec float64) error {
	if ra < 0 || ra >= 24 {
		return fmt.Errorf("ra %g out of range [0,24)", ra)
	}
	if dec < -90 || dec > 90 {
		return fmt.Errorf("dec %g out of range [-90,90]", dec)
	}
	if err := m.set(ctx, "ON_COORD_SET", map[string]string{"TRACK": On, "SLEW": Off, "SYNC": Off}, 0); err != nil {
		return err
	}
	return m.set(ctx, "EQUATORIAL_EOD_COORD", map[string]string{"RA": num(ra), "DEC": num(dec)}, slewTimeout)
}

func (m *Mount) Park(ctx context.Context) error {
	return m.set(ctx, "TELESCOPE_PARK", map[string]string{"PARK": On, "UNPARK": Off}, parkTimeout)
}

func (m *Mount) Unpark(ctx context.Context) error {
	return m.set(ctx, "TELESCOPE_PARK", map[string]string{"PARK": Off, "UNPARK": On}, 0)
}

func (m *Mount) Abort(ctx context.Context) error {
	return m.set(ctx, "TELESCOPE_ABORT_MOTION", map[string]string{"ABORT": On}, 0)
}

type Focuser struct {
	*Device
}

func (c *Client) Focuser(name string) *Focuser {
	return &Focuser{c.Device(name)}
}

func (f *Focuser) MoveAbsolute(ctx context.Context, position int) error {
	if position < 0 {
		return fmt.Errorf("focuser position %d: negative", position)
	}
	return f.set(ctx, "ABS_FOCUS_POSITION", map[string]string{"FOCUS_ABSOLUTE_POSITION": strconv.Itoa(position)}, focusTimeout)
}

// MoveRelative moves outward for positive steps and inward for negative.
func (f *Focuser) MoveRelative(ctx context.Context, steps int) error {
	if steps == 0 {
		return nil
	}
	dir := map[string]string{"FOCUS_INWARD": Off, "FOCUS_OUTWARD": On}
	if steps < 0 {
		dir = map[string]string{"FOCUS_INWARD": On, "FOCUS_OUTWARD": Off}
		steps = -steps
	}
	if err := f.set(ctx, "FOCUS_MOTION", dir, 0); err != nil {
		return err
	}
	return f.set(ctx, "REL_FOCUS_POSITION", map[string]string{"FOCUS_RELATIVE_POSITION": strconv.Itoa(steps)}, focusTimeout)
}

type FilterWheel struct {
	*Device
}

func (c *Client) FilterWheel(name string) *FilterWheel {
	return &FilterWheel{c.Device(name)}
}

// SetFilter moves to a 1-based slot.
func (w *FilterWheel) SetFilter(ctx context.Context, slot int) error {
	if slot < 1 {
		return fmt.Errorf("filter slot %d: slots start at 1", slot)
	}
	return w.set(ctx, "FILTER_SLOT", map[string]string{"FILTER_SLOT_VALUE": strconv.Itoa(slot)}, filterTimeout)
}
