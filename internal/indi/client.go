package indi

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/sigreer/astrogod/internal/logger"
)

// DefaultTimeout bounds a property wait when the caller gives none.
const DefaultTimeout = 30 * time.Second

// Client performs property operations against one control server.
type Client struct {
	transport Transport
	watcher   *Watcher
	clock     clock.Clock
	timeout   time.Duration
	log       zerolog.Logger
}

func NewClient(t Transport, w *Watcher, clk clock.Clock, timeout time.Duration, log zerolog.Logger) *Client {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		transport: t,
		watcher:   w,
		clock:     clk,
		timeout:   timeout,
		log:       logger.WithComponent(log, "indi"),
	}
}

// Get reads the current element values of prop.
func (c *Client) Get(ctx context.Context, prop Property) (map[string]string, error) {
	return c.transport.Get(ctx, prop)
}

// State reads the current state of prop without waiting.
func (c *Client) State(ctx context.Context, prop Property) (State, error) {
	return c.transport.State(ctx, prop)
}

// SetAndWait writes values to prop and blocks until the property completes,
// fails, or timeout passes. A zero timeout uses the client default.
//
// Ok completes. Idle completes only after Busy was seen, so a property that
// was idle before the write is not mistaken for done. Alert returns
// ErrPropertyAlert. On timeout the last observed state is reported in the
// error; nothing about the device is assumed.
func (c *Client) SetAndWait(ctx context.Context, prop Property, values map[string]string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.timeout
	}

	sub := c.watcher.Subscribe(prop)
	defer sub.Close()

	timer := c.clock.NewTimer(timeout)
	defer timer.Stop()

	err := c.watcher.Write(sub, func() error {
		return c.transport.Set(ctx, prop, values)
	})
	if err != nil {
		return err
	}

	var last State
	sawBusy := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C():
			c.log.Warn().Str("property", prop.String()).Str("state", string(last)).Dur("timeout", timeout).Msg("property wait timed out")
			if last == "" {
				return fmt.Errorf("%s after %s: %w", prop, timeout, ErrPropertyTimeout)
			}
			return fmt.Errorf("%s still %s after %s: %w", prop, last, timeout, ErrPropertyTimeout)
		case u := <-sub.C:
			last = u.State
			switch u.State {
			case StateOk:
				return nil
			case StateBusy:
				sawBusy = true
			case StateIdle:
				if sawBusy {
					return nil
				}
			case StateAlert:
				return fmt.Errorf("%s: %w", prop, ErrPropertyAlert)
			}
		}
	}
}

// Device is the base for every device kind.
type Device struct {
	client *Client
	name   string
}

func (c *Client) Device(name string) *Device {
	return &Device{client: c, name: name}
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) prop(name string) Property {
	return Property{Device: d.name, Name: name}
}

func (d *Device) set(ctx context.Context, prop string, values map[string]string, timeout time.Duration) error {
	return d.client.SetAndWait(ctx, d.prop(prop), values, timeout)
}

func (d *Device) Connect(ctx context.Context) error {
	return d.set(ctx, "CONNECTION", map[string]string{"CONNECT": On, "DISCONNECT": Off}, 0)
}

func (d *Device) Disconnect(ctx context.Context) error {
	return d.set(ctx, "CONNECTION", map[string]string{"CONNECT": Off, "DISCONNECT": On}, 0)
}

// IsConnected reads the CONNECTION switch once.
func (d *Device) IsConnected(ctx context.Context) (bool, error) {
	vals, err := d.client.Get(ctx, d.prop("CONNECTION"))
	if err != nil {
		return false, err
	}
	return vals["CONNECT"] == On, nil
}

func num(v float64) string {
	return fmt.Sprintf("%g", v)
}
