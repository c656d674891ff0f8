// Package indi sets and watches device properties on a running indiserver.
//
// Every mutating call follows one pattern: set a property, then wait for its
// state to reach Ok (or fall back to Idle after Busy) before a deadline.
package indi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPropertyTimeout = errors.New("property did not complete before deadline")
	ErrPropertyAlert   = errors.New("property entered alert state")
	ErrBadState        = errors.New("unrecognised property state")
	ErrNoSuchProperty  = errors.New("property not found")
)

// State is the completion state INDI attaches to every property.
type State string

const (
	StateIdle  State = "Idle"
	StateOk    State = "Ok"
	StateBusy  State = "Busy"
	StateAlert State = "Alert"
)

// ParseState accepts the state names printed by indi_getprop.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle":
		return StateIdle, nil
	case "ok":
		return StateOk, nil
	case "busy":
		return StateBusy, nil
	case "alert":
		return StateAlert, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrBadState)
}

// Property addresses one property of one device.
type Property struct {
	Device string
	Name   string
}

func (p Property) String() string {
	return p.Device + "." + p.Name
}

// Switch values.
const (
	On  = "On"
	Off = "Off"
)
