// Package logic contains the pure rules of the enclosure alarm: the security
// state machine, its wire encoding, and the sensor filters.
// This package has NO external dependencies (no GPIO, SPI, audio, OS, or time.Sleep).
package logic

import (
	"errors"
	"fmt"
	"time"
)

// State is the authoritative security state of the enclosure.
type State string

const (
	StateStandby   State = "STANDBY"
	StateEnabled   State = "ENABLED"
	StateTriggered State = "TRIGGERED"
)

// Code is the 2-bit companion-board wire encoding of a State, written as
// two '0'/'1' characters (first character = first line).
type Code string

const (
	CodeStandby   Code = "00"
	CodeEnabled   Code = "01"
	CodeTriggered Code = "10"
)

// ErrUnknownCode is returned when a 2-bit value does not name a State.
var ErrUnknownCode = errors.New("logic: unknown state code")

// Encode returns the wire code for s.
func Encode(s State) Code {
	switch s {
	case StateEnabled:
		return CodeEnabled
	case StateTriggered:
		return CodeTriggered
	default:
		return CodeStandby
	}
}

// Decode maps a wire code back to its State.
// "11" and anything else return ErrUnknownCode.
func Decode(c Code) (State, error) {
	switch c {
	case CodeStandby:
		return StateStandby, nil
	case CodeEnabled:
		return StateEnabled, nil
	case CodeTriggered:
		return StateTriggered, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCode, string(c))
}

// CodeFromBits builds a Code from two line levels.
func CodeFromBits(bits [2]bool) Code {
	b := []byte("00")
	for i, on := range bits {
		if on {
			b[i] = '1'
		}
	}
	return Code(b)
}

// Bits returns the line levels for c. Characters other than '1' are low.
func (c Code) Bits() [2]bool {
	var bits [2]bool
	for i := 0; i < len(c) && i < 2; i++ {
		bits[i] = c[i] == '1'
	}
	return bits
}

// Trigger names the event that requested a transition.
type Trigger string

const (
	TriggerManualArm    Trigger = "MANUAL_ARM"
	TriggerManualDisarm Trigger = "MANUAL_DISARM"
	TriggerUltrasonic   Trigger = "ULTRASONIC"
	TriggerPressure     Trigger = "PRESSURE"
	TriggerModeInput    Trigger = "MODE_INPUT"
)

// Request asks the machine for a transition.
// Mode is only meaningful for TriggerModeInput.
type Request struct {
	Trigger Trigger
	Mode    Code
}

// Transition is an accepted state change.
type Transition struct {
	Timestamp time.Time
	From      State
	To        State
	Trigger   Trigger
}

// Counts tracks accepted transitions since startup.
type Counts struct {
	Armed     int
	Disarmed  int
	Triggered int

	ByTrigger map[Trigger]int
}

// HeartbeatData contains information for a heartbeat log entry.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     State
	Counts    Counts
}
