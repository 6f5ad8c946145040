// Package gpio provides digital line access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// ErrLineBusy is returned when a line is already claimed by this process
// or another consumer.
var ErrLineBusy = errors.New("gpio: line already claimed")

// Output drives a single line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error

	// Close releases the line. Closing twice returns nil.
	Close() error
}

// Input reads a single line.
type Input interface {
	// Read returns the line level, true = high.
	Read() (bool, error)

	// Close releases the line. Closing twice returns nil.
	Close() error
}

// PairOutput drives two lines in one request, so an observer never sees a
// half-written value.
type PairOutput interface {
	Write(bits [2]bool) error
	Close() error
}

// PairInput samples two lines in one request.
type PairInput interface {
	Read() ([2]bool, error)
	Close() error
}

// Edge is the direction of a line transition.
type Edge int

const (
	EdgeRising Edge = iota + 1
	EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	}
	return "unknown"
}

// EdgeHandler is called once per detected edge, on a goroutine owned by the
// line implementation.
type EdgeHandler func(Edge)

// Pin definitions (BCM numbering).
const (
	DefaultPinRed      = 13
	DefaultPinGreen    = 26
	DefaultPinYellow   = 19
	DefaultPinBeeper   = 12
	DefaultPinTrigger  = 21
	DefaultPinEcho     = 25
	DefaultPinSwitchA  = 20 // arm
	DefaultPinSwitchB  = 16 // disarm
	DefaultPinModeIn1  = 27
	DefaultPinModeIn2  = 22
	DefaultPinModeOut1 = 23
	DefaultPinModeOut2 = 24
)
