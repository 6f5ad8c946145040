//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// NewChip returns an error on non-Linux platforms.
func NewChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

func (c *Chip) Output(pin int, initial bool) (*Line, error) { return nil, errUnsupported }
func (c *Chip) Input(pin int) (*Line, error) { return nil, errUnsupported }
func (c *Chip) PairOutput(pins [2]int, initial [2]bool) (*Pair, error) {
	return nil, errUnsupported
}
func (c *Chip) PairInput(pins [2]int) (*Pair, error) { return nil, errUnsupported }
func (c *Chip) WatchEdges(pin int, debounce time.Duration, h EdgeHandler) (*Line, error) {
	return nil, errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (c *Chip) Close() error { return nil }

// Line is not available on non-Linux platforms.
type Line struct{}

func (l *Line) Set(high bool) error { return errUnsupported }
func (l *Line) Read() (bool, error) { return false, errUnsupported }
func (l *Line) Close() error { return nil }

// Pair is not available on non-Linux platforms.
type Pair struct{}

func (p *Pair) Write(bits [2]bool) error { return errUnsupported }
func (p *Pair) Read() ([2]bool, error) { return [2]bool{}, errUnsupported }
func (p *Pair) Close() error { return nil }
