//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "enclosure-alarm"

// Chip claims lines on a Linux GPIO character device and remembers every
// claim, so that Close releases all of them on any exit path.
type Chip struct {
	mu      sync.Mutex
	chip    *gpiocdev.Chip
	claimed map[int]bool
	claims  []io.Closer
	closed  bool
}

// NewChip opens the named chip, e.g. "gpiochip0".
func NewChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{
		chip:    chip,
		claimed: make(map[int]bool),
	}, nil
}

// Output claims pin as an output driven to initial.
func (c *Chip) Output(pin int, initial bool) (*Line, error) {
	l, err := c.requestLine(pin, gpiocdev.AsOutput(level(initial)))
	if err != nil {
		return nil, err
	}
	return c.trackLine(&Line{line: l, output: true}), nil
}

// Input claims pin as an input with pull-down.
func (c *Chip) Input(pin int) (*Line, error) {
	l, err := c.requestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, err
	}
	return c.trackLine(&Line{line: l}), nil
}

// WatchEdges claims pin as an input and calls h for every rising and falling
// edge. A debounce of zero disables kernel debouncing.
func (c *Chip) WatchEdges(pin int, debounce time.Duration, h EdgeHandler) (*Line, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			switch evt.Type {
			case gpiocdev.LineEventRisingEdge:
				h(EdgeRising)
			case gpiocdev.LineEventFallingEdge:
				h(EdgeFalling)
			}
		}),
	}
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}
	l, err := c.requestLine(pin, opts...)
	if err != nil {
		return nil, err
	}
	return c.trackLine(&Line{line: l}), nil
}

// PairOutput claims two pins as outputs written together.
func (c *Chip) PairOutput(pins [2]int, initial [2]bool) (*Pair, error) {
	ls, err := c.requestLines(pins, gpiocdev.AsOutput(level(initial[0]), level(initial[1])))
	if err != nil {
		return nil, err
	}
	return c.trackPair(&Pair{lines: ls, output: true}), nil
}

// PairInput claims two pins as inputs sampled together.
func (c *Chip) PairInput(pins [2]int) (*Pair, error) {
	ls, err := c.requestLines(pins, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, err
	}
	return c.trackPair(&Pair{lines: ls}), nil
}

func (c *Chip) requestLine(pin int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	if err := c.reserve(pin); err != nil {
		return nil, err
	}
	l, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		c.unreserve(pin)
		return nil, claimError(pin, err)
	}
	return l, nil
}

func (c *Chip) requestLines(pins [2]int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Lines, error) {
	if err := c.reserve(pins[0]); err != nil {
		return nil, err
	}
	if err := c.reserve(pins[1]); err != nil {
		c.unreserve(pins[0])
		return nil, err
	}
	ls, err := c.chip.RequestLines(pins[:], opts...)
	if err != nil {
		c.unreserve(pins[0])
		c.unreserve(pins[1])
		return nil, claimError(pins[0], err)
	}
	return ls, nil
}

func (c *Chip) reserve(pin int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("gpio: chip closed")
	}
	if c.claimed[pin] {
		return fmt.Errorf("%w: pin %d", ErrLineBusy, pin)
	}
	c.claimed[pin] = true
	return nil
}

func (c *Chip) unreserve(pin int) {
	c.mu.Lock()
	delete(c.claimed, pin)
	c.mu.Unlock()
}

func (c *Chip) trackLine(l *Line) *Line {
	c.mu.Lock()
	c.claims = append(c.claims, l)
	c.mu.Unlock()
	return l
}

func (c *Chip) trackPair(p *Pair) *Pair {
	c.mu.Lock()
	c.claims = append(c.claims, p)
	c.mu.Unlock()
	return p
}

// Close releases every claimed line, newest first, then the chip.
// Outputs are returned to input with pull-down (matching Pi boot defaults)
// before release. Calling Close more than once returns nil.
func (c *Chip) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	claims := c.claims
	c.claims = nil
	c.mu.Unlock()

	var errs []error
	for i := len(claims) - 1; i >= 0; i-- {
		if err := claims[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	return errors.Join(errs...)
}

func release(cl io.Closer) error {
	switch l := cl.(type) {
	case *gpiocdev.Line:
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil && !errors.Is(err, gpiocdev.ErrClosed) {
			return fmt.Errorf("reconfigure line %d: %w", l.Offset(), err)
		}
	case *gpiocdev.Lines:
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil && !errors.Is(err, gpiocdev.ErrClosed) {
			return fmt.Errorf("reconfigure lines %v: %w", l.Offsets(), err)
		}
	}
	if err := cl.Close(); err != nil && !errors.Is(err, gpiocdev.ErrClosed) {
		return fmt.Errorf("release line: %w", err)
	}
	return nil
}

func claimError(pin int, err error) error {
	if errors.Is(err, syscall.EBUSY) {
		return fmt.Errorf("%w: pin %d: %v", ErrLineBusy, pin, err)
	}
	return fmt.Errorf("request pin %d: %w", pin, err)
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}

// Line is a single claimed line.
type Line struct {
	mu     sync.Mutex
	line   *gpiocdev.Line
	output bool
	closed bool
}

// Set drives an output line.
func (l *Line) Set(high bool) error {
	if !l.output {
		return fmt.Errorf("set line %d: not an output", l.line.Offset())
	}
	if err := l.line.SetValue(level(high)); err != nil {
		return fmt.Errorf("set line %d: %w", l.line.Offset(), err)
	}
	return nil
}

// Read returns the line level.
func (l *Line) Read() (bool, error) {
	v, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read line %d: %w", l.line.Offset(), err)
	}
	return v == 1, nil
}

// Close releases the line. Closing twice returns nil.
func (l *Line) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return release(l.line)
}

// Pair is two lines claimed in one request.
type Pair struct {
	mu     sync.Mutex
	lines  *gpiocdev.Lines
	output bool
	closed bool
}

// Write sets both lines in a single request.
func (p *Pair) Write(bits [2]bool) error {
	if !p.output {
		return errors.New("write pair: not an output")
	}
	if err := p.lines.SetValues([]int{level(bits[0]), level(bits[1])}); err != nil {
		return fmt.Errorf("write lines %v: %w", p.lines.Offsets(), err)
	}
	return nil
}

// Read samples both lines in a single request.
func (p *Pair) Read() ([2]bool, error) {
	vals := make([]int, 2)
	if err := p.lines.Values(vals); err != nil {
		return [2]bool{}, fmt.Errorf("read lines %v: %w", p.lines.Offsets(), err)
	}
	return [2]bool{vals[0] == 1, vals[1] == 1}, nil
}

// Close releases both lines. Closing twice returns nil.
func (p *Pair) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return release(p.lines)
}
