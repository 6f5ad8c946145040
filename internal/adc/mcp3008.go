package adc

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultSpeed is the SPI clock used for the MCP3008 at 3.3 V.
const DefaultSpeed = physic.MegaHertz

// Bus is the part of an SPI connection the converter needs.
type Bus interface {
	Tx(w, r []byte) error
}

// MCP3008 is a Converter backed by an SPI bus.
type MCP3008 struct {
	mu     sync.Mutex
	bus    Bus
	port   io.Closer
	closed bool
}

// Open initialises the host drivers and connects to the named SPI port,
// e.g. "SPI0.1" for chip select 1.
func Open(port string, speed physic.Frequency) (*MCP3008, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", port, err)
	}
	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("connect spi port %q: %w", port, err)
	}
	return New(c, p), nil
}

// New wraps an existing bus. port may be nil.
func New(bus Bus, port io.Closer) *MCP3008 {
	return &MCP3008{bus: bus, port: port}
}

// Convert performs one conversion and returns a value in [0, MaxValue].
func (m *MCP3008) Convert(ch Channel, mode Mode) (int, error) {
	w, err := Request(ch, mode)
	if err != nil {
		return 0, err
	}
	r := make([]byte, len(w))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("convert channel %d: port closed", ch)
	}
	if err := m.bus.Tx(w, r); err != nil {
		return 0, fmt.Errorf("convert channel %d (%s): %w", ch, mode, err)
	}
	return Decode(r)
}

// Close releases the SPI port. Closing twice returns nil.
func (m *MCP3008) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.port == nil {
		return nil
	}
	if err := m.port.Close(); err != nil {
		return fmt.Errorf("close spi port: %w", err)
	}
	return nil
}
