package sensor

import (
	"fmt"

	"github.com/sweeney/enclosure-alarm/internal/adc"
)

// PressureReader samples the pressure pad through one ADC input.
type PressureReader struct {
	conv adc.Converter
	ch   adc.Channel
	mode adc.Mode
}

// NewPressureReader reads ch in mode from conv.
func NewPressureReader(conv adc.Converter, ch adc.Channel, mode adc.Mode) *PressureReader {
	return &PressureReader{conv: conv, ch: ch, mode: mode}
}

// Read returns one sample in [0, adc.MaxValue].
func (p *PressureReader) Read() (int, error) {
	v, err := p.conv.Convert(p.ch, p.mode)
	if err != nil {
		return 0, fmt.Errorf("read pressure: %w", err)
	}
	if v < 0 || v > adc.MaxValue {
		return 0, fmt.Errorf("read pressure: sample %d out of range", v)
	}
	return v, nil
}
