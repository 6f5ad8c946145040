// Package adc reads quantized samples from an MCP3008 analog-to-digital
// converter over SPI.
package adc

import (
	"errors"
	"fmt"
)

// MaxValue is the largest 10-bit sample.
const MaxValue = 1023

// Channel selects an input. In Differential mode it selects the pairing
// whose positive input is the channel, as listed in the MCP3008 datasheet:
// 0 = CH0+/CH1-, 1 = CH1+/CH0-, 2 = CH2+/CH3-, ... 7 = CH7+/CH6-.
type Channel uint8

const (
	Channel0 Channel = iota
	Channel1
	Channel2
	Channel3
	Channel4
	Channel5
	Channel6
	Channel7
)

// Mode selects single-ended or differential conversion.
type Mode uint8

const (
	SingleEnded Mode = iota
	Differential
)

func (m Mode) String() string {
	if m == Differential {
		return "differential"
	}
	return "single-ended"
}

// ErrChannel is returned for a channel outside 0-7.
var ErrChannel = errors.New("adc: channel out of range")

// Converter performs one conversion.
type Converter interface {
	Convert(ch Channel, mode Mode) (int, error)
}

// Request returns the three bytes clocked out for one conversion:
// start bit, then SGL/DIFF and the channel bits in the high nibble.
func Request(ch Channel, mode Mode) ([]byte, error) {
	if ch > Channel7 {
		return nil, fmt.Errorf("%w: %d", ErrChannel, ch)
	}
	ctrl := byte(ch) << 4
	if mode == SingleEnded {
		ctrl |= 0x80
	}
	return []byte{0x01, ctrl, 0x00}, nil
}

// Decode extracts the 10-bit sample from a three-byte response.
func Decode(rx []byte) (int, error) {
	if len(rx) != 3 {
		return 0, fmt.Errorf("adc: response length %d, want 3", len(rx))
	}
	return int(rx[1]&0x03)<<8 | int(rx[2]), nil
}
