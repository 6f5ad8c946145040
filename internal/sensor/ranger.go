// Package sensor reads the enclosure's physical inputs: the ultrasonic
// ranger, the pressure pad and the momentary switches.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/enclosure-alarm/internal/gpio"
)

// ErrNoEcho is returned when the echo line does not change within the
// timeout.
var ErrNoEcho = errors.New("sensor: no echo")

// Defaults for an HC-SR04 class ranger.
const (
	DefaultPulseWidth  = 100 * time.Microsecond
	DefaultEchoTimeout = 50 * time.Millisecond
)

// Trigger starts a measurement.
type Trigger interface {
	Pulse(d time.Duration) error
}

// Ranger times the echo of an ultrasonic ranger.
type Ranger struct {
	trigger    Trigger
	echo       gpio.Input
	pulseWidth time.Duration
	timeout    time.Duration
	now        func() time.Time
}

// NewRanger creates a ranger. Zero durations select the defaults.
func NewRanger(trigger Trigger, echo gpio.Input, pulseWidth, timeout time.Duration) *Ranger {
	if pulseWidth <= 0 {
		pulseWidth = DefaultPulseWidth
	}
	if timeout <= 0 {
		timeout = DefaultEchoTimeout
	}
	return &Ranger{
		trigger:    trigger,
		echo:       echo,
		pulseWidth: pulseWidth,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Measure pulses the trigger and returns the echo round trip: the time the
// echo line stays high. Each of the two waits is bounded by the timeout
// and returns ErrNoEcho when it expires.
func (r *Ranger) Measure(ctx context.Context) (time.Duration, error) {
	if err := r.trigger.Pulse(r.pulseWidth); err != nil {
		return 0, fmt.Errorf("trigger: %w", err)
	}
	start, err := r.await(ctx, true)
	if err != nil {
		return 0, err
	}
	stop, err := r.await(ctx, false)
	if err != nil {
		return 0, err
	}
	return stop.Sub(start), nil
}

// await spins on the echo line until it reads level.
func (r *Ranger) await(ctx context.Context, level bool) (time.Time, error) {
	deadline := r.now().Add(r.timeout)
	for i := 0; ; i++ {
		v, err := r.echo.Read()
		if err != nil {
			return time.Time{}, fmt.Errorf("read echo: %w", err)
		}
		t := r.now()
		if v == level {
			return t, nil
		}
		if t.After(deadline) {
			return time.Time{}, fmt.Errorf("%w: echo still %s after %v", ErrNoEcho, levelName(!level), r.timeout)
		}
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return time.Time{}, err
			}
		}
	}
}

func levelName(high bool) string {
	if high {
		return "high"
	}
	return "low"
}
