package gpio

import (
	"fmt"
	"sync"
	"time"

	periphgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PWMPin is the part of a periph pin a HardwareBeeper drives.
type PWMPin interface {
	Out(l periphgpio.Level) error
	PWM(duty periphgpio.Duty, f physic.Frequency) error
}

// HardwareBeeper drives a beeper pin through periph. Chirps are plain level
// writes and the siren runs on the SoC's PWM block, so no goroutine toggles
// the line. The pin must not also be claimed through a Chip.
type HardwareBeeper struct {
	pin    PWMPin
	pulser *Pulser

	mu      sync.Mutex
	running bool
}

// OpenHardwareBeeper initialises the host drivers and opens BCM pin bcm.
// The pin is driven low.
func OpenHardwareBeeper(bcm int) (*HardwareBeeper, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", bcm)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %s not found", name)
	}
	if err := p.Out(periphgpio.Low); err != nil {
		return nil, fmt.Errorf("drive %s low: %w", name, err)
	}
	return NewHardwareBeeper(p), nil
}

// NewHardwareBeeper wraps pin.
func NewHardwareBeeper(pin PWMPin) *HardwareBeeper {
	return &HardwareBeeper{pin: pin, pulser: NewPulser(levelOutput{pin})}
}

// Pulse stops the siren, then drives the pin high for d.
func (h *HardwareBeeper) Pulse(d time.Duration) error {
	h.DisablePeriodic()
	return h.pulser.Pulse(d)
}

// EnablePeriodic starts the hardware waveform. It accepts the same
// frequencies as Pulser.EnablePeriodic.
func (h *HardwareBeeper) EnablePeriodic(freqHz, duty float64) error {
	if _, err := periodFor(freqHz); err != nil {
		return err
	}
	d := periphgpio.Duty(clampDuty(duty) / 100 * float64(periphgpio.DutyMax))
	f := physic.Frequency(freqHz * float64(physic.Hertz))

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.pin.PWM(d, f); err != nil {
		return fmt.Errorf("start pwm at %v: %w", f, err)
	}
	h.running = true
	return nil
}

// DisablePeriodic stops the hardware waveform and leaves the pin low.
func (h *HardwareBeeper) DisablePeriodic() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	h.pin.Out(periphgpio.Low)
}

// Periodic reports whether the hardware waveform is running.
func (h *HardwareBeeper) Periodic() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// levelOutput adapts a periph pin to Output for chirps.
type levelOutput struct {
	pin PWMPin
}

func (o levelOutput) Set(high bool) error {
	return o.pin.Out(periphgpio.Level(high))
}

func (o levelOutput) Close() error { return nil }
