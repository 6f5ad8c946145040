package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MinPulse is the shortest pulse Pulser will emit. It is also the shortest
// waveform period EnablePeriodic accepts.
const MinPulse = 20 * time.Microsecond

// ErrFrequency is returned by EnablePeriodic for a frequency that is not
// positive or whose period is shorter than MinPulse.
var ErrFrequency = errors.New("periodic: frequency out of range")

// periodFor returns the waveform period for freqHz.
func periodFor(freqHz float64) (time.Duration, error) {
	if !(freqHz > 0) {
		return 0, fmt.Errorf("%w: %v Hz", ErrFrequency, freqHz)
	}
	p := time.Duration(float64(time.Second) / freqHz)
	if p < MinPulse {
		return 0, fmt.Errorf("%w: %v Hz has period %v, below %v", ErrFrequency, freqHz, p, MinPulse)
	}
	return p, nil
}

func clampDuty(duty float64) float64 {
	if duty < 0 {
		return 0
	}
	if duty > 100 {
		return 100
	}
	return duty
}

// Pulser drives an output line with single pulses or a repeating software
// waveform. Starting a pulse or a static level stops any running waveform.
type Pulser struct {
	out   Output
	sleep func(time.Duration)

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewPulser wraps out.
func NewPulser(out Output) *Pulser {
	return &Pulser{out: out, sleep: time.Sleep}
}

// Pulse drives the line high for d, then low. It blocks for d.
// Durations below MinPulse are raised to MinPulse.
func (p *Pulser) Pulse(d time.Duration) error {
	p.DisablePeriodic()
	if d < MinPulse {
		d = MinPulse
	}
	if err := p.out.Set(true); err != nil {
		return fmt.Errorf("pulse high: %w", err)
	}
	p.sleep(d)
	if err := p.out.Set(false); err != nil {
		return fmt.Errorf("pulse low: %w", err)
	}
	return nil
}

// Set holds the line at a static level.
func (p *Pulser) Set(high bool) error {
	p.DisablePeriodic()
	return p.out.Set(high)
}

// EnablePeriodic starts a waveform of freqHz with duty percent high time.
// Duty is clamped to [0, 100]. A running waveform is replaced.
func (p *Pulser) EnablePeriodic(freqHz, duty float64) error {
	period, err := periodFor(freqHz)
	if err != nil {
		return err
	}
	p.DisablePeriodic()

	high := time.Duration(float64(period) * clampDuty(duty) / 100)

	stop := make(chan struct{})
	done := make(chan struct{})
	p.mu.Lock()
	p.stop = stop
	p.done = done
	p.mu.Unlock()

	go p.run(period, high, stop, done)
	return nil
}

// DisablePeriodic stops a running waveform and leaves the line low.
// It is a no-op when no waveform is running.
func (p *Pulser) DisablePeriodic() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Periodic reports whether a waveform is running.
func (p *Pulser) Periodic() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

func (p *Pulser) run(period, high time.Duration, stop, done chan struct{}) {
	defer close(done)
	defer p.out.Set(false)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	wait := func(d time.Duration) bool {
		timer.Reset(d)
		select {
		case <-stop:
			return false
		case <-timer.C:
			return true
		}
	}

	for {
		if high > 0 {
			if err := p.out.Set(true); err != nil {
				return
			}
			if !wait(high) {
				return
			}
		}
		if high < period {
			if err := p.out.Set(false); err != nil {
				return
			}
			if !wait(period - high) {
				return
			}
		}
	}
}
