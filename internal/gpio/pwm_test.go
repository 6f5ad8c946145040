package gpio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	periphgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

type pwmCall struct {
	duty periphgpio.Duty
	freq physic.Frequency
}

type fakePWMPin struct {
	mu     sync.Mutex
	levels []periphgpio.Level
	pwm    []pwmCall
	pwmErr error
}

func (p *fakePWMPin) Out(l periphgpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels = append(p.levels, l)
	return nil
}

func (p *fakePWMPin) PWM(duty periphgpio.Duty, f physic.Frequency) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pwmErr != nil {
		return p.pwmErr
	}
	p.pwm = append(p.pwm, pwmCall{duty: duty, freq: f})
	return nil
}

func newHardwareBeeper(pin *fakePWMPin) *HardwareBeeper {
	h := NewHardwareBeeper(pin)
	h.pulser.sleep = func(time.Duration) {}
	return h
}

func TestHardwareBeeperSiren(t *testing.T) {
	pin := &fakePWMPin{}
	h := newHardwareBeeper(pin)

	require.NoError(t, h.EnablePeriodic(2000, 50))
	assert.True(t, h.Periodic())
	require.Len(t, pin.pwm, 1)
	assert.Equal(t, periphgpio.DutyHalf, pin.pwm[0].duty)
	assert.Equal(t, 2*physic.KiloHertz, pin.pwm[0].freq)

	h.DisablePeriodic()
	assert.False(t, h.Periodic())
	assert.Equal(t, []periphgpio.Level{periphgpio.Low}, pin.levels)
}

func TestHardwareBeeperPulseStopsSiren(t *testing.T) {
	pin := &fakePWMPin{}
	h := newHardwareBeeper(pin)

	require.NoError(t, h.EnablePeriodic(2000, 50))
	require.NoError(t, h.Pulse(100*time.Millisecond))

	assert.False(t, h.Periodic())
	assert.Equal(t, []periphgpio.Level{periphgpio.Low, periphgpio.High, periphgpio.Low}, pin.levels)
}

func TestHardwareBeeperRejectsFrequency(t *testing.T) {
	pin := &fakePWMPin{}
	h := newHardwareBeeper(pin)

	assert.ErrorIs(t, h.EnablePeriodic(2e9, 50), ErrFrequency)
	assert.ErrorIs(t, h.EnablePeriodic(0, 50), ErrFrequency)
	assert.False(t, h.Periodic())
	assert.Empty(t, pin.pwm)
}

func TestHardwareBeeperPWMError(t *testing.T) {
	pin := &fakePWMPin{pwmErr: errors.New("pin has no pwm function")}
	h := newHardwareBeeper(pin)

	assert.Error(t, h.EnablePeriodic(2000, 50))
	assert.False(t, h.Periodic())

	h.DisablePeriodic()
	assert.Empty(t, pin.levels, "nothing to stop")
}

func TestHardwareBeeperDutyClamped(t *testing.T) {
	pin := &fakePWMPin{}
	h := newHardwareBeeper(pin)

	require.NoError(t, h.EnablePeriodic(440, 150))
	assert.Equal(t, periphgpio.DutyMax, pin.pwm[0].duty)
}
