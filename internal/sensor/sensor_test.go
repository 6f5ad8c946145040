package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/enclosure-alarm/internal/adc"
	"github.com/sweeney/enclosure-alarm/internal/gpio"
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type fakeTrigger struct {
	widths []time.Duration
	err    error
}

func (f *fakeTrigger) Pulse(d time.Duration) error {
	f.widths = append(f.widths, d)
	return f.err
}

func newTestRanger(echo *gpio.FakeLine, trig *fakeTrigger, step time.Duration) *Ranger {
	r := NewRanger(trig, echo, 0, 0)
	r.now = fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step)
	return r
}

func TestRangerMeasure(t *testing.T) {
	// Clock calls: deadline(0) read-low(1) read-low(2) read-high(3)=start
	// deadline(4) read-high(5) read-high(6) read-low(7)=stop.
	echo := gpio.NewFakeLine(false, false, true, true, true, false)
	trig := &fakeTrigger{}
	r := newTestRanger(echo, trig, 10*time.Microsecond)

	d, err := r.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40*time.Microsecond, d)
	assert.Equal(t, []time.Duration{DefaultPulseWidth}, trig.widths)
}

func TestRangerNoEchoStart(t *testing.T) {
	echo := gpio.NewFakeLine(false)
	r := newTestRanger(echo, &fakeTrigger{}, time.Millisecond)

	_, err := r.Measure(context.Background())
	assert.True(t, errors.Is(err, ErrNoEcho), "got %v", err)
}

func TestRangerEchoNeverEnds(t *testing.T) {
	echo := gpio.NewFakeLine(false, true)
	r := newTestRanger(echo, &fakeTrigger{}, time.Millisecond)

	_, err := r.Measure(context.Background())
	assert.True(t, errors.Is(err, ErrNoEcho), "got %v", err)
}

func TestRangerCancelled(t *testing.T) {
	echo := gpio.NewFakeLine(false)
	r := NewRanger(&fakeTrigger{}, echo, 0, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Measure(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRangerTriggerError(t *testing.T) {
	trig := &fakeTrigger{err: errors.New("line busy")}
	r := newTestRanger(gpio.NewFakeLine(true, false), trig, time.Microsecond)

	_, err := r.Measure(context.Background())
	assert.ErrorIs(t, err, trig.err)
}

func TestRangerReadError(t *testing.T) {
	echo := gpio.NewFakeLine(false)
	echo.ReadError = errors.New("read failed")
	r := newTestRanger(echo, &fakeTrigger{}, time.Microsecond)

	_, err := r.Measure(context.Background())
	assert.ErrorIs(t, err, echo.ReadError)
	assert.False(t, errors.Is(err, ErrNoEcho))
}

func TestNewRangerDefaults(t *testing.T) {
	r := NewRanger(&fakeTrigger{}, gpio.NewFakeLine(), 0, 0)
	assert.Equal(t, DefaultPulseWidth, r.pulseWidth)
	assert.Equal(t, DefaultEchoTimeout, r.timeout)
}

func TestPressureReader(t *testing.T) {
	conv := adc.NewFakeConverter(512)
	p := NewPressureReader(conv, adc.Channel0, adc.Differential)

	v, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, 512, v)
	assert.Equal(t, []adc.Conversion{{Channel: adc.Channel0, Mode: adc.Differential}}, conv.Calls())
}

func TestPressureReaderErrors(t *testing.T) {
	conv := adc.NewFakeConverter(2000)
	p := NewPressureReader(conv, adc.Channel0, adc.SingleEnded)

	_, err := p.Read()
	assert.Error(t, err, "out of range sample")

	conv.Err = errors.New("spi down")
	_, err = p.Read()
	assert.ErrorIs(t, err, conv.Err)
}

func TestSwitchDispatch(t *testing.T) {
	s := NewSwitch("arm")
	var rising, falling int
	s.SetOnRising(func() { rising++ })
	s.SetOnFalling(func() { falling++ })

	s.Handle(gpio.EdgeRising)
	s.Handle(gpio.EdgeRising)
	s.Handle(gpio.EdgeFalling)

	assert.Equal(t, 2, rising)
	assert.Equal(t, 1, falling)
	assert.Equal(t, "arm", s.Name())
}

func TestSwitchWithoutCallbacks(t *testing.T) {
	s := NewSwitch("disarm")
	assert.NotPanics(t, func() {
		s.Handle(gpio.EdgeRising)
		s.Handle(gpio.EdgeFalling)
		s.Handle(gpio.Edge(0))
	})

	called := false
	s.SetOnRising(func() { called = true })
	s.SetOnRising(nil)
	s.Handle(gpio.EdgeRising)
	assert.False(t, called)
}
