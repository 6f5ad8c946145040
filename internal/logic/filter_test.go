package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUltrasonicFilterFirstSamplePrimes(t *testing.T) {
	f := NewUltrasonicFilter(DefaultWindowSize, DefaultUltrasonicThreshold)

	r := f.Push(5 * time.Millisecond)
	assert.False(t, r.Over)
	assert.Equal(t, 5*time.Millisecond, r.RoundTrip)
	assert.Empty(t, f.Window())
}

func TestUltrasonicFilterSuppressesSingleSpike(t *testing.T) {
	f := NewUltrasonicFilter(DefaultWindowSize, DefaultUltrasonicThreshold)
	f.Push(time.Millisecond)
	for i := 0; i < 3; i++ {
		r := f.Push(time.Millisecond)
		assert.False(t, r.Over)
	}

	// One large change among three still samples: median stays at zero.
	r := f.Push(2 * time.Millisecond)
	assert.InDelta(t, 0.001, r.Change, 1e-12)
	assert.InDelta(t, 0, r.Median, 1e-12)
	assert.False(t, r.Over)

	// A second change moves the median above threshold.
	r = f.Push(3 * time.Millisecond)
	assert.InDelta(t, 0.0005, r.Median, 1e-12)
	assert.True(t, r.Over)
	assert.Len(t, f.Window(), 4)
}

func TestUltrasonicFilterThresholdIsStrict(t *testing.T) {
	f := NewUltrasonicFilter(1, 100*time.Microsecond)
	f.Push(0)

	r := f.Push(100 * time.Microsecond)
	assert.False(t, r.Over, "median equal to threshold is not over")

	r = f.Push(201 * time.Microsecond)
	assert.True(t, r.Over)
}

func TestUltrasonicFilterAbsoluteChange(t *testing.T) {
	f := NewUltrasonicFilter(1, DefaultUltrasonicThreshold)
	f.Push(3 * time.Millisecond)

	r := f.Push(time.Millisecond)
	assert.InDelta(t, 0.002, r.Change, 1e-12)
	assert.True(t, r.Over)
}

func TestPressureFilter(t *testing.T) {
	f := NewPressureFilter(DefaultPressureThreshold)

	r := f.Push(500)
	assert.Equal(t, 0, r.Delta, "first sample has no predecessor")
	assert.False(t, r.Over)

	r = f.Push(508)
	assert.Equal(t, 8, r.Delta)
	assert.False(t, r.Over, "delta equal to threshold is not over")

	r = f.Push(499)
	assert.Equal(t, 9, r.Delta)
	assert.True(t, r.Over)

	// Predecessor is replaced even after a verdict.
	r = f.Push(500)
	assert.Equal(t, 1, r.Delta)
	assert.False(t, r.Over)
}

func TestVerdict(t *testing.T) {
	assert.True(t, Verdict(StateEnabled, true))
	assert.False(t, Verdict(StateEnabled, false))
	assert.False(t, Verdict(StateStandby, true))
	assert.False(t, Verdict(StateTriggered, true))
}
