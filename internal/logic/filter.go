package logic

import "time"

// Default filter parameters.
const (
	DefaultWindowSize          = 4
	DefaultUltrasonicThreshold = 95 * time.Microsecond // 0.95e-4 s
	DefaultPressureThreshold   = 8                     // raw ADC units out of 0-1023
)

// UltrasonicReading is the result of one ultrasonic sample.
type UltrasonicReading struct {
	RoundTrip time.Duration
	// Change is |RoundTrip - previous RoundTrip| in seconds; the value pushed
	// into the window.
	Change float64
	Median float64
	// Over is true when the window median exceeds the threshold.
	Over bool
}

// UltrasonicFilter turns round-trip times into a median-of-window reading.
// The window holds the change in round trip between successive polls, so a
// static reflector never trips the filter while movement does.
type UltrasonicFilter struct {
	threshold float64
	window    *Window
	prev      time.Duration
	primed    bool
}

// NewUltrasonicFilter creates a filter with the given window size and
// median threshold.
func NewUltrasonicFilter(size int, threshold time.Duration) *UltrasonicFilter {
	return &UltrasonicFilter{
		threshold: threshold.Seconds(),
		window:    NewWindow(size),
	}
}

// Push records a round-trip time. The first sample only establishes the
// predecessor and never reports Over.
func (f *UltrasonicFilter) Push(roundTrip time.Duration) UltrasonicReading {
	r := UltrasonicReading{RoundTrip: roundTrip}
	if !f.primed {
		f.prev = roundTrip
		f.primed = true
		return r
	}

	d := roundTrip - f.prev
	if d < 0 {
		d = -d
	}
	f.prev = roundTrip

	r.Change = d.Seconds()
	f.window.Push(r.Change)
	r.Median = f.window.Median()
	r.Over = r.Median > f.threshold
	return r
}

// Window returns the samples currently held, oldest first.
func (f *UltrasonicFilter) Window() []float64 {
	return f.window.Samples()
}

// PressureReading is the result of one pressure sample.
type PressureReading struct {
	Value int
	Delta int
	// Over is true when Delta exceeds the threshold.
	Over bool
}

// PressureFilter compares each sample with its immediate predecessor.
type PressureFilter struct {
	threshold int
	prev      int
	primed    bool
}

// NewPressureFilter creates a filter with the given delta threshold.
func NewPressureFilter(threshold int) *PressureFilter {
	return &PressureFilter{threshold: threshold}
}

// Push records a sample. The predecessor is always replaced, whatever the
// verdict. The first sample has delta 0.
func (f *PressureFilter) Push(v int) PressureReading {
	r := PressureReading{Value: v}
	if f.primed {
		r.Delta = v - f.prev
		if r.Delta < 0 {
			r.Delta = -r.Delta
		}
	}
	f.prev = v
	f.primed = true
	r.Over = r.Delta > f.threshold
	return r
}

// Verdict reports whether a sensor reading counts as a breach in state s.
func Verdict(s State, over bool) bool {
	return s == StateEnabled && over
}
