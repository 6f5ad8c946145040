package adc

import "sync"

// Conversion records one call to FakeConverter.Convert.
type Conversion struct {
	Channel Channel
	Mode    Mode
}

// FakeConverter is a test double that returns scripted samples.
type FakeConverter struct {
	mu sync.Mutex

	// Samples is a queue of scripted values. Once it is empty the last
	// returned value repeats.
	Samples []int
	last    int

	// Err, if set, will be returned by Convert.
	Err error

	calls []Conversion
}

// NewFakeConverter creates a FakeConverter with the given samples.
func NewFakeConverter(samples ...int) *FakeConverter {
	return &FakeConverter{Samples: samples}
}

// Convert returns the next scripted sample.
func (f *FakeConverter) Convert(ch Channel, mode Mode) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Conversion{Channel: ch, Mode: mode})
	if f.Err != nil {
		return 0, f.Err
	}
	if len(f.Samples) > 0 {
		f.last = f.Samples[0]
		f.Samples = f.Samples[1:]
	}
	return f.last, nil
}

// Push queues more samples.
func (f *FakeConverter) Push(samples ...int) {
	f.mu.Lock()
	f.Samples = append(f.Samples, samples...)
	f.mu.Unlock()
}

// Calls returns a copy of recorded conversions.
func (f *FakeConverter) Calls() []Conversion {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Conversion, len(f.calls))
	copy(out, f.calls)
	return out
}
