package gpio

import (
	"errors"
	"sync"
)

// FakeLine is a test double for Output and Input.
// Reads return scripted levels; writes are recorded.
type FakeLine struct {
	mu sync.Mutex

	// Levels contains scripted values returned by Read.
	// Each call consumes the next value; the last one repeats.
	Levels []bool
	index  int

	writes []bool
	closes int

	// ReadError, if set, will be returned by Read.
	ReadError error

	// SetError, if set, will be returned by Set.
	SetError error
}

// NewFakeLine creates a FakeLine with the given scripted levels.
func NewFakeLine(levels ...bool) *FakeLine {
	return &FakeLine{Levels: levels}
}

// Read returns the next scripted level.
func (f *FakeLine) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Levels) == 0 {
		return false, errors.New("no levels configured")
	}

	v := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return v, nil
}

// Set records the written level.
func (f *FakeLine) Set(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	f.writes = append(f.writes, high)
	return nil
}

// Writes returns a copy of every level written so far.
func (f *FakeLine) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.writes))
	copy(out, f.writes)
	return out
}

// Level returns the last written level, false if none.
func (f *FakeLine) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return false
	}
	return f.writes[len(f.writes)-1]
}

// Close counts the call. Closing more than once is allowed.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes > 0
}

// Reset rewinds the scripted levels and forgets writes.
func (f *FakeLine) Reset() {
	f.mu.Lock()
	f.index = 0
	f.writes = nil
	f.closes = 0
	f.mu.Unlock()
}

// FakePair is a test double for PairOutput and PairInput.
type FakePair struct {
	mu sync.Mutex

	// Values contains scripted values returned by Read; the last one repeats.
	// An empty script reads as both lines low.
	Values [][2]bool
	index  int

	writes [][2]bool
	closes int

	ReadError  error
	WriteError error
}

// NewFakePair creates a FakePair with the given scripted reads.
func NewFakePair(values ...[2]bool) *FakePair {
	return &FakePair{Values: values}
}

// Read returns the next scripted value.
func (f *FakePair) Read() ([2]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return [2]bool{}, f.ReadError
	}
	if len(f.Values) == 0 {
		return [2]bool{}, nil
	}
	v := f.Values[f.index]
	if f.index < len(f.Values)-1 {
		f.index++
	}
	return v, nil
}

// Set replaces the scripted reads with a single held value.
func (f *FakePair) Set(v [2]bool) {
	f.mu.Lock()
	f.Values = [][2]bool{v}
	f.index = 0
	f.mu.Unlock()
}

// Write records both bits as one write.
func (f *FakePair) Write(bits [2]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	f.writes = append(f.writes, bits)
	return nil
}

// Writes returns a copy of every value written so far.
func (f *FakePair) Writes() [][2]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][2]bool, len(f.writes))
	copy(out, f.writes)
	return out
}

// Last returns the last written value.
func (f *FakePair) Last() [2]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return [2]bool{}
	}
	return f.writes[len(f.writes)-1]
}

// Close counts the call.
func (f *FakePair) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePair) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes > 0
}
