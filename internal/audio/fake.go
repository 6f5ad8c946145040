package audio

import (
	"sync"

	"github.com/sweeney/enclosure-alarm/internal/logic"
)

// Action records one call to FakePlayer.
type Action struct {
	Op  string // "play", "loop", "stop"
	Cue logic.Cue
}

// FakePlayer records calls for test assertions.
type FakePlayer struct {
	mu      sync.Mutex
	actions []Action
	looping map[logic.Cue]bool
	closed  bool

	// Err, if set, is returned by Play and Loop.
	Err error
}

// NewFakePlayer creates a FakePlayer.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{looping: make(map[logic.Cue]bool)}
}

func (f *FakePlayer) record(op string, cue logic.Cue) {
	f.actions = append(f.actions, Action{Op: op, Cue: cue})
}

// Play records a single playback.
func (f *FakePlayer) Play(cue logic.Cue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.record("play", cue)
	return nil
}

// Loop records a loop start. A cue already looping is not recorded again.
func (f *FakePlayer) Loop(cue logic.Cue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.looping[cue] {
		return nil
	}
	f.looping[cue] = true
	f.record("loop", cue)
	return nil
}

// Stop records a stop.
func (f *FakePlayer) Stop(cue logic.Cue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.looping, cue)
	f.record("stop", cue)
	return nil
}

// Close marks the player closed.
func (f *FakePlayer) Close() error {
	f.mu.Lock()
	f.closed = true
	f.looping = make(map[logic.Cue]bool)
	f.mu.Unlock()
	return nil
}

// Actions returns a copy of recorded calls.
func (f *FakePlayer) Actions() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Action, len(f.actions))
	copy(out, f.actions)
	return out
}

// Looping reports whether cue is looping.
func (f *FakePlayer) Looping(cue logic.Cue) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.looping[cue]
}

// Closed reports whether Close was called.
func (f *FakePlayer) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
