package sensor

import (
	"sync"

	"github.com/sweeney/enclosure-alarm/internal/gpio"
)

// Switch dispatches the edges of a momentary input to rising and falling
// callbacks. Callbacks run on the caller's goroutine and must not block.
type Switch struct {
	name string

	mu        sync.Mutex
	onRising  func()
	onFalling func()
}

// NewSwitch creates a switch without callbacks.
func NewSwitch(name string) *Switch {
	return &Switch{name: name}
}

// Name returns the switch name.
func (s *Switch) Name() string {
	return s.name
}

// SetOnRising sets the rising-edge callback; nil clears it.
func (s *Switch) SetOnRising(fn func()) {
	s.mu.Lock()
	s.onRising = fn
	s.mu.Unlock()
}

// SetOnFalling sets the falling-edge callback; nil clears it.
func (s *Switch) SetOnFalling(fn func()) {
	s.mu.Lock()
	s.onFalling = fn
	s.mu.Unlock()
}

// Handle is a gpio.EdgeHandler.
func (s *Switch) Handle(e gpio.Edge) {
	s.mu.Lock()
	var fn func()
	switch e {
	case gpio.EdgeRising:
		fn = s.onRising
	case gpio.EdgeFalling:
		fn = s.onFalling
	}
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}
