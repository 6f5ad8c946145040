// Package status provides a thread-safe status tracker for the enclosure-alarm daemon.
// It is written by the controller and read by the heartbeat and --print-state.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/enclosure-alarm/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs              int64
	HeartbeatMs         int64
	UltrasonicThreshold time.Duration
	PressureThreshold   int
	WindowSize          int
	ModeInputLatched    bool
	SirenHz             float64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State          logic.State
	Code           logic.Code
	ModeInput      logic.Code
	RoundTrip      time.Duration
	Median         float64
	Pressure       int
	PressureDelta  int
	Counts         logic.Counts
	LastTransition *logic.Transition
	StartTime      time.Time
	Now            time.Time
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker in Standby with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateStandby,
			Code:      logic.CodeStandby,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetState records the current state, its code and the transition counts
// in one update, so readers never see a state paired with a stale code.
func (t *Tracker) SetState(s logic.State, counts logic.Counts, last *logic.Transition) {
	t.mu.Lock()
	t.snap.State = s
	t.snap.Code = logic.Encode(s)
	t.snap.Counts = counts
	if last != nil {
		tr := *last
		t.snap.LastTransition = &tr
	}
	t.mu.Unlock()
}

// SetUltrasonic records the latest ultrasonic reading.
func (t *Tracker) SetUltrasonic(r logic.UltrasonicReading) {
	t.mu.Lock()
	t.snap.RoundTrip = r.RoundTrip
	t.snap.Median = r.Median
	t.mu.Unlock()
}

// SetPressure records the latest pressure reading.
func (t *Tracker) SetPressure(r logic.PressureReading) {
	t.mu.Lock()
	t.snap.Pressure = r.Value
	t.snap.PressureDelta = r.Delta
	t.mu.Unlock()
}

// SetModeInput records the last-seen companion mode input.
func (t *Tracker) SetModeInput(c logic.Code) {
	t.mu.Lock()
	t.snap.ModeInput = c
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts.ByTrigger = copyCounts(t.snap.Counts.ByTrigger)
	if t.snap.LastTransition != nil {
		tr := *t.snap.LastTransition
		s.LastTransition = &tr
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

func copyCounts(m map[logic.Trigger]int) map[logic.Trigger]int {
	if m == nil {
		return nil
	}
	out := make(map[logic.Trigger]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
