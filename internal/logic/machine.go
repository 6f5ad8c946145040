package logic

import "time"

// Machine holds the security state and applies the transition table.
// It is not safe for concurrent use; the controller serializes access.
type Machine struct {
	state         State
	startTime     time.Time
	lastHeartbeat time.Time
	counts        Counts
}

// NewMachine creates a machine in Standby.
// The startTime is used for calculating uptime in heartbeat data.
func NewMachine(startTime time.Time) *Machine {
	return &Machine{
		state:         StateStandby,
		startTime:     startTime,
		lastHeartbeat: startTime,
		counts:        Counts{ByTrigger: make(map[Trigger]int)},
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Code returns the wire code of the current state.
func (m *Machine) Code() Code {
	return Encode(m.state)
}

// Apply evaluates req against the transition table. It returns the
// transition and true when the state changed. A request that would leave
// the state unchanged, or that fails its guard, returns false.
// A mode request carrying an unknown code returns ErrUnknownCode and
// leaves the state unchanged.
func (m *Machine) Apply(req Request, now time.Time) (Transition, bool, error) {
	to, err := Next(m.state, req)
	if err != nil {
		return Transition{}, false, err
	}
	if to == m.state {
		return Transition{}, false, nil
	}

	tr := Transition{
		Timestamp: now,
		From:      m.state,
		To:        to,
		Trigger:   req.Trigger,
	}
	m.state = to

	switch to {
	case StateStandby:
		m.counts.Disarmed++
	case StateEnabled:
		m.counts.Armed++
	case StateTriggered:
		m.counts.Triggered++
	}
	m.counts.ByTrigger[req.Trigger]++

	return tr, true, nil
}

// Next returns the state that req leads to from cur. It returns cur when
// the request is not accepted.
func Next(cur State, req Request) (State, error) {
	switch req.Trigger {
	case TriggerManualArm:
		if cur == StateStandby {
			return StateEnabled, nil
		}

	case TriggerManualDisarm:
		if cur != StateStandby {
			return StateStandby, nil
		}

	case TriggerUltrasonic, TriggerPressure:
		// Sensors only count while armed.
		if cur == StateEnabled {
			return StateTriggered, nil
		}

	case TriggerModeInput:
		want, err := Decode(req.Mode)
		if err != nil {
			return cur, err
		}
		switch {
		case want == cur:
		case want == StateStandby:
			return StateStandby, nil
		case want == StateEnabled && cur == StateStandby:
			return StateEnabled, nil
		case want == StateTriggered && cur == StateEnabled:
			return StateTriggered, nil
		}
	}
	return cur, nil
}

// CountsSnapshot returns a copy of the transition counts.
func (m *Machine) CountsSnapshot() Counts {
	c := m.counts
	c.ByTrigger = make(map[Trigger]int, len(m.counts.ByTrigger))
	for k, v := range m.counts.ByTrigger {
		c.ByTrigger[k] = v
	}
	return c
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (m *Machine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		State:     m.state,
		Counts:    m.CountsSnapshot(),
	}
}
