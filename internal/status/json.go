package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string          `json:"event,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	State          string          `json:"state"`
	Code           string          `json:"code"`
	ModeInput      string          `json:"mode_input,omitempty"`
	Ultrasonic     UltrasonicJSON  `json:"ultrasonic"`
	Pressure       PressureJSON    `json:"pressure"`
	UptimeSeconds  int64           `json:"uptime_seconds"`
	StartTime      string          `json:"start_time"`
	Timestamp      string          `json:"timestamp"`
	Counts         CountsJSON      `json:"transition_counts"`
	LastTransition *TransitionJSON `json:"last_transition,omitempty"`
	Config         ConfigJSON      `json:"config"`
}

// UltrasonicJSON reports the last ultrasonic reading.
type UltrasonicJSON struct {
	RoundTripUs int64   `json:"round_trip_us"`
	MedianS     float64 `json:"median_s"`
}

// PressureJSON reports the last pressure reading.
type PressureJSON struct {
	Value int `json:"value"`
	Delta int `json:"delta"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	Armed     int            `json:"armed"`
	Disarmed  int            `json:"disarmed"`
	Triggered int            `json:"triggered"`
	ByTrigger map[string]int `json:"by_trigger,omitempty"`
}

// TransitionJSON is the JSON representation of the last transition.
type TransitionJSON struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Trigger   string `json:"trigger"`
	Timestamp string `json:"timestamp"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs              int64   `json:"poll_ms"`
	HeartbeatMs         int64   `json:"heartbeat_ms"`
	UltrasonicThreshold float64 `json:"ultrasonic_threshold_s"`
	PressureThreshold   int     `json:"pressure_threshold"`
	WindowSize          int     `json:"window_size"`
	ModeInputLatched    bool    `json:"mode_input_latched"`
	SirenHz             float64 `json:"siren_hz,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:     state,
		Code:      string(snap.Code),
		ModeInput: string(snap.ModeInput),
		Ultrasonic: UltrasonicJSON{
			RoundTripUs: snap.RoundTrip.Microseconds(),
			MedianS:     snap.Median,
		},
		Pressure:      PressureJSON{Value: snap.Pressure, Delta: snap.PressureDelta},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Counts: CountsJSON{
			Armed:     snap.Counts.Armed,
			Disarmed:  snap.Counts.Disarmed,
			Triggered: snap.Counts.Triggered,
		},
		Config: ConfigJSON{
			PollMs:              snap.Config.PollMs,
			HeartbeatMs:         snap.Config.HeartbeatMs,
			UltrasonicThreshold: snap.Config.UltrasonicThreshold.Seconds(),
			PressureThreshold:   snap.Config.PressureThreshold,
			WindowSize:          snap.Config.WindowSize,
			ModeInputLatched:    snap.Config.ModeInputLatched,
			SirenHz:             snap.Config.SirenHz,
		},
	}
	if len(snap.Counts.ByTrigger) > 0 {
		inner.Counts.ByTrigger = make(map[string]int, len(snap.Counts.ByTrigger))
		for k, v := range snap.Counts.ByTrigger {
			inner.Counts.ByTrigger[string(k)] = v
		}
	}
	if tr := snap.LastTransition; tr != nil {
		inner.LastTransition = &TransitionJSON{
			From:      string(tr.From),
			To:        string(tr.To),
			Trigger:   string(tr.Trigger),
			Timestamp: tr.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status printed by --print-state.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status attached to lifecycle
// log entries (STARTUP, HEARTBEAT, SHUTDOWN).
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
