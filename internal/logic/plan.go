package logic

import "time"

// Cue names an audio clip.
type Cue string

const (
	CueNone    Cue = ""
	CueWorking Cue = "working"
	CueAlarm   Cue = "alarm"
)

// Chirp is one beeper pulse followed by a silent gap.
type Chirp struct {
	Length time.Duration
	Gap    time.Duration
}

// Indicators is the LED pattern for a state.
type Indicators struct {
	Red    bool
	Green  bool
	Yellow bool
}

// Plan lists the side effects of entering a state, in execution order:
// Lead chirps, companion code, alarm, indicators, cue, then Tail chirps.
type Plan struct {
	Lead       []Chirp
	Code       Code
	Alarm      bool // true = CueAlarm looping, false = CueAlarm stopped
	Indicators Indicators
	Cue        Cue
	Tail       []Chirp
}

// PlanFor returns the side effects of entering s. It depends only on s.
func PlanFor(s State) Plan {
	switch s {
	case StateEnabled:
		short := Chirp{Length: 100 * time.Millisecond, Gap: 500 * time.Millisecond}
		return Plan{
			Lead:       []Chirp{short, short, short},
			Code:       CodeEnabled,
			Indicators: Indicators{Yellow: true},
			Cue:        CueWorking,
			Tail:       []Chirp{{Length: time.Second}},
		}
	case StateTriggered:
		return Plan{
			Code:       CodeTriggered,
			Alarm:      true,
			Indicators: Indicators{Red: true},
		}
	default:
		return Plan{
			Code:       CodeStandby,
			Indicators: Indicators{Green: true},
			Tail:       []Chirp{{Length: 500 * time.Millisecond}},
		}
	}
}
