package logic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, s := range []State{StateStandby, StateEnabled, StateTriggered} {
		got, err := Decode(Encode(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestEncodeValues(t *testing.T) {
	assert.Equal(t, Code("00"), Encode(StateStandby))
	assert.Equal(t, Code("01"), Encode(StateEnabled))
	assert.Equal(t, Code("10"), Encode(StateTriggered))
}

func TestDecodeUnknown(t *testing.T) {
	for _, c := range []Code{"11", "", "0", "012", "ab"} {
		assert.NotPanics(t, func() {
			_, err := Decode(c)
			assert.True(t, errors.Is(err, ErrUnknownCode), "code %q", c)
		})
	}
}

func TestCodeBits(t *testing.T) {
	tests := []struct {
		code Code
		bits [2]bool
	}{
		{CodeStandby, [2]bool{false, false}},
		{CodeEnabled, [2]bool{false, true}},
		{CodeTriggered, [2]bool{true, false}},
		{"11", [2]bool{true, true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.bits, tt.code.Bits(), "bits of %q", tt.code)
		assert.Equal(t, tt.code, CodeFromBits(tt.bits))
	}
}

func TestPlanForIndicators(t *testing.T) {
	assert.Equal(t, Indicators{Green: true}, PlanFor(StateStandby).Indicators)
	assert.Equal(t, Indicators{Yellow: true}, PlanFor(StateEnabled).Indicators)
	assert.Equal(t, Indicators{Red: true}, PlanFor(StateTriggered).Indicators)
}

func TestPlanForMatchesEncoding(t *testing.T) {
	for _, s := range []State{StateStandby, StateEnabled, StateTriggered} {
		p := PlanFor(s)
		assert.Equal(t, Encode(s), p.Code)
		assert.Equal(t, s == StateTriggered, p.Alarm)
	}
}

func TestPlanForChirps(t *testing.T) {
	en := PlanFor(StateEnabled)
	assert.Len(t, en.Lead, 3)
	assert.Equal(t, CueWorking, en.Cue)
	require.Len(t, en.Tail, 1)
	assert.Greater(t, en.Tail[0].Length, en.Lead[0].Length)

	sb := PlanFor(StateStandby)
	assert.Empty(t, sb.Lead)
	assert.Len(t, sb.Tail, 1)

	tr := PlanFor(StateTriggered)
	assert.Empty(t, tr.Lead)
	assert.Empty(t, tr.Tail)
}
