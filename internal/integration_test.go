package internal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/enclosure-alarm/internal/adc"
	"github.com/sweeney/enclosure-alarm/internal/audio"
	"github.com/sweeney/enclosure-alarm/internal/controller"
	"github.com/sweeney/enclosure-alarm/internal/gpio"
	"github.com/sweeney/enclosure-alarm/internal/logic"
	"github.com/sweeney/enclosure-alarm/internal/sensor"
	"github.com/sweeney/enclosure-alarm/internal/status"
)

// Arming waits through three 500ms chirp gaps in real time.
const settle = 5 * time.Second

// squareEcho reads high then low alternately, so every measurement sees an
// immediate echo of near-zero length.
type squareEcho struct {
	mu sync.Mutex
	n  int
}

func (e *squareEcho) Read() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.n++
	return e.n%2 == 1, nil
}

func (e *squareEcho) Close() error { return nil }

// quietBeeper records chirps without holding the line for their length.
type quietBeeper struct {
	mu     sync.Mutex
	pulses int
}

func (b *quietBeeper) Pulse(time.Duration) error {
	b.mu.Lock()
	b.pulses++
	b.mu.Unlock()
	return nil
}

func (b *quietBeeper) EnablePeriodic(float64, float64) error { return nil }
func (b *quietBeeper) DisablePeriodic() {}

type enclosure struct {
	ctrl    *controller.Controller
	tracker *status.Tracker
	conv    *adc.FakeConverter
	mode    *gpio.FakePair
	link    *gpio.FakePair
	red     *gpio.FakeLine
	green   *gpio.FakeLine
	yellow  *gpio.FakeLine
	audio   *audio.FakePlayer
	arm     *sensor.Switch
	disarm  *sensor.Switch

	cancel context.CancelFunc
	done   chan error
}

// startEnclosure wires the controller to real sensor drivers over fake
// lines and runs it until the test ends.
func startEnclosure(t *testing.T, latched bool) *enclosure {
	t.Helper()
	e := &enclosure{
		tracker: status.NewTracker(time.Now(), status.Config{}),
		conv:    adc.NewFakeConverter(500),
		mode:    gpio.NewFakePair(),
		link:    gpio.NewFakePair(),
		red:     gpio.NewFakeLine(),
		green:   gpio.NewFakeLine(),
		yellow:  gpio.NewFakeLine(),
		audio:   audio.NewFakePlayer(),
		arm:     sensor.NewSwitch("arm"),
		disarm:  sensor.NewSwitch("disarm"),
		done:    make(chan error, 1),
	}
	trigger := gpio.NewPulser(gpio.NewFakeLine())
	opts := controller.DefaultOptions()
	opts.Poll = 5 * time.Millisecond
	opts.ModeInputLatched = latched

	e.ctrl = controller.New(controller.Deps{
		Beeper:     &quietBeeper{},
		Ranger:     sensor.NewRanger(trigger, &squareEcho{}, 0, 0),
		Pressure:   sensor.NewPressureReader(e.conv, adc.Channel0, adc.Differential),
		Indicators: controller.Indicators{Red: e.red, Green: e.green, Yellow: e.yellow},
		Link:       e.link,
		ModeInput:  e.mode,
		Audio:      e.audio,
		Tracker:    e.tracker,
		Log:        zap.NewNop(),
	}, opts)
	e.arm.SetOnRising(func() { e.ctrl.Arm() })
	e.disarm.SetOnRising(func() { e.ctrl.Disarm() })

	e.ctrl.Start()
	e.ctrl.Prime(context.Background())
	e.ctrl.CheckModeInput() // latch the idle companion input

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go func() { e.done <- e.ctrl.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-e.done:
			assert.NoError(t, err)
		case <-time.After(settle):
			t.Error("controller did not stop")
		}
	})
	return e
}

func (e *enclosure) waitState(t *testing.T, want logic.State) {
	t.Helper()
	require.Eventually(t, func() bool { return e.tracker.Snapshot().State == want },
		settle, time.Millisecond, "state never became %s", want)
}

func (e *enclosure) linkHistory() []logic.Code {
	var codes []logic.Code
	for _, w := range e.link.Writes() {
		codes = append(codes, logic.CodeFromBits(w))
	}
	return codes
}

func TestIntegrationArmTriggerDisarm(t *testing.T) {
	e := startEnclosure(t, true)

	e.arm.Handle(gpio.EdgeRising)
	e.waitState(t, logic.StateEnabled)
	assert.True(t, e.yellow.Level())

	// Someone leans on the pad.
	e.conv.Push(900)
	e.waitState(t, logic.StateTriggered)
	assert.True(t, e.red.Level())
	assert.Eventually(t, func() bool { return e.audio.Looping(logic.CueAlarm) }, settle, time.Millisecond)

	e.disarm.Handle(gpio.EdgeRising)
	e.waitState(t, logic.StateStandby)
	assert.True(t, e.green.Level())
	assert.False(t, e.red.Level())
	assert.False(t, e.audio.Looping(logic.CueAlarm))

	assert.Equal(t, []logic.Code{"00", "01", "10", "00"}, e.linkHistory())

	snap := e.tracker.Snapshot()
	assert.Equal(t, 1, snap.Counts.Armed)
	assert.Equal(t, 1, snap.Counts.Triggered)
	assert.Equal(t, 1, snap.Counts.Disarmed)
	assert.Equal(t, 1, snap.Counts.ByTrigger[logic.TriggerPressure])
}

func TestIntegrationStaticEchoNeverTriggers(t *testing.T) {
	e := startEnclosure(t, true)

	e.arm.Handle(gpio.EdgeRising)
	e.waitState(t, logic.StateEnabled)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, logic.StateEnabled, e.tracker.Snapshot().State)
	assert.Less(t, e.tracker.Snapshot().Median, logic.DefaultUltrasonicThreshold.Seconds())
}

func TestIntegrationFallingEdgeIgnored(t *testing.T) {
	e := startEnclosure(t, true)

	e.arm.Handle(gpio.EdgeFalling)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, logic.StateStandby, e.tracker.Snapshot().State)
	assert.Len(t, e.link.Writes(), 1)
}

func TestIntegrationCompanionDrivesState(t *testing.T) {
	e := startEnclosure(t, false)

	e.mode.Set([2]bool{false, true})
	e.waitState(t, logic.StateEnabled)

	e.mode.Set([2]bool{true, false})
	e.waitState(t, logic.StateTriggered)

	e.mode.Set([2]bool{false, false})
	e.waitState(t, logic.StateStandby)

	assert.Equal(t, []logic.Code{"00", "01", "10", "00"}, e.linkHistory())
	assert.Equal(t, 3, e.tracker.Snapshot().Counts.ByTrigger[logic.TriggerModeInput])
}

func TestIntegrationCompanionUnknownCodeKeepsState(t *testing.T) {
	e := startEnclosure(t, false)

	e.mode.Set([2]bool{false, true})
	e.waitState(t, logic.StateEnabled)

	e.mode.Set([2]bool{true, true})
	require.Eventually(t, func() bool { return e.tracker.Snapshot().ModeInput == "11" }, settle, time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, logic.StateEnabled, e.tracker.Snapshot().State)
	assert.Equal(t, logic.CodeEnabled, logic.CodeFromBits(e.link.Last()))
}

func TestIntegrationHeldStandbyOverridesManualArm(t *testing.T) {
	e := startEnclosure(t, false)

	// The companion holds "00"; an arm is accepted, then overridden on the
	// next mode check.
	e.arm.Handle(gpio.EdgeRising)
	require.Eventually(t, func() bool { return e.tracker.Snapshot().Counts.Disarmed == 1 }, settle, time.Millisecond)

	snap := e.tracker.Snapshot()
	assert.Equal(t, logic.StateStandby, snap.State)
	assert.Equal(t, logic.TriggerModeInput, snap.LastTransition.Trigger)
}

func TestIntegrationStatusJSON(t *testing.T) {
	e := startEnclosure(t, true)

	e.arm.Handle(gpio.EdgeRising)
	e.waitState(t, logic.StateEnabled)

	var parsed status.StatusJSON
	require.NoError(t, json.Unmarshal(status.FormatJSON(e.ctrl.Snapshot()), &parsed))

	assert.Equal(t, "ENABLED", parsed.Status.State)
	assert.Equal(t, "01", parsed.Status.Code)
	assert.Equal(t, "00", parsed.Status.ModeInput)
	assert.Equal(t, 500, parsed.Status.Pressure.Value)
	require.NotNil(t, parsed.Status.LastTransition)
	assert.Equal(t, "MANUAL_ARM", parsed.Status.LastTransition.Trigger)
}
