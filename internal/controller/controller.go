// Package controller owns the enclosure's security state. It polls the
// sensors, serializes manual and companion requests into the state machine
// and drives the indicators, beeper, audio and companion lines so they
// always match the current state.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/enclosure-alarm/internal/audio"
	"github.com/sweeney/enclosure-alarm/internal/gpio"
	"github.com/sweeney/enclosure-alarm/internal/logic"
	"github.com/sweeney/enclosure-alarm/internal/sensor"
	"github.com/sweeney/enclosure-alarm/internal/status"
)

// Beeper sounds chirps and, optionally, a siren waveform.
type Beeper interface {
	Pulse(d time.Duration) error
	EnablePeriodic(freqHz, duty float64) error
	DisablePeriodic()
}

// RangeFinder measures one ultrasonic round trip.
type RangeFinder interface {
	Measure(ctx context.Context) (time.Duration, error)
}

// PressureSensor returns one raw pressure sample.
type PressureSensor interface {
	Read() (int, error)
}

// Indicators are the three status LEDs.
type Indicators struct {
	Red    gpio.Output
	Green  gpio.Output
	Yellow gpio.Output
}

// Deps are the devices the controller drives.
type Deps struct {
	Beeper     Beeper
	Ranger     RangeFinder
	Pressure   PressureSensor
	Indicators Indicators
	Link       gpio.PairOutput // companion state code out
	ModeInput  gpio.PairInput  // companion mode request in
	Audio      audio.Player
	Tracker    *status.Tracker
	Log        *zap.Logger
}

// Options tune the controller. Start from DefaultOptions: a zero
// PressureThreshold trips on any change while Enabled.
type Options struct {
	WindowSize          int
	UltrasonicThreshold time.Duration
	PressureThreshold   int // negative selects the default
	Poll                time.Duration // wait between ultrasonic polls
	Heartbeat           time.Duration // 0 disables
	ModeInputLatched    bool
	SirenHz             float64 // 0 disables
	QueueSize           int
}

// DefaultOptions returns the settings the enclosure ships with.
func DefaultOptions() Options {
	return Options{
		WindowSize:          logic.DefaultWindowSize,
		UltrasonicThreshold: logic.DefaultUltrasonicThreshold,
		PressureThreshold:   logic.DefaultPressureThreshold,
		Poll:                100 * time.Millisecond,
		Heartbeat:           15 * time.Minute,
		QueueSize:           8,
	}
}

const sirenDuty = 50

// Controller is the single owner of the security state.
type Controller struct {
	deps  Deps
	opts  Options
	log   *zap.Logger
	now   func() time.Time
	sleep func(time.Duration)

	requests chan logic.Request

	// mu is held across every transition and its side effects.
	mu       sync.Mutex
	machine  *logic.Machine
	us       *logic.UltrasonicFilter
	pressure *logic.PressureFilter
	latch    logic.Code
	seen     bool
}

// New creates a controller in Standby. Call Start before Run.
func New(deps Deps, opts Options) *Controller {
	def := DefaultOptions()
	if opts.WindowSize <= 0 {
		opts.WindowSize = def.WindowSize
	}
	if opts.UltrasonicThreshold <= 0 {
		opts.UltrasonicThreshold = def.UltrasonicThreshold
	}
	if opts.PressureThreshold < 0 {
		opts.PressureThreshold = def.PressureThreshold
	}
	if opts.Poll <= 0 {
		opts.Poll = def.Poll
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if deps.Audio == nil {
		deps.Audio = audio.Nop{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Tracker == nil {
		deps.Tracker = status.NewTracker(time.Now(), status.Config{})
	}

	return &Controller{
		deps:     deps,
		opts:     opts,
		log:      deps.Log.Named("controller"),
		now:      time.Now,
		sleep:    time.Sleep,
		requests: make(chan logic.Request, opts.QueueSize),
		machine:  logic.NewMachine(time.Now()),
		us:       logic.NewUltrasonicFilter(opts.WindowSize, opts.UltrasonicThreshold),
		pressure: logic.NewPressureFilter(opts.PressureThreshold),
	}
}

// Start drives the outputs to the Standby pattern without chirping and
// publishes the initial state.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.machine = logic.NewMachine(c.now())
	p := logic.PlanFor(logic.StateStandby)
	c.writeLink(p.Code)
	c.setIndicators(p.Indicators)
	c.deps.Tracker.SetState(c.machine.State(), c.machine.CountsSnapshot(), nil)
	c.log.Info("started", zap.String("state", string(c.machine.State())), zap.String("code", string(p.Code)))
}

// Prime takes one sample from each sensor so the filters have a
// predecessor before the first verdict.
func (c *Controller) Prime(ctx context.Context) {
	c.PollPressure()
	c.PollUltrasonic(ctx)
}

// Request queues a transition request for the owner loop. It never blocks;
// it returns false and drops the request when the queue is full.
// Safe to call from edge handlers.
func (c *Controller) Request(req logic.Request) bool {
	select {
	case c.requests <- req:
		return true
	default:
		c.log.Warn("request queue full, dropping", zap.String("trigger", string(req.Trigger)))
		return false
	}
}

// Arm queues a manual arm request.
func (c *Controller) Arm() bool {
	return c.Request(logic.Request{Trigger: logic.TriggerManualArm})
}

// Disarm queues a manual disarm request.
func (c *Controller) Disarm() bool {
	return c.Request(logic.Request{Trigger: logic.TriggerManualDisarm})
}

// Handle applies req immediately and runs the side effects of any
// resulting transition. It reports whether the state changed.
func (c *Controller) Handle(req logic.Request) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handleLocked(req)
}

func (c *Controller) handleLocked(req logic.Request) (bool, error) {
	tr, changed, err := c.machine.Apply(req, c.now())
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	c.log.Info("transition",
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("trigger", string(tr.Trigger)),
		zap.String("code", string(logic.Encode(tr.To))))

	c.execute(logic.PlanFor(tr.To))
	c.deps.Tracker.SetState(c.machine.State(), c.machine.CountsSnapshot(), &tr)
	return true, nil
}

// execute runs a plan. Device errors are logged and the remaining steps
// still run, so one failed LED cannot leave the companion link stale.
func (c *Controller) execute(p logic.Plan) {
	for _, ch := range p.Lead {
		c.chirp(ch)
	}
	c.writeLink(p.Code)

	if p.Alarm {
		if err := c.deps.Audio.Loop(logic.CueAlarm); err != nil {
			c.log.Error("start alarm", zap.Error(err))
		}
		if c.opts.SirenHz > 0 {
			if err := c.deps.Beeper.EnablePeriodic(c.opts.SirenHz, sirenDuty); err != nil {
				c.log.Error("start siren", zap.Error(err))
			}
		}
	} else {
		if err := c.deps.Audio.Stop(logic.CueAlarm); err != nil {
			c.log.Error("stop alarm", zap.Error(err))
		}
		if c.opts.SirenHz > 0 {
			c.deps.Beeper.DisablePeriodic()
		}
	}

	c.setIndicators(p.Indicators)

	if p.Cue != logic.CueNone {
		if err := c.deps.Audio.Play(p.Cue); err != nil {
			c.log.Error("play cue", zap.String("cue", string(p.Cue)), zap.Error(err))
		}
	}
	for _, ch := range p.Tail {
		c.chirp(ch)
	}
}

func (c *Controller) chirp(ch logic.Chirp) {
	if err := c.deps.Beeper.Pulse(ch.Length); err != nil {
		c.log.Error("chirp", zap.Duration("length", ch.Length), zap.Error(err))
	}
	if ch.Gap > 0 {
		c.sleep(ch.Gap)
	}
}

func (c *Controller) writeLink(code logic.Code) {
	if err := c.deps.Link.Write(code.Bits()); err != nil {
		c.log.Error("write companion link", zap.String("code", string(code)), zap.Error(err))
	}
}

func (c *Controller) setIndicators(ind logic.Indicators) {
	set := func(name string, out gpio.Output, on bool) {
		if err := out.Set(on); err != nil {
			c.log.Error("set indicator", zap.String("led", name), zap.Error(err))
		}
	}
	set("red", c.deps.Indicators.Red, ind.Red)
	set("green", c.deps.Indicators.Green, ind.Green)
	set("yellow", c.deps.Indicators.Yellow, ind.Yellow)
}

// PollPressure takes one pressure sample and triggers the alarm when the
// change from the previous sample exceeds the threshold while Enabled.
// A failed read skips the poll and leaves the filter untouched.
func (c *Controller) PollPressure() {
	v, err := c.deps.Pressure.Read()
	if err != nil {
		c.log.Error("pressure poll skipped", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.pressure.Push(v)
	c.deps.Tracker.SetPressure(r)
	if logic.Verdict(c.machine.State(), r.Over) {
		c.log.Info("pressure breach", zap.Int("value", r.Value), zap.Int("delta", r.Delta))
		c.handleLocked(logic.Request{Trigger: logic.TriggerPressure})
	}
}

// PollUltrasonic takes one ranger measurement and triggers the alarm when
// the window median exceeds the threshold while Enabled. A missing echo
// counts as no movement and is not added to the window.
func (c *Controller) PollUltrasonic(ctx context.Context) {
	rt, err := c.deps.Ranger.Measure(ctx)
	switch {
	case errors.Is(err, sensor.ErrNoEcho):
		c.log.Debug("no echo", zap.Error(err))
		return
	case ctx.Err() != nil:
		return
	case err != nil:
		c.log.Error("ultrasonic poll skipped", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.us.Push(rt)
	c.deps.Tracker.SetUltrasonic(r)
	if logic.Verdict(c.machine.State(), r.Over) {
		c.log.Info("ultrasonic breach", zap.Duration("round_trip", r.RoundTrip), zap.Float64("median", r.Median))
		c.handleLocked(logic.Request{Trigger: logic.TriggerUltrasonic})
	}
}

// CheckModeInput samples the companion mode lines and requests the state
// they name when it differs from the current code. With latching enabled
// only a change of input since the last check is acted on.
func (c *Controller) CheckModeInput() {
	bits, err := c.deps.ModeInput.Read()
	if err != nil {
		c.log.Error("mode input check skipped", zap.Error(err))
		return
	}
	code := logic.CodeFromBits(bits)

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, seen := c.latch, c.seen
	c.latch, c.seen = code, true
	c.deps.Tracker.SetModeInput(code)

	if c.opts.ModeInputLatched && seen && code == prev {
		return
	}
	if code == c.machine.Code() {
		return
	}
	if _, err := c.handleLocked(logic.Request{Trigger: logic.TriggerModeInput, Mode: code}); err != nil {
		if errors.Is(err, logic.ErrUnknownCode) && seen && code == prev {
			c.log.Debug("mode input ignored", zap.Error(err))
			return
		}
		c.log.Warn("mode input ignored", zap.String("input", string(code)), zap.Error(err))
	}
}

// Run polls until ctx is done. One cycle is: pressure, ultrasonic, wait,
// ultrasonic, wait, mode input. Queued requests are served during waits.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if !c.cycle(ctx) {
			return nil
		}
		c.checkHeartbeat()
	}
}

// cycle runs one polling cycle. It returns false when ctx is done.
func (c *Controller) cycle(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	c.PollPressure()
	c.PollUltrasonic(ctx)
	if !c.wait(ctx, c.opts.Poll) {
		return false
	}
	c.PollUltrasonic(ctx)
	if !c.wait(ctx, c.opts.Poll) {
		return false
	}
	c.CheckModeInput()
	return true
}

// wait blocks for d while serving queued requests.
func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case req := <-c.requests:
			if _, err := c.Handle(req); err != nil {
				c.log.Warn("request rejected", zap.String("trigger", string(req.Trigger)), zap.Error(err))
			}
		case <-timer.C:
			return true
		}
	}
}

func (c *Controller) checkHeartbeat() {
	c.mu.Lock()
	hb := c.machine.CheckHeartbeat(c.now(), c.opts.Heartbeat)
	c.mu.Unlock()
	if hb == nil {
		return
	}

	snap := c.Snapshot()
	c.log.Info("heartbeat",
		zap.String("state", string(hb.State)),
		zap.Duration("uptime", hb.Uptime),
		zap.Int("armed", hb.Counts.Armed),
		zap.Int("disarmed", hb.Counts.Disarmed),
		zap.Int("triggered", hb.Counts.Triggered),
		zap.Any("status", json.RawMessage(status.FormatStatusEvent(snap, "HEARTBEAT", ""))))
}

// State returns the current state.
func (c *Controller) State() logic.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State()
}

// Snapshot returns the published status. It waits for a running
// transition to finish, so the state always matches the outputs.
func (c *Controller) Snapshot() status.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deps.Tracker.Snapshot()
}
